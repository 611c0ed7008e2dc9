package conditions

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
)

var (
	ErrWrongLink             = errors.New("unknown readout link")
	ErrWrongHWAddress        = errors.New("unknown hardware address")
	ErrWrongChip             = errors.New("chip not mapped")
	ErrMappingNotInitialized = errors.New("channel mapping not initialized")
	ErrDuplicatedChannel     = errors.New("channel mapped twice")
	ErrMalformedLookUpTable  = errors.New("malformed lookup table")
	ErrNoChannelMapping      = errors.New("no channel mapping for run")
)

// ChannelEntry maps one readout channel, identified by its link and
// hardware address, to a chip.
type ChannelEntry struct {
	Detector  string `db:"Detector"`
	MinRun    int    `db:"MinRun"`
	MaxRun    int    `db:"MaxRun"`
	Link      int    `db:"Link"`
	HWAddress int    `db:"HWAddress"`
	ChipID    int    `db:"ChipID"`
}

type hwAddress struct {
	link, hw int
}

// ChannelMap converts hardware addresses to chip IDs and back.
type ChannelMap struct {
	toChip map[hwAddress]uint16
	toHW   map[uint16]hwAddress
	links  map[int]struct{}
}

func NewChannelMap(entries []ChannelEntry) (*ChannelMap, error) {
	m := &ChannelMap{
		toChip: make(map[hwAddress]uint16, len(entries)),
		toHW:   make(map[uint16]hwAddress, len(entries)),
		links:  make(map[int]struct{}),
	}
	for _, e := range entries {
		if e.ChipID < 0 || e.ChipID > 0xffff {
			return nil, fmt.Errorf("%w: chip %d", ErrWrongChip, e.ChipID)
		}
		addr := hwAddress{e.Link, e.HWAddress}
		chip := uint16(e.ChipID)
		if _, ok := m.toChip[addr]; ok {
			return nil, fmt.Errorf("%w: link %d, hw address %d", ErrDuplicatedChannel, e.Link, e.HWAddress)
		}
		if _, ok := m.toHW[chip]; ok {
			return nil, fmt.Errorf("%w: chip %d", ErrDuplicatedChannel, e.ChipID)
		}
		m.toChip[addr] = chip
		m.toHW[chip] = addr
		m.links[e.Link] = struct{}{}
	}
	return m, nil
}

func (m *ChannelMap) Size() int {
	if m == nil {
		return 0
	}
	return len(m.toChip)
}

func (m *ChannelMap) HWToChip(link, hw int) (uint16, error) {
	if m == nil {
		return 0, ErrMappingNotInitialized
	}
	if _, ok := m.links[link]; !ok {
		return 0, fmt.Errorf("%w: %d", ErrWrongLink, link)
	}
	chip, ok := m.toChip[hwAddress{link, hw}]
	if !ok {
		return 0, fmt.Errorf("%w: link %d, hw address %d", ErrWrongHWAddress, link, hw)
	}
	return chip, nil
}

func (m *ChannelMap) ChipToHW(chip uint16) (link int, hw int, err error) {
	if m == nil {
		return 0, 0, ErrMappingNotInitialized
	}
	addr, ok := m.toHW[chip]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %d", ErrWrongChip, chip)
	}
	return addr.link, addr.hw, nil
}

// ParseLookUpTable reads a whitespace separated "chip link hw_address"
// table. The first line is a header. Blank lines and lines starting with
// '#' are ignored.
func ParseLookUpTable(r io.Reader) ([]ChannelEntry, error) {
	scanner := bufio.NewScanner(r)
	var entries []ChannelEntry
	nLine := 0
	for scanner.Scan() {
		nLine++
		line := strings.TrimSpace(scanner.Text())
		if nLine == 1 || line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, fmt.Errorf("%w: line %d has %d fields", ErrMalformedLookUpTable, nLine, len(fields))
		}
		var values [3]int
		for i := range values {
			v, err := strconv.Atoi(fields[i])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %w", ErrMalformedLookUpTable, nLine, err)
			}
			values[i] = v
		}
		entries = append(entries, ChannelEntry{ChipID: values[0], Link: values[1], HWAddress: values[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading lookup table: %w", err)
	}
	return entries, nil
}

// ChannelMapping returns the mapping of det valid for run.
func (c *Conditions) ChannelMapping(det dataformats.DetID, run int) (*ChannelMap, error) {
	query := c.db.Rebind("SELECT Detector, MinRun, MaxRun, Link, HWAddress, ChipID FROM ChannelMapping " +
		"WHERE Detector = ? AND MinRun <= ? AND MaxRun >= ? ORDER BY Link, HWAddress")

	if c.verbosity > 0 {
		c.logger.Info(fmt.Sprintf("Reading %v channel mapping for run %d from database", det, run), "database")
	}

	var entries []ChannelEntry
	if err := c.db.Select(&entries, query, det.Name(), run, run); err != nil {
		return nil, fmt.Errorf("error querying database: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w %d", ErrNoChannelMapping, run)
	}
	return NewChannelMap(entries)
}

// UploadChannelMapping stores the lookup table of det in a single
// transaction. The table is validated first.
func (c *Conditions) UploadChannelMapping(det dataformats.DetID, minRun, maxRun int, entries []ChannelEntry) (err error) {
	if minRun > maxRun {
		return fmt.Errorf("%w: [%d, %d]", ErrInvalidRunRange, minRun, maxRun)
	}
	if _, err := NewChannelMap(entries); err != nil {
		return err
	}
	tx, err := c.db.Beginx()
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	insert := "INSERT INTO ChannelMapping (Detector, MinRun, MaxRun, Link, HWAddress, ChipID) " +
		"VALUES (:Detector, :MinRun, :MaxRun, :Link, :HWAddress, :ChipID)"
	for _, e := range entries {
		e.Detector, e.MinRun, e.MaxRun = det.Name(), minRun, maxRun
		if _, err = tx.NamedExec(insert, e); err != nil {
			return fmt.Errorf("error inserting channel: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("error committing channel mapping: %w", err)
	}
	if c.verbosity > 0 {
		message := fmt.Sprintf("Uploaded %d %v channels for runs [%d, %d]", len(entries), det, minRun, maxRun)
		c.logger.Info(message, "database")
	}
	return nil
}
