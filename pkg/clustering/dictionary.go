package clustering

import (
	"bufio"
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
)

const (
	dictMagic   = "PXTOPODICT"
	dictVersion = uint16(1)
	// IDs go up to InvalidPatternID, which is reserved.
	maxDictEntries = int(dataformats.InvalidPatternID)
)

var ErrUnknownPattern = errors.New("pattern ID not in dictionary")

// DictEntry is one dictionary topology.
type DictEntry struct {
	Pattern   dataformats.ClusterPattern
	Count     uint64
	Frequency float64
	// Centre of gravity relative to the anchor pixel, in pixels.
	COGRow float64
	COGCol float64
}

// TopologyDictionary maps the most frequent cluster patterns to IDs.
type TopologyDictionary struct {
	entries []DictEntry
	index   map[string]uint16
	// number of patterns the dictionary was built from
	total uint64
}

func NewTopologyDictionary() *TopologyDictionary {
	return &TopologyDictionary{index: make(map[string]uint16)}
}

func (d *TopologyDictionary) Size() int {
	return len(d.entries)
}

// Find returns the ID of p.
func (d *TopologyDictionary) Find(p dataformats.ClusterPattern) (uint16, bool) {
	id, ok := d.index[p.Key()]
	return id, ok
}

func (d *TopologyDictionary) Pattern(id uint16) (dataformats.ClusterPattern, error) {
	if int(id) >= len(d.entries) {
		return dataformats.ClusterPattern{}, fmt.Errorf("%w: %d", ErrUnknownPattern, id)
	}
	return d.entries[id].Pattern, nil
}

func (d *TopologyDictionary) Entry(id uint16) (DictEntry, error) {
	if int(id) >= len(d.entries) {
		return DictEntry{}, fmt.Errorf("%w: %d", ErrUnknownPattern, id)
	}
	return d.entries[id], nil
}

func (d *TopologyDictionary) reset(total uint64) {
	d.entries = d.entries[:0]
	d.index = make(map[string]uint16)
	d.total = total
}

func (d *TopologyDictionary) add(p dataformats.ClusterPattern, count uint64) {
	row, col := p.COG()
	entry := DictEntry{Pattern: p, Count: count, COGRow: row, COGCol: col}
	if d.total > 0 {
		entry.Frequency = float64(count) / float64(d.total)
	}
	d.index[p.Key()] = uint16(len(d.entries))
	d.entries = append(d.entries, entry)
}

// Build replaces the content of the dictionary with the patterns whose
// frequency is at least minFreq. IDs are assigned by decreasing count.
func (d *TopologyDictionary) Build(patterns []dataformats.ClusterPattern, minFreq float64) {
	type counted struct {
		pattern dataformats.ClusterPattern
		key     string
		count   uint64
	}
	counts := make(map[string]*counted)
	for _, p := range patterns {
		key := p.Key()
		if c, ok := counts[key]; ok {
			c.count++
			continue
		}
		counts[key] = &counted{pattern: p, key: key, count: 1}
	}

	sorted := make([]*counted, 0, len(counts))
	for _, c := range counts {
		sorted = append(sorted, c)
	}
	slices.SortFunc(sorted, func(a, b *counted) int {
		return cmp.Or(cmp.Compare(b.count, a.count), cmp.Compare(a.key, b.key))
	})

	total := uint64(len(patterns))
	d.reset(total)
	for _, c := range sorted {
		if len(d.entries) == maxDictEntries {
			break
		}
		if float64(c.count)/float64(total) < minFreq {
			break
		}
		d.add(c.pattern, c.count)
	}
}

// Save writes the dictionary in little endian binary form.
func (d *TopologyDictionary) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create dictionary %s: %w", path, err)
	}
	w := bufio.NewWriter(file)
	err = d.write(w)
	if err == nil {
		err = w.Flush()
	}
	return errors.Join(err, file.Close())
}

func (d *TopologyDictionary) write(w io.Writer) error {
	header := []any{[]byte(dictMagic), dictVersion, uint32(len(d.entries)), d.total}
	for _, field := range header {
		if err := binary.Write(w, binary.LittleEndian, field); err != nil {
			return err
		}
	}
	for _, e := range d.entries {
		if err := binary.Write(w, binary.LittleEndian, e.Count); err != nil {
			return err
		}
		if _, err := w.Write(e.Pattern.AppendTo(nil)); err != nil {
			return err
		}
	}
	return nil
}

// Load replaces the content of the dictionary with the file at path.
func (d *TopologyDictionary) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot open dictionary %s: %w", path, err)
	}
	defer file.Close()
	if err := d.read(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("cannot read dictionary %s: %w", path, err)
	}
	return nil
}

func (d *TopologyDictionary) read(r io.Reader) error {
	magic := make([]byte, len(dictMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return err
	}
	if string(magic) != dictMagic {
		return fmt.Errorf("bad magic %q", magic)
	}
	var version uint16
	var n uint32
	var total uint64
	for _, field := range []any{&version, &n, &total} {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return err
		}
	}
	if version != dictVersion {
		return fmt.Errorf("unsupported version %d", version)
	}
	if int(n) > maxDictEntries {
		return fmt.Errorf("too many entries: %d", n)
	}

	d.reset(total)
	spans := make([]byte, 2)
	for i := uint32(0); i < n; i++ {
		var count uint64
		if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
			return err
		}
		if _, err := io.ReadFull(r, spans); err != nil {
			return err
		}
		if spans[0] == 0 || spans[1] == 0 {
			return fmt.Errorf("entry %d: invalid span %dx%d", i, spans[0], spans[1])
		}
		p := dataformats.NewClusterPattern(int(spans[0]), int(spans[1]))
		if _, err := io.ReadFull(r, p.Bitmap); err != nil {
			return err
		}
		d.add(p, count)
	}
	return nil
}

// LoadTopologyDictionary reads a dictionary file.
func LoadTopologyDictionary(path string) (*TopologyDictionary, error) {
	d := NewTopologyDictionary()
	if err := d.Load(path); err != nil {
		return nil, err
	}
	return d, nil
}
