// Package mid clusterizes the strip data of the muon identifier.
package mid

import (
	"fmt"

	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
)

// Strips per line of a column, and lines per column in the bending plane.
const (
	NStripsPerLine = 16
	NLines         = 4
	NColumns       = 7
	NDetElements   = 72
)

type Cathode int

const (
	BendingPlane Cathode = iota
	NonBendingPlane
)

func (c Cathode) String() string {
	if c == BendingPlane {
		return "BP"
	}
	return "NBP"
}

// ColumnData holds the fired strips of one column of a detection element.
// The bending plane has one 16 bit pattern per line, the non bending
// plane one pattern for the whole column.
type ColumnData struct {
	DeID       uint8
	ColumnID   uint8
	PatternNBP uint16
	PatternsBP [NLines]uint16
}

func (c ColumnData) IsStripFired(strip int, cathode Cathode, line int) bool {
	if strip < 0 || strip >= NStripsPerLine {
		return false
	}
	if cathode == NonBendingPlane {
		return c.PatternNBP&(1<<strip) != 0
	}
	if line < 0 || line >= NLines {
		return false
	}
	return c.PatternsBP[line]&(1<<strip) != 0
}

func (c *ColumnData) AddStrip(strip int, cathode Cathode, line int) {
	if cathode == NonBendingPlane {
		c.PatternNBP |= 1 << strip
		return
	}
	c.PatternsBP[line] |= 1 << strip
}

// IsEmpty reports whether no strip fired.
func (c ColumnData) IsEmpty() bool {
	if c.PatternNBP != 0 {
		return false
	}
	for _, p := range c.PatternsBP {
		if p != 0 {
			return false
		}
	}
	return true
}

// bendingPattern concatenates the line patterns, line 0 in the low bits.
func (c ColumnData) bendingPattern() uint64 {
	var pattern uint64
	for line := NLines - 1; line >= 0; line-- {
		pattern = pattern<<NStripsPerLine | uint64(c.PatternsBP[line])
	}
	return pattern
}

func (c ColumnData) String() string {
	return fmt.Sprintf("DE %d column %d NBP %016b BP %016b %016b %016b %016b",
		c.DeID, c.ColumnID, c.PatternNBP, c.PatternsBP[0], c.PatternsBP[1], c.PatternsBP[2], c.PatternsBP[3])
}

type EventType int

const (
	EventStandard EventType = iota
	EventCalib
	EventFET
)

// ROFRecord describes the entries of one readout frame.
type ROFRecord struct {
	Interaction dataformats.InteractionRecord
	EventType   EventType
	FirstEntry  int32
	NEntries    int32
}

func (r ROFRecord) EntriesRange() (int, int) {
	return int(r.FirstEntry), int(r.FirstEntry + r.NEntries)
}
