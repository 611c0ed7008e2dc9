package simulation

import (
	"cmp"
	"math"
	"slices"

	"golang.org/x/exp/maps"

	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
)

// MaxLabelsPerDigit bounds the MC labels kept for one pixel.
const MaxLabelsPerDigit = 3

// ChipDigit is a digit before readout framing: it still carries its time
// (ns) and the labels of the particles that fired it.
type ChipDigit struct {
	dataformats.Digit
	Time   float64
	Labels []dataformats.MCCompLabel
}

func (d *ChipDigit) addLabel(label dataformats.MCCompLabel) {
	for _, l := range d.Labels {
		if l.SameParticle(label) {
			return
		}
	}
	if len(d.Labels) < MaxLabelsPerDigit {
		d.Labels = append(d.Labels, label)
	}
}

// merge adds the charge and labels of other to d, keeping the earliest time.
func (d *ChipDigit) merge(other ChipDigit) {
	d.Charge += other.Charge
	d.Time = math.Min(d.Time, other.Time)
	for _, l := range other.Labels {
		d.addLabel(l)
	}
}

type pixelKey struct {
	row uint16
	col uint16
}

// DigitContainer stores the digits of every chip. A pixel fired twice
// keeps a single digit with the summed charge.
type DigitContainer struct {
	chips []map[pixelKey]*ChipDigit
}

func NewDigitContainer(nChips int) *DigitContainer {
	c := &DigitContainer{chips: make([]map[pixelKey]*ChipDigit, nChips)}
	return c
}

func (c *DigitContainer) NChips() int {
	return len(c.chips)
}

func (c *DigitContainer) Reset() {
	for i := range c.chips {
		c.chips[i] = nil
	}
}

// AddDigit fires (row, col) of chipID with charge electrons at time.
func (c *DigitContainer) AddDigit(chipID, row, col int, charge float64, time float64, label dataformats.MCCompLabel) *ChipDigit {
	if chipID < 0 || chipID >= len(c.chips) {
		return nil
	}
	if c.chips[chipID] == nil {
		c.chips[chipID] = make(map[pixelKey]*ChipDigit)
	}
	key := pixelKey{row: uint16(row), col: uint16(col)}
	digit := ChipDigit{
		Digit: dataformats.Digit{
			ChipIndex: uint16(chipID),
			Row:       uint16(row),
			Col:       uint16(col),
			Charge:    int32(math.Round(charge)),
		},
		Time: time,
	}
	digit.addLabel(label)
	if existing, ok := c.chips[chipID][key]; ok {
		existing.merge(digit)
		return existing
	}
	c.chips[chipID][key] = &digit
	return &digit
}

// ChipDigits returns the digits of a chip sorted by column then row.
func (c *DigitContainer) ChipDigits(chipID int) []ChipDigit {
	if chipID < 0 || chipID >= len(c.chips) || c.chips[chipID] == nil {
		return nil
	}
	keys := maps.Keys(c.chips[chipID])
	slices.SortFunc(keys, func(a, b pixelKey) int {
		return cmp.Or(cmp.Compare(a.col, b.col), cmp.Compare(a.row, b.row))
	})
	digits := make([]ChipDigit, 0, len(keys))
	for _, k := range keys {
		digits = append(digits, *c.chips[chipID][k])
	}
	return digits
}

// Digits returns all digits sorted by chip, column and row.
func (c *DigitContainer) Digits() []ChipDigit {
	var digits []ChipDigit
	for chipID := range c.chips {
		digits = append(digits, c.ChipDigits(chipID)...)
	}
	return digits
}

func (c *DigitContainer) Size() int {
	n := 0
	for _, chip := range c.chips {
		n += len(chip)
	}
	return n
}
