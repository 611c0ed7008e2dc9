package dataformats

import "cmp"

// NoisyPixel identifies a pixel excluded from clustering.
type NoisyPixel struct {
	ChipID uint16
	Row    uint16
	Col    uint16
}

// CompareNoisyPixels orders pixels by chip, column and row.
func CompareNoisyPixels(a, b NoisyPixel) int {
	return cmp.Or(cmp.Compare(a.ChipID, b.ChipID), cmp.Compare(a.Col, b.Col), cmp.Compare(a.Row, b.Row))
}
