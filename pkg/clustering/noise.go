package clustering

import (
	"slices"

	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
)

// NoiseMap holds the masked pixels of every chip.
type NoiseMap struct {
	nChips int
	masked map[dataformats.NoisyPixel]struct{}
}

func NewNoiseMap(nChips int) *NoiseMap {
	return &NoiseMap{nChips: nChips, masked: make(map[dataformats.NoisyPixel]struct{})}
}

// NewNoiseMapFromPixels masks pixels, ignoring those on chips >= nChips.
func NewNoiseMapFromPixels(nChips int, pixels []dataformats.NoisyPixel) *NoiseMap {
	m := NewNoiseMap(nChips)
	for _, p := range pixels {
		m.Mask(p)
	}
	return m
}

// Mask reports whether the pixel was added.
func (m *NoiseMap) Mask(p dataformats.NoisyPixel) bool {
	if int(p.ChipID) >= m.nChips {
		return false
	}
	m.masked[p] = struct{}{}
	return true
}

func (m *NoiseMap) IsMasked(chipID, row, col uint16) bool {
	if m == nil {
		return false
	}
	_, ok := m.masked[dataformats.NoisyPixel{ChipID: chipID, Row: row, Col: col}]
	return ok
}

func (m *NoiseMap) NMasked() int {
	if m == nil {
		return 0
	}
	return len(m.masked)
}

// Pixels returns the masked pixels sorted by chip, column and row.
func (m *NoiseMap) Pixels() []dataformats.NoisyPixel {
	pixels := make([]dataformats.NoisyPixel, 0, len(m.masked))
	for p := range m.masked {
		pixels = append(pixels, p)
	}
	slices.SortFunc(pixels, dataformats.CompareNoisyPixels)
	return pixels
}
