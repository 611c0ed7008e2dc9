// Package calibration finds noisy pixels from the occupancy of a digit
// sample.
package calibration

import (
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
)

var (
	ErrNoActivePixels = errors.New("no pixel fired in the sample")
	ErrInvalidFrame   = errors.New("readout frame entries out of range")
)

// Fraction of the least active pixels used to estimate the mean occupancy.
const meanFraction = 0.9

// DefaultNoiseFactor multiplies the mean occupancy to get the threshold.
const DefaultNoiseFactor = 10

// NoiseCalibrator counts the readout frames in which every pixel fired.
type NoiseCalibrator struct {
	factor  float64
	counts  map[dataformats.NoisyPixel]uint64
	nFrames int
	nDigits int
}

func NewNoiseCalibrator(factor float64) *NoiseCalibrator {
	if factor <= 0 {
		factor = DefaultNoiseFactor
	}
	return &NoiseCalibrator{factor: factor, counts: make(map[dataformats.NoisyPixel]uint64)}
}

// ProcessTimeframe adds the digits of every frame. A pixel counts once
// per frame.
func (c *NoiseCalibrator) ProcessTimeframe(digits []dataformats.Digit, rofs []dataformats.ROFRecord) error {
	for i, rof := range rofs {
		first, last := rof.EntriesRange()
		if first < 0 || last > len(digits) || first > last {
			return fmt.Errorf("%w: frame %d [%d, %d) with %d digits", ErrInvalidFrame, i, first, last, len(digits))
		}
		seen := make(map[dataformats.NoisyPixel]struct{}, last-first)
		for _, d := range digits[first:last] {
			p := dataformats.NoisyPixel{ChipID: d.ChipIndex, Row: d.Row, Col: d.Col}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			c.counts[p]++
		}
		c.nFrames++
		c.nDigits += last - first
	}
	return nil
}

func (c *NoiseCalibrator) NFrames() int {
	return c.nFrames
}

// Count returns the number of frames in which p fired.
func (c *NoiseCalibrator) Count(p dataformats.NoisyPixel) uint64 {
	return c.counts[p]
}

// NoiseResult is the outcome of a calibration.
type NoiseResult struct {
	NFrames       int
	NDigits       int
	NActivePixels int
	Mean          float64
	Threshold     float64
	Noisy         []dataformats.NoisyPixel
}

// Finalize computes the mean occupancy of the 90% least active fired
// pixels and flags the pixels above factor times that mean.
func (c *NoiseCalibrator) Finalize() (NoiseResult, error) {
	if len(c.counts) == 0 {
		return NoiseResult{}, ErrNoActivePixels
	}
	occupancies := make([]float64, 0, len(c.counts))
	for _, n := range c.counts {
		occupancies = append(occupancies, float64(n))
	}
	slices.Sort(occupancies)
	// Mean over the least active fraction of the pixels that fired at
	// least once. Silent pixels are not part of the sample.
	nUsed := max(1, int(meanFraction*float64(len(occupancies))))
	mean := stat.Mean(occupancies[:nUsed], nil)

	res := NoiseResult{
		NFrames:       c.nFrames,
		NDigits:       c.nDigits,
		NActivePixels: len(c.counts),
		Mean:          mean,
		Threshold:     c.factor * mean,
	}
	for p, n := range c.counts {
		if float64(n) > res.Threshold {
			res.Noisy = append(res.Noisy, p)
		}
	}
	slices.SortFunc(res.Noisy, dataformats.CompareNoisyPixels)
	return res, nil
}
