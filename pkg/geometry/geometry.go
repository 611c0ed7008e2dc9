// Package geometry provides the chip placement used by the digitizer.
// Real detector alignment is out of scope: Grid is a planar stand-in with
// the chips tiled on the global x-z plane.
package geometry

import "fmt"

// ITSNChips is the number of chips of the inner tracker.
const ITSNChips = 24120

type Vector3 [3]float64

// Geometry locates chips in the global frame.
type Geometry interface {
	NumberOfChips() int
	GlobalToLocal(chipID int, glo Vector3) (Vector3, error)
	LocalToGlobal(chipID int, loc Vector3) (Vector3, error)
	Segmentation() Segmentation
}

// Grid places nChips on the y=0 plane, chipsPerRow along x. Chip 0 is
// centred at (PitchX/2, 0, PitchZ/2).
type Grid struct {
	NChips      int
	ChipsPerRow int
	PitchX      float64
	PitchZ      float64
	seg         SegmentationAlpide
}

// Gap between neighbouring chips of the default grid, in cm.
const DefaultChipGap = 0.01

func NewGrid(nChips, chipsPerRow int) (*Grid, error) {
	if nChips <= 0 || chipsPerRow <= 0 {
		return nil, fmt.Errorf("invalid grid geometry: %d chips, %d per row", nChips, chipsPerRow)
	}
	return &Grid{
		NChips:      nChips,
		ChipsPerRow: chipsPerRow,
		PitchX:      ActiveSizeRows + DefaultChipGap,
		PitchZ:      ActiveSizeCols + DefaultChipGap,
	}, nil
}

func (g *Grid) NumberOfChips() int {
	return g.NChips
}

func (g *Grid) Segmentation() Segmentation {
	return g.seg
}

// ChipCentre returns the global position of the chip centre.
func (g *Grid) ChipCentre(chipID int) (Vector3, error) {
	if chipID < 0 || chipID >= g.NChips {
		return Vector3{}, fmt.Errorf("chip %d outside geometry with %d chips", chipID, g.NChips)
	}
	ix := chipID % g.ChipsPerRow
	iz := chipID / g.ChipsPerRow
	return Vector3{(float64(ix) + 0.5) * g.PitchX, 0, (float64(iz) + 0.5) * g.PitchZ}, nil
}

func (g *Grid) GlobalToLocal(chipID int, glo Vector3) (Vector3, error) {
	c, err := g.ChipCentre(chipID)
	if err != nil {
		return Vector3{}, err
	}
	return Vector3{glo[0] - c[0], glo[1] - c[1], glo[2] - c[2]}, nil
}

func (g *Grid) LocalToGlobal(chipID int, loc Vector3) (Vector3, error) {
	c, err := g.ChipCentre(chipID)
	if err != nil {
		return Vector3{}, err
	}
	return Vector3{loc[0] + c[0], loc[1] + c[1], loc[2] + c[2]}, nil
}

// PixelCentre returns the global position of a pixel centre.
func PixelCentre(g Geometry, chipID, row, col int) (Vector3, error) {
	x, z := g.Segmentation().DetectorToLocal(row, col)
	return g.LocalToGlobal(chipID, Vector3{x, 0, z})
}
