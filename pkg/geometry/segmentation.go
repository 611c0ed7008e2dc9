package geometry

import "math"

// ALPIDE sensor segmentation. Lengths are in cm.
const (
	NRows           = 512
	NCols           = 1024
	PitchRow        = 29.24e-4
	PitchCol        = 26.88e-4
	ActiveSizeRows  = NRows * PitchRow
	ActiveSizeCols  = NCols * PitchCol
	SensorThickness = 50e-4
)

// Segmentation converts chip local coordinates to pixel indices.
type Segmentation interface {
	NRows() int
	NCols() int
	LocalToDetector(x, z float64) (row, col int, ok bool)
	DetectorToLocal(row, col int) (x, z float64)
}

// SegmentationAlpide has the local x axis along decreasing rows and the
// local z axis along increasing columns, origin at the matrix centre.
type SegmentationAlpide struct{}

func (SegmentationAlpide) NRows() int { return NRows }
func (SegmentationAlpide) NCols() int { return NCols }

func (SegmentationAlpide) LocalToDetector(x, z float64) (int, int, bool) {
	xRow := 0.5*ActiveSizeRows - x
	zCol := z + 0.5*ActiveSizeCols
	if xRow < 0 || xRow >= ActiveSizeRows || zCol < 0 || zCol >= ActiveSizeCols {
		return -1, -1, false
	}
	return int(math.Floor(xRow / PitchRow)), int(math.Floor(zCol / PitchCol)), true
}

// DetectorToLocal returns the centre of the pixel.
func (SegmentationAlpide) DetectorToLocal(row, col int) (float64, float64) {
	x := 0.5*ActiveSizeRows - (float64(row)+0.5)*PitchRow
	z := (float64(col)+0.5)*PitchCol - 0.5*ActiveSizeCols
	return x, z
}
