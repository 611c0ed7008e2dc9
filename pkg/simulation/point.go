package simulation

import (
	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
	"github.com/jmbenlloch/pixreco_go/pkg/geometry"
)

// Electron-hole pairs per GeV deposited in silicon (3.6 eV per pair).
const ElectronsPerGeV = 1 / 3.6e-9

// Point is an energy deposition of a simulated track in one chip, from
// (StartX, StartY, StartZ) to (X, Y, Z). Time is in ns relative to the
// event, EnergyLoss in GeV.
type Point struct {
	TrackID    int32
	EventID    int32
	SourceID   int16
	DetectorID int32
	X          float64
	Y          float64
	Z          float64
	StartX     float64
	StartY     float64
	StartZ     float64
	Time       float64
	EnergyLoss float64
}

func (p Point) MidPoint() geometry.Vector3 {
	return geometry.Vector3{
		0.5 * (p.X + p.StartX),
		0.5 * (p.Y + p.StartY),
		0.5 * (p.Z + p.StartZ),
	}
}

func (p Point) Label() dataformats.MCCompLabel {
	return dataformats.NewMCCompLabel(p.TrackID, p.EventID, p.SourceID)
}

// Chip buffers the points of one chip until it is digitised.
type Chip struct {
	index  int
	points []Point
}

func NewChip(index int) *Chip {
	return &Chip{index: index}
}

func (c *Chip) Index() int {
	return c.index
}

func (c *Chip) InsertPoint(p Point) {
	c.points = append(c.points, p)
}

func (c *Chip) Points() []Point {
	return c.points
}

func (c *Chip) Reset() {
	c.points = c.points[:0]
}

// Event is a simulated collision: its points and its absolute time in ns.
type Event struct {
	ID       int32
	SourceID int16
	Time     float64
	Points   []Point
}
