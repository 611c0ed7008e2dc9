package simulation

import (
	"fmt"

	"github.com/jmbenlloch/pixreco_go/pkg/geometry"
	"github.com/jmbenlloch/pixreco_go/pkg/logging"
)

// Digitizer converts simulated points into digits chip by chip.
type Digitizer struct {
	geom      geometry.Geometry
	container *DigitContainer
	chips     []*Chip
	responses []ChipResponse
	logger    logging.Logger
	verbosity int
}

func NewDigitizer(geom geometry.Geometry, params AlpideParams, logger logging.Logger, verbosity int) *Digitizer {
	nChips := geom.NumberOfChips()
	d := &Digitizer{
		geom:      geom,
		container: NewDigitContainer(nChips),
		chips:     make([]*Chip, nChips),
		responses: make([]ChipResponse, nChips),
		logger:    logger,
		verbosity: verbosity,
	}
	for i := 0; i < nChips; i++ {
		d.chips[i] = NewChip(i)
		d.responses[i] = NewAlpideResponse(params, geom, i)
	}
	return d
}

// SetResponse replaces the response of one chip.
func (d *Digitizer) SetResponse(chipID int, response ChipResponse) error {
	if chipID < 0 || chipID >= len(d.responses) {
		return fmt.Errorf("chip %d outside geometry with %d chips", chipID, len(d.responses))
	}
	d.responses[chipID] = response
	return nil
}

func (d *Digitizer) NChips() int {
	return len(d.chips)
}

// Process creates one digit per point at the pixel crossed by the
// midpoint of the step, with the deposited energy as charge. Points
// outside their chip are dropped. The returned container is reused by the
// next call.
func (d *Digitizer) Process(points []Point) *DigitContainer {
	d.container.Reset()
	seg := d.geom.Segmentation()

	for _, p := range points {
		if d.verbosity > 3 {
			message := fmt.Sprintf("Processing point: chip %d, track %d, eloss %g GeV", p.DetectorID, p.TrackID, p.EnergyLoss)
			d.logger.Info(message, "digitizer")
		}
		loc, err := d.geom.GlobalToLocal(int(p.DetectorID), p.MidPoint())
		if err != nil {
			if d.verbosity > 2 {
				d.logger.Info(fmt.Sprintf("Skipping point: %v", err), "digitizer")
			}
			continue
		}
		row, col, ok := seg.LocalToDetector(loc[0], loc[2])
		if !ok {
			if d.verbosity > 3 {
				d.logger.Info("Out of the chip", "digitizer")
			}
			continue
		}
		d.container.AddDigit(int(p.DetectorID), row, col, p.EnergyLoss*ElectronsPerGeV, p.Time, p.Label())
	}
	return d.container
}

// ProcessChips buffers the points in their chips and lets every chip
// response digitise them. Points on unknown chips are dropped.
func (d *Digitizer) ProcessChips(points []Point) []ChipDigit {
	d.container.Reset()
	for _, chip := range d.chips {
		chip.Reset()
	}

	dropped := 0
	for _, p := range points {
		chipID := int(p.DetectorID)
		if chipID < 0 || chipID >= len(d.chips) {
			dropped++
			continue
		}
		d.chips[chipID].InsertPoint(p)
	}
	if dropped > 0 && d.verbosity > 0 {
		d.logger.Info(fmt.Sprintf("Dropped %d points on unknown chips", dropped), "digitizer")
	}

	for i, chip := range d.chips {
		d.responses[i].DigitiseChip(chip, d.container)
	}
	return d.container.Digits()
}
