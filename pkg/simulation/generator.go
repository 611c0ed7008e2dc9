package simulation

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/jmbenlloch/pixreco_go/pkg/geometry"
)

// GeneratorParams configures the toy event generator.
type GeneratorParams struct {
	// MeanTracks is the mean number of tracks per event.
	MeanTracks float64 `json:"mean_tracks"`
	// MeanSpacingNS is the mean time between events.
	MeanSpacingNS float64 `json:"mean_spacing_ns"`
	// EnergyLoss is the mean deposit of a track in GeV, EnergyLossSigma
	// its spread.
	EnergyLoss      float64 `json:"energy_loss"`
	EnergyLossSigma float64 `json:"energy_loss_sigma"`
	Seed            uint64  `json:"seed"`
}

func DefaultGeneratorParams() GeneratorParams {
	return GeneratorParams{
		MeanTracks:      5,
		MeanSpacingNS:   50000,
		EnergyLoss:      1.5e-5,
		EnergyLossSigma: 3e-6,
		Seed:            1,
	}
}

// Generator produces events of straight tracks crossing random pixels.
type Generator struct {
	geom    geometry.Geometry
	tracks  distuv.Poisson
	spacing distuv.Exponential
	eloss   distuv.Normal
	rng     *rand.Rand
	nextID  int32
	time    float64
}

func NewGenerator(geom geometry.Geometry, params GeneratorParams) (*Generator, error) {
	if params.MeanTracks <= 0 || params.MeanSpacingNS <= 0 || params.EnergyLoss <= 0 {
		return nil, fmt.Errorf("invalid generator parameters: %+v", params)
	}
	rng := rand.New(rand.NewPCG(params.Seed, 0x5eed))
	return &Generator{
		geom:    geom,
		tracks:  distuv.Poisson{Lambda: params.MeanTracks, Src: rng},
		spacing: distuv.Exponential{Rate: 1 / params.MeanSpacingNS, Src: rng},
		eloss:   distuv.Normal{Mu: params.EnergyLoss, Sigma: params.EnergyLossSigma, Src: rng},
		rng:     rng,
	}, nil
}

// Next returns the next event. Event times increase.
func (g *Generator) Next() (Event, error) {
	ev := Event{ID: g.nextID, Time: g.time}
	g.nextID++
	g.time += g.spacing.Rand()

	seg := g.geom.Segmentation()
	nTracks := int(g.tracks.Rand())
	for track := range nTracks {
		chip := g.rng.IntN(g.geom.NumberOfChips())
		row, col := g.rng.IntN(seg.NRows()), g.rng.IntN(seg.NCols())
		pos, err := geometry.PixelCentre(g.geom, chip, row, col)
		if err != nil {
			return Event{}, err
		}
		eloss := g.eloss.Rand()
		if eloss <= 0 {
			continue
		}
		ev.Points = append(ev.Points, Point{
			TrackID:    int32(track),
			EventID:    ev.ID,
			DetectorID: int32(chip),
			X:          pos[0], Y: pos[1] + 1e-4, Z: pos[2],
			StartX: pos[0], StartY: pos[1] - 1e-4, StartZ: pos[2],
			Time:       0,
			EnergyLoss: eloss,
		})
	}
	return ev, nil
}
