package simulation

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
	"github.com/jmbenlloch/pixreco_go/pkg/geometry"
)

// AlpideParams configures the pixel response.
type AlpideParams struct {
	// Threshold in electrons.
	Threshold float64 `json:"threshold"`
	// ChargeSharingSigma is the diffusion width in cm.
	ChargeSharingSigma float64 `json:"charge_sharing_sigma"`
	// NoisePerPixel is the probability of a noise hit per pixel and chip
	// digitisation.
	NoisePerPixel float64 `json:"noise_per_pixel"`
	Seed          uint64  `json:"seed"`
}

func DefaultAlpideParams() AlpideParams {
	return AlpideParams{
		Threshold:          50,
		ChargeSharingSigma: 7e-4,
		NoisePerPixel:      0,
		Seed:               1,
	}
}

// ChipResponse turns the points buffered in a chip into digits.
type ChipResponse interface {
	DigitiseChip(chip *Chip, out *DigitContainer)
}

// AlpideResponse spreads the deposited charge over a 3x3 neighbourhood
// with a Gaussian diffusion profile and keeps pixels above threshold.
type AlpideResponse struct {
	params AlpideParams
	geom   geometry.Geometry
	rng    *rand.Rand
}

func NewAlpideResponse(params AlpideParams, geom geometry.Geometry, chipIndex int) *AlpideResponse {
	return &AlpideResponse{
		params: params,
		geom:   geom,
		rng:    rand.New(rand.NewPCG(params.Seed, uint64(chipIndex))),
	}
}

type pendingCharge struct {
	charge float64
	time   float64
	labels []dataformats.MCCompLabel
}

func (r *AlpideResponse) DigitiseChip(chip *Chip, out *DigitContainer) {
	seg := r.geom.Segmentation()
	if len(chip.Points()) == 0 {
		r.addNoise(chip.Index(), seg, out)
		return
	}
	pending := make(map[pixelKey]*pendingCharge)

	for _, p := range chip.Points() {
		loc, err := r.geom.GlobalToLocal(chip.Index(), p.MidPoint())
		if err != nil {
			continue
		}
		row, col, ok := seg.LocalToDetector(loc[0], loc[2])
		if !ok {
			continue
		}
		electrons := p.EnergyLoss * ElectronsPerGeV
		for dr := -1; dr <= 1; dr++ {
			for dc := -1; dc <= 1; dc++ {
				pr, pc := row+dr, col+dc
				if pr < 0 || pc < 0 || pr >= seg.NRows() || pc >= seg.NCols() {
					continue
				}
				q := electrons * r.fraction(seg, loc[0], loc[2], pr, pc)
				if q <= 0 {
					continue
				}
				key := pixelKey{row: uint16(pr), col: uint16(pc)}
				acc, ok := pending[key]
				if !ok {
					acc = &pendingCharge{time: p.Time}
					pending[key] = acc
				}
				acc.charge += q
				acc.time = math.Min(acc.time, p.Time)
				acc.labels = append(acc.labels, p.Label())
			}
		}
	}

	for key, acc := range pending {
		if acc.charge < r.params.Threshold {
			continue
		}
		for i, label := range acc.labels {
			charge := 0.0
			if i == 0 {
				charge = acc.charge
			}
			out.AddDigit(chip.Index(), int(key.row), int(key.col), charge, acc.time, label)
		}
	}

	r.addNoise(chip.Index(), seg, out)
}

// fraction is the share of a Gaussian charge cloud centred at (x, z)
// collected by pixel (row, col).
func (r *AlpideResponse) fraction(seg geometry.Segmentation, x, z float64, row, col int) float64 {
	if r.params.ChargeSharingSigma <= 0 {
		crow, ccol, _ := seg.LocalToDetector(x, z)
		if crow == row && ccol == col {
			return 1
		}
		return 0
	}
	px, pz := seg.DetectorToLocal(row, col)
	nx := distuv.Normal{Mu: x, Sigma: r.params.ChargeSharingSigma}
	nz := distuv.Normal{Mu: z, Sigma: r.params.ChargeSharingSigma}
	fx := nx.CDF(px+0.5*geometry.PitchRow) - nx.CDF(px-0.5*geometry.PitchRow)
	fz := nz.CDF(pz+0.5*geometry.PitchCol) - nz.CDF(pz-0.5*geometry.PitchCol)
	return fx * fz
}

func (r *AlpideResponse) addNoise(chipIndex int, seg geometry.Segmentation, out *DigitContainer) {
	if r.params.NoisePerPixel <= 0 {
		return
	}
	poisson := distuv.Poisson{
		Lambda: r.params.NoisePerPixel * float64(seg.NRows()*seg.NCols()),
		Src:    r.rng,
	}
	nNoisy := int(poisson.Rand())
	for i := 0; i < nNoisy; i++ {
		row := r.rng.IntN(seg.NRows())
		col := r.rng.IntN(seg.NCols())
		out.AddDigit(chipIndex, row, col, r.params.Threshold, 0, dataformats.NoiseLabel())
	}
}
