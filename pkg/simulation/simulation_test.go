package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
	"github.com/jmbenlloch/pixreco_go/pkg/geometry"
	"github.com/jmbenlloch/pixreco_go/pkg/logging"
)

func newTestGrid(t *testing.T) *geometry.Grid {
	t.Helper()
	grid, err := geometry.NewGrid(4, 2)
	require.NoError(t, err)
	return grid
}

// pointAt returns a point whose step is centred on pixel (row, col).
func pointAt(t *testing.T, g geometry.Geometry, chip, row, col int, eloss float64, track int32) Point {
	t.Helper()
	pos, err := geometry.PixelCentre(g, chip, row, col)
	require.NoError(t, err)
	return Point{
		TrackID:    track,
		DetectorID: int32(chip),
		X:          pos[0], Y: pos[1] + 1e-4, Z: pos[2],
		StartX: pos[0], StartY: pos[1] - 1e-4, StartZ: pos[2],
		Time:       5,
		EnergyLoss: eloss,
	}
}

func TestDigitizerProcess(t *testing.T) {
	grid := newTestGrid(t)
	d := NewDigitizer(grid, DefaultAlpideParams(), logging.Nop(), 0)

	points := []Point{
		pointAt(t, grid, 1, 10, 20, 1e-6, 7),
		pointAt(t, grid, 1, 10, 20, 1e-6, 8),
		pointAt(t, grid, 3, 511, 1023, 2e-6, 9),
		{DetectorID: 99, EnergyLoss: 1e-6},
	}
	container := d.Process(points)

	require.Equal(t, 2, container.Size())
	digits := container.ChipDigits(1)
	require.Len(t, digits, 1)
	assert.Equal(t, uint16(10), digits[0].Row)
	assert.Equal(t, uint16(20), digits[0].Col)
	assert.Equal(t, int32(556), digits[0].Charge)
	assert.Len(t, digits[0].Labels, 2)

	digits = container.ChipDigits(3)
	require.Len(t, digits, 1)
	assert.Equal(t, uint16(511), digits[0].Row)
	assert.Equal(t, uint16(1023), digits[0].Col)
}

func TestProcessChipsThreshold(t *testing.T) {
	grid := newTestGrid(t)
	params := DefaultAlpideParams()
	params.ChargeSharingSigma = 0
	d := NewDigitizer(grid, params, logging.Nop(), 0)

	digits := d.ProcessChips([]Point{
		pointAt(t, grid, 0, 100, 100, 1e-7, 1),
		pointAt(t, grid, 2, 200, 300, 1e-6, 2),
		{DetectorID: -1},
	})

	require.Len(t, digits, 1)
	assert.Equal(t, uint16(2), digits[0].ChipIndex)
	assert.Equal(t, int32(278), digits[0].Charge)
	assert.Equal(t, []dataformats.MCCompLabel{dataformats.NewMCCompLabel(2, 0, 0)}, digits[0].Labels)
}

func TestProcessChipsChargeSharing(t *testing.T) {
	grid := newTestGrid(t)
	d := NewDigitizer(grid, DefaultAlpideParams(), logging.Nop(), 0)

	digits := d.ProcessChips([]Point{pointAt(t, grid, 0, 100, 100, 1e-4, 1)})

	require.Len(t, digits, 5)
	fired := make(map[[2]uint16]int32)
	for _, digit := range digits {
		fired[[2]uint16{digit.Row, digit.Col}] = digit.Charge
	}
	assert.Contains(t, fired, [2]uint16{100, 100})
	assert.Contains(t, fired, [2]uint16{99, 100})
	assert.Contains(t, fired, [2]uint16{101, 100})
	assert.Contains(t, fired, [2]uint16{100, 99})
	assert.Contains(t, fired, [2]uint16{100, 101})
	assert.Greater(t, fired[[2]uint16{100, 100}], fired[[2]uint16{100, 101}])
}

func TestProcessChipsNoise(t *testing.T) {
	grid := newTestGrid(t)
	params := DefaultAlpideParams()
	params.NoisePerPixel = 1e-4
	d := NewDigitizer(grid, params, logging.Nop(), 0)

	first := d.ProcessChips(nil)
	require.NotEmpty(t, first)
	for _, digit := range first {
		require.Len(t, digit.Labels, 1)
		assert.True(t, digit.Labels[0].IsNoise())
	}

	again := NewDigitizer(grid, params, logging.Nop(), 0).ProcessChips(nil)
	assert.Equal(t, first, again)
}

func TestSetResponse(t *testing.T) {
	grid := newTestGrid(t)
	d := NewDigitizer(grid, DefaultAlpideParams(), logging.Nop(), 0)
	assert.Equal(t, 4, d.NChips())
	require.Error(t, d.SetResponse(4, nil))
}

func TestContainerMergeKeepsLabels(t *testing.T) {
	c := NewDigitContainer(2)
	for track := int32(0); track < 5; track++ {
		c.AddDigit(0, 3, 4, 10, float64(10-track), dataformats.NewMCCompLabel(track, 0, 0))
	}
	c.AddDigit(0, 3, 4, 10, 1, dataformats.NewMCCompLabel(0, 0, 0))
	assert.Nil(t, c.AddDigit(2, 0, 0, 1, 0, dataformats.NoiseLabel()))

	digits := c.Digits()
	require.Len(t, digits, 1)
	assert.Equal(t, int32(60), digits[0].Charge)
	assert.Equal(t, 1.0, digits[0].Time)
	assert.Len(t, digits[0].Labels, MaxLabelsPerDigit)

	c.Reset()
	assert.Zero(t, c.Size())
}

func TestContainerDigitsOrdered(t *testing.T) {
	c := NewDigitContainer(3)
	pixels := [][3]int{{2, 9, 1}, {0, 4, 8}, {2, 1, 1}, {0, 7, 2}, {0, 3, 8}, {1, 0, 0}}
	for _, px := range pixels {
		c.AddDigit(px[0], px[1], px[2], 10, 0, dataformats.NoiseLabel())
	}

	var got [][3]int
	for _, d := range c.Digits() {
		got = append(got, [3]int{int(d.ChipIndex), int(d.Row), int(d.Col)})
	}
	want := [][3]int{{0, 7, 2}, {0, 3, 8}, {0, 4, 8}, {1, 0, 0}, {2, 1, 1}, {2, 9, 1}}
	assert.Equal(t, want, got)
}

func chipDigit(chip, row, col uint16, charge int32, time float64, track int32) ChipDigit {
	return ChipDigit{
		Digit:  dataformats.Digit{ChipIndex: chip, Row: row, Col: col, Charge: charge},
		Time:   time,
		Labels: []dataformats.MCCompLabel{dataformats.NewMCCompLabel(track, 0, 0)},
	}
}

func TestFramerContinuous(t *testing.T) {
	params := DefaultReadoutParams()
	framer, err := NewFramer(params)
	require.NoError(t, err)
	rofLength := float64(params.ROFrameLengthInBC) * dataformats.LHCBunchSpacingNS

	framer.AddEvent(0, 0, []ChipDigit{
		chipDigit(1, 5, 5, 100, 10, 1),
		chipDigit(0, 2, 2, 100, 10, 2),
	})
	framer.AddEvent(1, 3*rofLength+10, []ChipDigit{chipDigit(0, 7, 7, 100, 0, 3)})
	framer.AddEvent(2, 10, nil)

	out, err := framer.Flush()
	require.NoError(t, err)

	require.Len(t, out.ROFs, 4)
	assert.Equal(t, int32(2), out.ROFs[0].NEntries)
	assert.Zero(t, out.ROFs[1].NEntries)
	assert.Zero(t, out.ROFs[2].NEntries)
	assert.Equal(t, int32(2), out.ROFs[3].FirstEntry)
	assert.Equal(t, int64(3), out.ROFs[3].ROFrame)
	assert.Equal(t, int64(3*params.ROFrameLengthInBC), out.ROFs[3].BCData.ToLong())

	require.Len(t, out.Digits, 3)
	assert.Equal(t, uint16(0), out.Digits[0].ChipIndex)
	assert.Equal(t, uint16(1), out.Digits[1].ChipIndex)
	assert.Equal(t, 3, out.Labels.IndexedSize())
	assert.Equal(t, int32(3), out.Labels.Labels(2)[0].TrackID)

	require.Len(t, out.MC2ROFs, 3)
	assert.Equal(t, dataformats.MC2ROFRecord{EventRecordID: 0, ROFRecordID: 0}, out.MC2ROFs[0])
	assert.Equal(t, dataformats.MC2ROFRecord{EventRecordID: 1, ROFRecordID: 3, MinROF: 3, MaxROF: 3}, out.MC2ROFs[1])
	assert.Equal(t, int32(-1), out.MC2ROFs[2].ROFRecordID)

	empty, err := framer.Flush()
	require.NoError(t, err)
	assert.Empty(t, empty.ROFs)
}

func TestFramerOrdersFrames(t *testing.T) {
	params := DefaultReadoutParams()
	framer, err := NewFramer(params)
	require.NoError(t, err)
	rofLength := float64(params.ROFrameLengthInBC) * dataformats.LHCBunchSpacingNS

	framer.AddEvent(0, 2*rofLength+10, []ChipDigit{chipDigit(1, 3, 3, 100, 0, 1), chipDigit(0, 8, 3, 100, 0, 1)})
	framer.AddEvent(1, 10, []ChipDigit{chipDigit(0, 2, 2, 100, 0, 2)})
	out, err := framer.Flush()
	require.NoError(t, err)

	require.Len(t, out.ROFs, 3)
	for i, rof := range out.ROFs {
		assert.Equal(t, int64(i), rof.ROFrame)
	}
	require.Len(t, out.Digits, 3)
	assert.Equal(t, uint16(2), out.Digits[0].Row)
	assert.Equal(t, uint16(0), out.Digits[1].ChipIndex)
	assert.Equal(t, uint16(1), out.Digits[2].ChipIndex)
	assert.Equal(t, int32(2), out.MC2ROFs[0].ROFRecordID)
}

func TestFramerMergesPileUp(t *testing.T) {
	framer, err := NewFramer(DefaultReadoutParams())
	require.NoError(t, err)

	framer.AddEvent(0, 0, []ChipDigit{chipDigit(0, 1, 1, 100, 0, 1)})
	framer.AddEvent(1, 25, []ChipDigit{chipDigit(0, 1, 1, 50, 0, 2)})
	out, err := framer.Flush()
	require.NoError(t, err)

	require.Len(t, out.Digits, 1)
	assert.Equal(t, int32(150), out.Digits[0].Charge)
	assert.Len(t, out.Labels.Labels(0), 2)
}

func TestFramerTriggered(t *testing.T) {
	params := ReadoutParams{Continuous: false, ROFrameLengthTrig: 6000}
	framer, err := NewFramer(params)
	require.NoError(t, err)

	framer.AddEvent(0, 1000, []ChipDigit{chipDigit(0, 1, 1, 100, 0, 1), chipDigit(0, 2, 2, 100, 7000, 2)})
	framer.AddEvent(1, 1000+dataformats.LHCOrbitNS, nil)
	out, err := framer.Flush()
	require.NoError(t, err)

	require.Len(t, out.ROFs, 2)
	assert.Equal(t, int32(1), out.ROFs[0].NEntries)
	assert.Equal(t, dataformats.InteractionRecordFromNS(1000), out.ROFs[0].BCData)
	assert.Equal(t, uint32(1), out.ROFs[1].BCData.Orbit)
	assert.Equal(t, int32(1), out.MC2ROFs[1].ROFRecordID)
}

func TestFramerRejectsBadLength(t *testing.T) {
	_, err := NewFramer(ReadoutParams{Continuous: true})
	require.Error(t, err)
}

func TestGenerator(t *testing.T) {
	grid := newTestGrid(t)
	params := DefaultGeneratorParams()
	gen, err := NewGenerator(grid, params)
	require.NoError(t, err)

	previous := -1.0
	nPoints := 0
	for i := range 200 {
		ev, err := gen.Next()
		require.NoError(t, err)
		assert.Equal(t, int32(i), ev.ID)
		assert.Greater(t, ev.Time, previous)
		previous = ev.Time
		for _, p := range ev.Points {
			assert.Less(t, int(p.DetectorID), grid.NumberOfChips())
			assert.Positive(t, p.EnergyLoss)
			assert.Equal(t, ev.ID, p.EventID)
		}
		nPoints += len(ev.Points)
	}
	assert.InDelta(t, params.MeanTracks, float64(nPoints)/200, 1)

	// same seed, same events
	a, err := NewGenerator(grid, params)
	require.NoError(t, err)
	b, err := NewGenerator(grid, params)
	require.NoError(t, err)
	evA, err := a.Next()
	require.NoError(t, err)
	evB, err := b.Next()
	require.NoError(t, err)
	assert.Equal(t, evA, evB)

	_, err = NewGenerator(grid, GeneratorParams{})
	require.Error(t, err)
}
