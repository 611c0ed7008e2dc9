package clustering

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
	"github.com/jmbenlloch/pixreco_go/pkg/logging"
)

type frame struct {
	bc     int64
	digits []dataformats.Digit
}

func px(chip, row, col uint16) dataformats.Digit {
	return dataformats.Digit{ChipIndex: chip, Row: row, Col: col, Charge: 100}
}

func newReader(t *testing.T, frames ...frame) *DigitPixelReader {
	t.Helper()
	var digits []dataformats.Digit
	var rofs []dataformats.ROFRecord
	for i, f := range frames {
		rofs = append(rofs, dataformats.ROFRecord{
			BCData:     dataformats.InteractionRecordFromLong(f.bc),
			ROFrame:    int64(i),
			FirstEntry: int32(len(digits)),
			NEntries:   int32(len(f.digits)),
		})
		digits = append(digits, f.digits...)
	}
	reader := &DigitPixelReader{}
	reader.SetDigits(digits)
	reader.SetROFRecords(rofs)
	require.NoError(t, reader.Init())
	return reader
}

func newTestClusterer() *Clusterer {
	c := NewClusterer(logging.Nop())
	c.SetNChips(10)
	return c
}

func TestClusterizeSingleFrame(t *testing.T) {
	reader := newReader(t, frame{digits: []dataformats.Digit{
		px(1, 5, 5),
		px(0, 10, 10),
		px(0, 1, 2),
		px(0, 1, 1),
		px(0, 2, 3),
	}})

	res, err := newTestClusterer().Process(1, reader, ProcessOptions{Patterns: true})
	require.NoError(t, err)

	want := []dataformats.CompClusterExt{
		{ChipID: 0, Row: 1, Col: 1, PatternID: dataformats.InvalidPatternID},
		{ChipID: 0, Row: 10, Col: 10, PatternID: dataformats.InvalidPatternID},
		{ChipID: 1, Row: 5, Col: 5, PatternID: dataformats.InvalidPatternID},
	}
	if diff := cmp.Diff(want, res.Clusters); diff != "" {
		t.Errorf("clusters mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, res.ROFs, 1)
	assert.Equal(t, int32(3), res.ROFs[0].NEntries)
	assert.Nil(t, res.Labels)

	patterns, err := DecodePatterns(res.Clusters, res.Patterns, nil)
	require.NoError(t, err)
	require.Len(t, patterns, 3)
	assert.Equal(t, uint8(2), patterns[0].RowSpan)
	assert.Equal(t, uint8(3), patterns[0].ColSpan)
	assert.Equal(t, 3, patterns[0].NPixels())
	assert.True(t, patterns[0].IsSet(1, 2))
	assert.Equal(t, 1, patterns[1].NPixels())
}

func TestOverflowMaskingAtAddressLimit(t *testing.T) {
	frames := []frame{
		{bc: 0, digits: []dataformats.Digit{px(0, 0, 7), px(0, 3, 0)}},
		{bc: 100, digits: []dataformats.Digit{px(0, math.MaxUint16, 7), px(0, 3, math.MaxUint16)}},
	}

	c := newTestClusterer()
	c.SetMaxBCSeparationToMask(901)
	c.SetMaxRowColDiffToMask(1)
	res, err := c.Process(1, newReader(t, frames...), ProcessOptions{})
	require.NoError(t, err)

	require.Len(t, res.ROFs, 2)
	assert.Equal(t, int32(2), res.ROFs[1].NEntries)
}

func TestClusterizeWithoutPatterns(t *testing.T) {
	reader := newReader(t, frame{digits: []dataformats.Digit{px(0, 1, 1)}})
	res, err := newTestClusterer().Process(1, reader, ProcessOptions{})
	require.NoError(t, err)
	assert.Len(t, res.Clusters, 1)
	assert.Empty(t, res.Patterns)
}

func TestClusterizeWithDictionary(t *testing.T) {
	single := dataformats.NewClusterPattern(1, 1)
	single.Set(0, 0)
	dict := NewTopologyDictionary()
	dict.Build([]dataformats.ClusterPattern{single}, 0)
	require.Equal(t, 1, dict.Size())

	reader := newReader(t, frame{digits: []dataformats.Digit{px(0, 1, 1), px(0, 1, 2), px(0, 9, 9)}})
	c := newTestClusterer()
	c.SetDictionary(dict)
	res, err := c.Process(1, reader, ProcessOptions{Patterns: true})
	require.NoError(t, err)

	require.Len(t, res.Clusters, 2)
	assert.Equal(t, dataformats.InvalidPatternID, res.Clusters[0].PatternID)
	assert.Equal(t, uint16(0), res.Clusters[1].PatternID)

	patterns, err := DecodePatterns(res.Clusters, res.Patterns, dict)
	require.NoError(t, err)
	assert.Equal(t, 2, patterns[0].NPixels())
	assert.Equal(t, single, patterns[1])
}

func TestOverflowMasking(t *testing.T) {
	frames := []frame{
		{bc: 0, digits: []dataformats.Digit{px(0, 5, 5), px(2, 0, 0)}},
		{bc: 891, digits: []dataformats.Digit{px(0, 5, 6), px(0, 20, 20), px(1, 5, 5)}},
		{bc: 100000, digits: []dataformats.Digit{px(0, 20, 20)}},
	}

	c := newTestClusterer()
	c.SetMaxBCSeparationToMask(901)
	c.SetMaxRowColDiffToMask(1)
	res, err := c.Process(1, newReader(t, frames...), ProcessOptions{})
	require.NoError(t, err)

	require.Len(t, res.ROFs, 3)
	assert.Equal(t, int32(2), res.ROFs[1].NEntries)
	first, last := res.ROFs[1].EntriesRange()
	assert.Equal(t, []dataformats.CompClusterExt{
		{ChipID: 0, Row: 20, Col: 20, PatternID: dataformats.InvalidPatternID},
		{ChipID: 1, Row: 5, Col: 5, PatternID: dataformats.InvalidPatternID},
	}, res.Clusters[first:last])
	assert.Equal(t, int32(1), res.ROFs[2].NEntries)

	c.SetMaxBCSeparationToMask(0)
	res, err = c.Process(1, newReader(t, frames...), ProcessOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), res.ROFs[1].NEntries)
}

func TestNoiseMasking(t *testing.T) {
	c := newTestClusterer()
	c.SetNoiseMap(NewNoiseMapFromPixels(10, []dataformats.NoisyPixel{
		{ChipID: 0, Row: 1, Col: 1},
		{ChipID: 20, Row: 1, Col: 1},
	}))
	reader := newReader(t, frame{digits: []dataformats.Digit{px(0, 1, 1), px(0, 3, 3)}})
	res, err := c.Process(1, reader, ProcessOptions{})
	require.NoError(t, err)
	require.Len(t, res.Clusters, 1)
	assert.Equal(t, uint16(3), res.Clusters[0].Row)
}

func TestLargeClusterIsSplit(t *testing.T) {
	var digits []dataformats.Digit
	for col := uint16(0); col < 200; col++ {
		digits = append(digits, px(0, 0, col))
	}
	res, err := newTestClusterer().Process(1, newReader(t, frame{digits: digits}), ProcessOptions{Patterns: true})
	require.NoError(t, err)

	require.Len(t, res.Clusters, 2)
	assert.Equal(t, uint16(0), res.Clusters[0].Col)
	assert.Equal(t, uint16(128), res.Clusters[1].Col)
	patterns, err := DecodePatterns(res.Clusters, res.Patterns, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(128), patterns[0].ColSpan)
	assert.Equal(t, uint8(72), patterns[1].ColSpan)
}

func TestLabelPropagation(t *testing.T) {
	reader := newReader(t, frame{digits: []dataformats.Digit{px(0, 1, 1), px(0, 1, 2), px(0, 8, 8)}})
	truth := dataformats.NewMCTruthContainer()
	require.NoError(t, truth.AddElement(0, dataformats.NewMCCompLabel(1, 0, 0)))
	require.NoError(t, truth.AddElements(1, []dataformats.MCCompLabel{
		dataformats.NewMCCompLabel(1, 0, 0),
		dataformats.NewMCCompLabel(2, 0, 0),
	}))
	require.NoError(t, truth.AddElement(2, dataformats.NoiseLabel()))
	reader.SetDigitsMCTruth(truth)

	res, err := newTestClusterer().Process(1, reader, ProcessOptions{Labels: true})
	require.NoError(t, err)

	require.NotNil(t, res.Labels)
	require.Equal(t, 2, res.Labels.IndexedSize())
	assert.Equal(t, []dataformats.MCCompLabel{
		dataformats.NewMCCompLabel(1, 0, 0),
		dataformats.NewMCCompLabel(2, 0, 0),
	}, res.Labels.Labels(0))
	assert.True(t, res.Labels.Labels(1)[0].IsNoise())
}

func TestOutputIndependentOfThreads(t *testing.T) {
	var frames []frame
	for i := 0; i < 17; i++ {
		var digits []dataformats.Digit
		for j := 0; j < 12; j++ {
			chip := uint16((i + j) % 5)
			digits = append(digits, px(chip, uint16((i*7+j*3)%40), uint16((i*11+j*5)%60)))
		}
		frames = append(frames, frame{bc: int64(i) * 891, digits: digits})
	}

	c := newTestClusterer()
	c.SetMaxBCSeparationToMask(901)
	c.SetMaxRowColDiffToMask(1)
	opts := ProcessOptions{Patterns: true}

	serial, err := c.Process(1, newReader(t, frames...), opts)
	require.NoError(t, err)
	for _, n := range []int{0, 2, 4, 32} {
		parallel, err := c.Process(n, newReader(t, frames...), opts)
		require.NoError(t, err)
		if diff := cmp.Diff(serial, parallel); diff != "" {
			t.Errorf("%d threads differ (-serial +parallel):\n%s", n, diff)
		}
	}
}

func TestChipOutOfRange(t *testing.T) {
	reader := newReader(t, frame{digits: []dataformats.Digit{px(11, 0, 0)}})
	_, err := newTestClusterer().Process(2, reader, ProcessOptions{})
	require.ErrorIs(t, err, ErrChipOutOfRange)
}

func TestReader(t *testing.T) {
	reader := &DigitPixelReader{}
	reader.SetDigits([]dataformats.Digit{px(1, 0, 0), px(0, 3, 1), px(0, 2, 1)})
	reader.SetROFRecords([]dataformats.ROFRecord{{FirstEntry: 0, NEntries: 3}})

	_, _, err := reader.ReadROF(0)
	require.ErrorIs(t, err, ErrReaderNotInitialized)

	require.NoError(t, reader.Init())
	_, chips, ok, err := reader.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, chips, 2)
	assert.Equal(t, []PixelData{{Row: 2, Col: 1, DigitID: 2}, {Row: 3, Col: 1, DigitID: 1}}, chips[0].Pixels)

	_, _, ok, err = reader.Next()
	require.NoError(t, err)
	assert.False(t, ok)

	reader.SetROFRecords([]dataformats.ROFRecord{{FirstEntry: 2, NEntries: 2}})
	require.Error(t, reader.Init())
}

func TestMaxBCSeparationToMask(t *testing.T) {
	cl := DefaultClustererParam()
	alp := DefaultAlpideParam()
	assert.Equal(t, int64(901), MaxBCSeparationToMask(cl, alp, true))
	assert.Equal(t, int64(250), MaxBCSeparationToMask(cl, alp, false))
}

func TestDictionarySaveLoad(t *testing.T) {
	var patterns []dataformats.ClusterPattern
	add := func(rows, cols, n int) {
		p := dataformats.NewClusterPattern(rows, cols)
		p.Set(0, 0)
		p.Set(rows-1, cols-1)
		for i := 0; i < n; i++ {
			patterns = append(patterns, p)
		}
	}
	add(1, 2, 5)
	add(3, 3, 10)
	add(2, 9, 1)

	dict := NewTopologyDictionary()
	dict.Build(patterns, 0.1)
	require.Equal(t, 2, dict.Size())
	entry, err := dict.Entry(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), entry.Count)
	assert.InDelta(t, 10.0/16, entry.Frequency, 1e-12)
	assert.InDelta(t, 1.5, entry.COGRow, 1e-12)

	path := filepath.Join(t.TempDir(), "ITSdictionary.bin")
	require.NoError(t, dict.Save(path))
	loaded, err := LoadTopologyDictionary(path)
	require.NoError(t, err)

	if diff := cmp.Diff(dict.entries, loaded.entries); diff != "" {
		t.Errorf("entries differ (-saved +loaded):\n%s", diff)
	}
	id, ok := loaded.Find(patterns[0])
	require.True(t, ok)
	assert.Equal(t, uint16(1), id)

	_, err = loaded.Pattern(2)
	require.ErrorIs(t, err, ErrUnknownPattern)

	_, err = LoadTopologyDictionary(filepath.Join(t.TempDir(), "missing.bin"))
	require.Error(t, err)
}
