package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
	"github.com/jmbenlloch/pixreco_go/pkg/simulation"
)

func TestHitsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "o2sim_HitsITS.h5")
	events := []simulation.Event{
		{ID: 0, Time: 12.5, Points: []simulation.Point{
			{TrackID: 1, DetectorID: 3, X: 0.1, Y: 0.2, Z: 0.3, StartX: 0.1, StartY: 0.1, StartZ: 0.3, Time: 1, EnergyLoss: 1e-6},
			{TrackID: 2, DetectorID: 4, X: 1.1, EnergyLoss: 2e-6},
		}},
		{ID: 1, SourceID: 1, Time: 1000},
		{ID: 2, Time: 2000, Points: []simulation.Point{{TrackID: 5, EventID: 2, DetectorID: 7}}},
	}

	w, err := NewHitsWriter(path, DefaultCompression)
	require.NoError(t, err)
	for _, ev := range events {
		require.NoError(t, w.WriteEvent(ev))
	}
	assert.Equal(t, 3, w.NEvents())
	require.NoError(t, w.Close())

	r, err := OpenHitsFile(path)
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, 3, r.NEvents())

	got, err := r.ReadEvents(0, 10)
	require.NoError(t, err)
	if diff := cmp.Diff(events, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("events mismatch (-written +read):\n%s", diff)
	}

	tail, err := r.ReadEvents(2, 5)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, int32(2), tail[0].ID)
}

func sampleLabels(t *testing.T, n int) *dataformats.MCTruthContainer {
	t.Helper()
	labels := dataformats.NewMCTruthContainer()
	for i := 0; i < n; i++ {
		require.NoError(t, labels.AddElement(uint32(i), dataformats.NewMCCompLabel(int32(i), 0, 0)))
	}
	return labels
}

func TestDigitsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "itsdigits.h5")
	frames := []DigitsTimeframe{
		{
			Digits: []dataformats.Digit{{ChipIndex: 1, Row: 2, Col: 3, Charge: 100}, {ChipIndex: 2, Row: 5, Col: 6, Charge: 70}},
			ROFs: []dataformats.ROFRecord{
				{BCData: dataformats.InteractionRecord{Orbit: 1, BC: 891}, ROFrame: 5, FirstEntry: 0, NEntries: 2},
			},
			MC2ROFs: []dataformats.MC2ROFRecord{{EventRecordID: 0, ROFRecordID: 0, MinROF: 5, MaxROF: 5}},
			Labels:  sampleLabels(t, 2),
		},
		{
			Digits: []dataformats.Digit{{ChipIndex: 9, Row: 1, Col: 1, Charge: 60}},
			ROFs:   []dataformats.ROFRecord{{ROFrame: 6, NEntries: 1}},
		},
	}

	w, err := NewDigitsWriter(path, DefaultCompression)
	require.NoError(t, err)
	for _, tf := range frames {
		require.NoError(t, w.WriteTimeframe(tf))
	}
	require.NoError(t, w.WriteParameters(struct {
		Threshold  float64 `json:"threshold"`
		Continuous bool
		Name       string
	}{Threshold: 50, Continuous: true, Name: "ignored"}))
	require.NoError(t, w.Close())

	r, err := OpenDigitsFile(path)
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, 2, r.NTimeframes())

	for i, want := range frames {
		got, err := r.ReadTimeframe(i)
		require.NoError(t, err)
		opts := []cmp.Option{cmpopts.EquateEmpty(), cmp.AllowUnexported(dataformats.MCTruthContainer{})}
		if diff := cmp.Diff(want, got, opts...); diff != "" {
			t.Errorf("timeframe %d mismatch (-written +read):\n%s", i, diff)
		}
	}

	_, err = r.ReadTimeframe(2)
	var readErr *ErrReadDataset
	require.ErrorAs(t, err, &readErr)

	params, err := r.Parameters()
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"threshold": 50, "Continuous": 1}, params)
}

func TestClustersRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "o2clus_its.h5")
	pattern := dataformats.NewClusterPattern(2, 2)
	pattern.Set(0, 0)
	pattern.Set(1, 1)
	tf := ClustersTimeframe{
		Clusters: []dataformats.CompClusterExt{
			{ChipID: 1, Row: 2, Col: 3, PatternID: 7},
			{ChipID: 1, Row: 20, Col: 30, PatternID: dataformats.InvalidPatternID},
		},
		Patterns: pattern.AppendTo(nil),
		ROFs:     []dataformats.ROFRecord{{ROFrame: 0, NEntries: 2}},
		MC2ROFs:  []dataformats.MC2ROFRecord{{EventRecordID: 3, ROFRecordID: -1}},
		Labels:   sampleLabels(t, 2),
	}

	w, err := NewClustersWriter(path, 0)
	require.NoError(t, err)
	require.NoError(t, w.WriteTimeframe(tf))
	require.NoError(t, w.WriteTimeframe(ClustersTimeframe{}))
	assert.Equal(t, 2, w.NTimeframes())
	require.NoError(t, w.Close())

	r, err := OpenClustersFile(path)
	require.NoError(t, err)
	defer r.Close()

	got, err := r.ReadTimeframe(0)
	require.NoError(t, err)
	opts := []cmp.Option{cmpopts.EquateEmpty(), cmp.AllowUnexported(dataformats.MCTruthContainer{})}
	if diff := cmp.Diff(tf, got, opts...); diff != "" {
		t.Errorf("timeframe mismatch (-written +read):\n%s", diff)
	}

	empty, err := r.ReadTimeframe(1)
	require.NoError(t, err)
	assert.Empty(t, empty.Clusters)
	assert.Nil(t, empty.Labels)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := OpenDigitsFile(filepath.Join(t.TempDir(), "missing.h5"))
	var openErr *ErrOpenFile
	require.True(t, errors.As(err, &openErr))
	assert.Contains(t, openErr.Filename, "missing.h5")
}

func TestOpenWrongFileKind(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "hits.h5")
	w, err := NewHitsWriter(filename, 0)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = OpenDigitsFile(filename)
	var groupErr *ErrCreateGroup
	require.True(t, errors.As(err, &groupErr))
	assert.Equal(t, digitsGroupName, groupErr.GroupName)

	_, err = OpenClustersFile(filename)
	require.True(t, errors.As(err, &groupErr))

	// the aborted readers released the file
	r, err := OpenHitsFile(filename)
	require.NoError(t, err)
	require.NoError(t, r.Close())
}

func TestParameterEntries(t *testing.T) {
	entries := parameterEntries(&struct {
		A int    `hdf5:"alpha"`
		B uint16 `json:"beta,omitempty"`
		c int
	}{A: -3, B: 4})
	require.Len(t, entries, 2)
	assert.Equal(t, "alpha", convertFromHdf5String(entries[0].name))
	assert.Equal(t, -3.0, entries[0].value)
	assert.Equal(t, "beta", convertFromHdf5String(entries[1].name))
	assert.Nil(t, parameterEntries(3))
}
