package grp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
)

func TestSaveLoad(t *testing.T) {
	g := New(523897)
	g.AddDetReadOut(dataformats.ITS, true)
	g.AddDetReadOut(dataformats.MID, false)
	g.AddDetReadOut(dataformats.ITS, true)

	for _, name := range []string{"o2sim_grp.json", "o2sim_grp.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, g.Save(path))

			loaded, err := LoadFrom(path)
			require.NoError(t, err)
			assert.Equal(t, g, loaded)
			assert.True(t, loaded.IsDetContinuousReadOut(dataformats.ITS))
			assert.False(t, loaded.IsDetContinuousReadOut(dataformats.MID))
			assert.True(t, loaded.IsDetReadOut(dataformats.MID))
			assert.False(t, loaded.IsDetReadOut(dataformats.TPC))
		})
	}
}

func TestLoadYAMLDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grp.yml")
	content := "run: 12\ndetectors_readout: [ITS]\ndetectors_continuous_readout: [ITS]\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	g, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 12, g.Run)
	assert.Equal(t, uint32(DefaultNHBFPerTF), g.NHBFPerTF)
	assert.Equal(t, int64(128*3564), g.TimeframeLengthInBC())
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFrom(filepath.Join(dir, "missing.json"))
	require.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"run": "x"}`), 0o644))
	_, err = LoadFrom(bad)
	require.Error(t, err)

	unknown := filepath.Join(dir, "unknown.json")
	require.NoError(t, os.WriteFile(unknown, []byte(`{"detectors_readout": ["XYZ"], "detectors_continuous_readout": ["ITS"]}`), 0o644))
	_, err = LoadFrom(unknown)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "XYZ")
	assert.Contains(t, err.Error(), "not read out")
}
