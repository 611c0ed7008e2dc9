package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentationRoundTrip(t *testing.T) {
	seg := SegmentationAlpide{}
	for _, px := range [][2]int{{0, 0}, {511, 1023}, {256, 17}, {3, 900}} {
		x, z := seg.DetectorToLocal(px[0], px[1])
		row, col, ok := seg.LocalToDetector(x, z)
		require.True(t, ok)
		assert.Equal(t, px[0], row)
		assert.Equal(t, px[1], col)
	}
}

func TestSegmentationOutside(t *testing.T) {
	seg := SegmentationAlpide{}
	_, _, ok := seg.LocalToDetector(ActiveSizeRows, 0)
	assert.False(t, ok)
	_, _, ok = seg.LocalToDetector(0, ActiveSizeCols)
	assert.False(t, ok)
	row, col, ok := seg.LocalToDetector(0, 0)
	require.True(t, ok)
	assert.Equal(t, NRows/2, row)
	assert.Equal(t, NCols/2, col)
}

func TestGrid(t *testing.T) {
	g, err := NewGrid(6, 3)
	require.NoError(t, err)
	assert.Equal(t, 6, g.NumberOfChips())

	glo, err := PixelCentre(g, 4, 10, 20)
	require.NoError(t, err)
	loc, err := g.GlobalToLocal(4, glo)
	require.NoError(t, err)
	row, col, ok := g.Segmentation().LocalToDetector(loc[0], loc[2])
	require.True(t, ok)
	assert.Equal(t, 10, row)
	assert.Equal(t, 20, col)

	_, err = g.GlobalToLocal(6, glo)
	require.Error(t, err)

	_, err = NewGrid(0, 1)
	require.Error(t, err)
}
