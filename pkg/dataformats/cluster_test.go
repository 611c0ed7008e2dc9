package dataformats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClusterPatternStream(t *testing.T) {
	// L shaped 3x2 cluster
	p := NewClusterPattern(3, 2)
	p.Set(0, 0)
	p.Set(1, 0)
	p.Set(2, 0)
	p.Set(2, 1)

	q := NewClusterPattern(1, 1)
	q.Set(0, 0)

	stream := q.AppendTo(p.AppendTo(nil))
	require.Len(t, stream, 2+1+2+1)

	got, next, err := ReadClusterPattern(stream, 0)
	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.Equal(t, 4, got.NPixels())

	got2, end, err := ReadClusterPattern(stream, next)
	require.NoError(t, err)
	assert.Equal(t, q, got2)
	assert.Equal(t, len(stream), end)

	_, _, err = ReadClusterPattern(stream, end)
	require.ErrorIs(t, err, ErrTruncatedPattern)
}

func TestClusterPatternBits(t *testing.T) {
	p := NewClusterPattern(3, 3)
	p.Set(1, 1)
	assert.Equal(t, []byte{0x08, 0x00}, p.Bitmap)
	assert.True(t, p.IsSet(1, 1))
	assert.False(t, p.IsSet(0, 0))
	assert.False(t, p.IsSet(5, 0))

	r, c := p.COG()
	assert.InDelta(t, 1.5, r, 1e-9)
	assert.InDelta(t, 1.5, c, 1e-9)
}

func TestClusterPatternKeys(t *testing.T) {
	a := NewClusterPattern(2, 2)
	a.Set(0, 0)
	b := NewClusterPattern(2, 2)
	b.Set(0, 0)
	c := NewClusterPattern(2, 2)
	c.Set(1, 1)

	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestInteractionRecord(t *testing.T) {
	ir := InteractionRecord{Orbit: 2, BC: 10}
	assert.Equal(t, int64(2*LHCMaxBunches+10), ir.ToLong())
	assert.Equal(t, ir, InteractionRecordFromLong(ir.ToLong()))
	assert.Equal(t, ir, InteractionRecordFromNS(ir.TimeNS()+1))
	assert.Equal(t, int64(-5), InteractionRecord{Orbit: 2, BC: 5}.DifferenceInBC(ir))
}

func TestDetID(t *testing.T) {
	assert.Equal(t, "ITS", ITS.Name())
	assert.Equal(t, "MID", MID.String())
	id, err := DetIDFromName("MFT")
	require.NoError(t, err)
	assert.Equal(t, MFT, id)
	_, err = DetIDFromName("XYZ")
	require.Error(t, err)
	assert.Equal(t, "UNKNOWN", DetID(99).Name())
}
