package conditions

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmbenlloch/pixreco_go/pkg/dataformats"
)

const lookUpTable = `chip link hw_address
0 3 10
1 3 11
# spare link
7 4 10

`

func TestParseLookUpTable(t *testing.T) {
	entries, err := ParseLookUpTable(strings.NewReader(lookUpTable))
	require.NoError(t, err)
	assert.Equal(t, []ChannelEntry{
		{ChipID: 0, Link: 3, HWAddress: 10},
		{ChipID: 1, Link: 3, HWAddress: 11},
		{ChipID: 7, Link: 4, HWAddress: 10},
	}, entries)
}

func TestParseMalformedLookUpTable(t *testing.T) {
	tests := []struct {
		name  string
		table string
	}{
		{"missing field", "header\n0 3\n"},
		{"not a number", "header\n0 x 10\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLookUpTable(strings.NewReader(tt.table))
			require.ErrorIs(t, err, ErrMalformedLookUpTable)
		})
	}
}

func TestChannelMapConversions(t *testing.T) {
	m, err := NewChannelMap([]ChannelEntry{
		{ChipID: 0, Link: 3, HWAddress: 10},
		{ChipID: 7, Link: 4, HWAddress: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Size())

	chip, err := m.HWToChip(4, 10)
	require.NoError(t, err)
	assert.Equal(t, uint16(7), chip)

	link, hw, err := m.ChipToHW(0)
	require.NoError(t, err)
	assert.Equal(t, 3, link)
	assert.Equal(t, 10, hw)

	_, err = m.HWToChip(5, 10)
	require.ErrorIs(t, err, ErrWrongLink)
	_, err = m.HWToChip(3, 11)
	require.ErrorIs(t, err, ErrWrongHWAddress)
	_, _, err = m.ChipToHW(1)
	require.ErrorIs(t, err, ErrWrongChip)

	var empty *ChannelMap
	_, err = empty.HWToChip(3, 10)
	require.ErrorIs(t, err, ErrMappingNotInitialized)
}

func TestChannelMapRejectsDuplicates(t *testing.T) {
	_, err := NewChannelMap([]ChannelEntry{{ChipID: 0, Link: 1, HWAddress: 1}, {ChipID: 1, Link: 1, HWAddress: 1}})
	require.ErrorIs(t, err, ErrDuplicatedChannel)

	_, err = NewChannelMap([]ChannelEntry{{ChipID: 0, Link: 1, HWAddress: 1}, {ChipID: 0, Link: 1, HWAddress: 2}})
	require.ErrorIs(t, err, ErrDuplicatedChannel)

	_, err = NewChannelMap([]ChannelEntry{{ChipID: -1}})
	require.ErrorIs(t, err, ErrWrongChip)
}

func TestChannelMappingRunRanges(t *testing.T) {
	c := newTestConditions(t)
	entries, err := ParseLookUpTable(strings.NewReader(lookUpTable))
	require.NoError(t, err)

	require.NoError(t, c.UploadChannelMapping(dataformats.ITS, 100, 199, entries))
	require.NoError(t, c.UploadChannelMapping(dataformats.ITS, 200, 299, entries[:1]))

	m, err := c.ChannelMapping(dataformats.ITS, 150)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Size())
	chip, err := m.HWToChip(3, 11)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), chip)

	m, err = c.ChannelMapping(dataformats.ITS, 250)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Size())

	_, err = c.ChannelMapping(dataformats.ITS, 300)
	require.ErrorIs(t, err, ErrNoChannelMapping)
	_, err = c.ChannelMapping(dataformats.MFT, 150)
	require.ErrorIs(t, err, ErrNoChannelMapping)
}

func TestUploadInvalidChannelMapping(t *testing.T) {
	c := newTestConditions(t)
	duplicated := []ChannelEntry{{ChipID: 0, Link: 1, HWAddress: 1}, {ChipID: 0, Link: 1, HWAddress: 2}}
	require.ErrorIs(t, c.UploadChannelMapping(dataformats.ITS, 0, 10, duplicated), ErrDuplicatedChannel)
	require.ErrorIs(t, c.UploadChannelMapping(dataformats.ITS, 10, 0, nil), ErrInvalidRunRange)

	_, err := c.ChannelMapping(dataformats.ITS, 5)
	require.ErrorIs(t, err, ErrNoChannelMapping)
}
