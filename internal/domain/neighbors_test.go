package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNeighborCells_MultipleEntries(t *testing.T) {
	raw := "6300,301,-12,-99,-70;1850,42,-14.5,-101,-72"
	cells := ParseNeighborCells(raw)
	require.Len(t, cells, 2)

	assert.Equal(t, 301, cells[0].ID)
	assert.Equal(t, -99, cells[0].RSRP)
	assert.Equal(t, -12, cells[0].RSRQ)
	assert.Equal(t, 6300, cells[0].Freq)
	assert.Equal(t, -70, cells[0].RSSI)

	assert.Equal(t, -14.5, cells[1].RSRQ)
}

func TestParseNeighborCells_SkipsMalformedEntries(t *testing.T) {
	raw := "6300,301,-12,-99,-70;bogus;1850,42,-14;;"
	cells := ParseNeighborCells(raw)
	require.Len(t, cells, 1)
	assert.Equal(t, 301, cells[0].ID)
}

func TestParseNeighborCells_ExtraFieldsIgnored(t *testing.T) {
	cells := ParseNeighborCells("6300,301,-12,-99,-70,extra,data")
	require.Len(t, cells, 1)
	assert.Equal(t, -70, cells[0].RSSI)
}

func TestParseNeighborCells_EmptyInput(t *testing.T) {
	assert.Empty(t, ParseNeighborCells(""))
	assert.Empty(t, ParseNeighborCells(nil))
}

func TestParseNeighborCells_NonNumericFieldsStayStrings(t *testing.T) {
	cells := ParseNeighborCells("6300,301,n/a,-99,-70")
	require.Len(t, cells, 1)
	assert.Equal(t, "n/a", cells[0].RSRQ)
}
