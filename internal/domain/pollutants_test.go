package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "10", NormalizeCode("10"))
	assert.Equal(t, "10", NormalizeCode(" 10 "))
	assert.Equal(t, "10", NormalizeCode("10.0"))
	assert.Equal(t, "38", NormalizeCode("38.0"))
}

func TestPollutantTable_Name(t *testing.T) {
	table := DefaultPollutantTable()

	// Spot checks against the municipal taxonomy.
	assert.Equal(t, "pm10", table.Name("10"))
	assert.Equal(t, "pm25", table.Name("38"))
	assert.Equal(t, "no2", table.Name("8"))
	assert.Equal(t, "o3", table.Name("9"))

	// Float round-trip artifacts resolve the same.
	assert.Equal(t, "pm25", table.Name("38.0"))

	// Unknown codes fall back to the normalized code string.
	assert.Equal(t, "999", table.Name("999"))
	assert.Equal(t, "999", table.Name(" 999.0 "))
}

func TestPollutantTable_SubstituteTaxonomy(t *testing.T) {
	table := NewPollutantTable(map[string]string{"42": "NOx"})
	assert.Equal(t, "nox", table.Name("42"))
	assert.Equal(t, "8", table.Name("8"))
}

func TestPollutantBounds_Lookup(t *testing.T) {
	bounds := DefaultPollutantBounds()

	assert.Equal(t, Bound{Min: 0, Max: 250}, bounds.Lookup("pm25"))
	assert.Equal(t, Bound{Min: 0, Max: 400}, bounds.Lookup("no2"))
	assert.Equal(t, Bound{Min: 0, Max: 250}, bounds.Lookup("  PM25 "))

	// Unknown pollutants get the wide default, never a rejection by name.
	assert.Equal(t, Bound{Min: 0, Max: 1_000_000}, bounds.Lookup("mystery_gas"))
}
