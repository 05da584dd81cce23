package domain

import (
	"strings"
)

// PollutantTable maps municipal pollutant codes to short names. It is
// immutable configuration injected into the stages that need it, so alternate
// taxonomies can be substituted in tests.
type PollutantTable struct {
	names map[string]string
}

// NewPollutantTable copies the given code->name map into an immutable table.
func NewPollutantTable(names map[string]string) PollutantTable {
	m := make(map[string]string, len(names))
	for code, name := range names {
		m[NormalizeCode(code)] = strings.ToLower(strings.TrimSpace(name))
	}
	return PollutantTable{names: m}
}

// DefaultPollutantTable covers the codes observed in the Barcelona exports.
func DefaultPollutantTable() PollutantTable {
	return NewPollutantTable(map[string]string{
		"1":  "so2",
		"6":  "co",
		"7":  "no",
		"8":  "no2",
		"9":  "o3",
		"10": "pm10",
		"38": "pm25",
		"39": "pm1",
		"12": "benzene",
		"14": "toluene",
		"20": "xylene",
	})
}

// Name resolves a pollutant code to its short name. Unknown codes fall back
// to the normalized code string so no reading is lost to an incomplete
// taxonomy.
func (t PollutantTable) Name(code string) string {
	c := NormalizeCode(code)
	if name, ok := t.names[c]; ok {
		return name
	}
	return strings.ToLower(c)
}

// NormalizeCode trims a pollutant code and strips the trailing ".0" left by
// float round-trips in upstream exports.
func NormalizeCode(code string) string {
	c := strings.TrimSpace(code)
	return strings.TrimSuffix(c, ".0")
}

// Bound is a pollutant's physically plausible [Min, Max] interval for a
// daily aggregate.
type Bound struct {
	Min float64
	Max float64
}

// PollutantBounds maps pollutant names to plausibility intervals. Unknown
// pollutants get a deliberately wide default: a record is rejected only
// because its value is implausible, never merely because its pollutant is
// unrecognized.
type PollutantBounds struct {
	bounds       map[string]Bound
	defaultBound Bound
}

// NewPollutantBounds copies the given name->bound map into an immutable set
// with the supplied fallback for unknown names.
func NewPollutantBounds(bounds map[string]Bound, fallback Bound) PollutantBounds {
	m := make(map[string]Bound, len(bounds))
	for name, b := range bounds {
		m[strings.ToLower(strings.TrimSpace(name))] = b
	}
	return PollutantBounds{bounds: m, defaultBound: fallback}
}

// DefaultPollutantBounds holds the operational limits for daily means in
// µg/m³ except CO, whose unit differs by station and therefore gets an open
// range.
func DefaultPollutantBounds() PollutantBounds {
	return NewPollutantBounds(map[string]Bound{
		"pm25":    {Min: 0, Max: 250},
		"pm10":    {Min: 0, Max: 400},
		"pm1":     {Min: 0, Max: 200},
		"no2":     {Min: 0, Max: 400},
		"no":      {Min: 0, Max: 500},
		"o3":      {Min: 0, Max: 300},
		"so2":     {Min: 0, Max: 500},
		"co":      {Min: 0, Max: 1_000_000},
		"benzene": {Min: 0, Max: 200},
		"toluene": {Min: 0, Max: 1_000},
		"xylene":  {Min: 0, Max: 1_000},
	}, Bound{Min: 0, Max: 1_000_000})
}

// Lookup returns the bound for a pollutant name, falling back to the wide
// default for unknown names.
func (b PollutantBounds) Lookup(name string) Bound {
	if bound, ok := b.bounds[strings.ToLower(strings.TrimSpace(name))]; ok {
		return bound
	}
	return b.defaultBound
}
