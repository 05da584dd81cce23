package domain

import (
	"time"
)

// RawWideRecord is one row of the municipal hourly export: a single
// (station, pollutant, day) with 24 ordered value/validity cell pairs.
// Cells are kept as raw strings; parsing happens during reshaping so that
// per-cell failures can be counted instead of aborting the row.
type RawWideRecord struct {
	Year          int
	Month         int
	Day           int
	StationID     string
	PollutantCode string
	Values        [24]string // value_1..value_24, hours 0-23
	Validity      [24]string // validity_1..validity_24, parallel markers
}

// Reading is one valid hourly observation in long form. Readings are
// immutable once created; invalid, negative, and untimestampable hours never
// become Readings.
type Reading struct {
	StationID     string    `json:"station_id"`
	PollutantCode string    `json:"pollutant_code"`
	Timestamp     time.Time `json:"timestamp"` // civil time with zone offset
	Value         float64   `json:"value"`
	Validity      bool      `json:"validity"`
}

// Date returns the reading's local calendar date as YYYY-MM-DD.
func (r Reading) Date() string {
	return r.Timestamp.Format("2006-01-02")
}

// Hour returns the reading's local hour of day, 0-23.
func (r Reading) Hour() int {
	return r.Timestamp.Hour()
}

// ReadingKey identifies the unique slot a reading occupies.
type ReadingKey struct {
	StationID     string
	PollutantCode string
	Date          string
	Hour          int
}

// Key returns the uniqueness key for deduplication.
func (r Reading) Key() ReadingKey {
	return ReadingKey{
		StationID:     r.StationID,
		PollutantCode: r.PollutantCode,
		Date:          r.Date(),
		Hour:          r.Hour(),
	}
}

// StationPoint is a sensor location in WGS-84 longitude/latitude.
// Exactly one point exists per station_id after ingest deduplication.
type StationPoint struct {
	StationID string  `json:"station_id"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// SchoolPoint is a point of interest in WGS-84 longitude/latitude,
// pre-filtered to the target municipality.
type SchoolPoint struct {
	SchoolID     string  `json:"school_id"`
	Longitude    float64 `json:"longitude"`
	Latitude     float64 `json:"latitude"`
	Municipality string  `json:"municipality"`
}

// SchoolStationMapping assigns a school its geometrically nearest station.
// The mapping is total over schools and many-to-one over stations.
type SchoolStationMapping struct {
	SchoolID  string  `json:"school_id"`
	StationID string  `json:"station_id"`
	DistanceM float64 `json:"distance_m"`
	Longitude float64 `json:"longitude"` // school geometry, WGS-84
	Latitude  float64 `json:"latitude"`
}

// StationDailyAggregate is one station-day of one pollutant: mean of the
// valid hourly values and how many hours contributed.
type StationDailyAggregate struct {
	StationID     string  `json:"station_id"`
	PollutantName string  `json:"pollutant_name"`
	Date          string  `json:"date"` // YYYY-MM-DD local
	ValidHours    int     `json:"valid_hours"`
	ValueMean     float64 `json:"value_mean"`
	CoveragePct   float64 `json:"coverage_pct"`
}

// MethodNearest tags exposure records produced under the single
// nearest-station policy.
const MethodNearest = "nearest"

// SchoolExposureRecord is the per-school, per-pollutant, per-day exposure
// estimate. After quality control every record satisfies: coverage at or
// above the configured minimum, a non-negative plausible value, and exactly
// one contributing station.
type SchoolExposureRecord struct {
	SchoolID      string  `json:"school_id"`
	PollutantName string  `json:"pollutant_name"`
	Date          string  `json:"date"`
	ValueAgg      float64 `json:"value_agg"`
	ValidHours    int     `json:"valid_hours"`
	CoveragePct   float64 `json:"coverage_pct"`
	StationCount  int     `json:"station_count"`
	Method        string  `json:"method"`
}
