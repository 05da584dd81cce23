// Package domain models Barcelona municipal air-quality data on its way from
// raw open-data exports to per-school daily exposure estimates.
//
// # Data Sources
//
// Hourly readings come from the Ajuntament de Barcelona open-data portal as
// wide CSV rows: one row per (station, pollutant, day) carrying 24 value
// columns and 24 parallel validity columns. Station and school locations are
// separate point tables in WGS-84 longitude/latitude.
//
// # Raw Data Conventions
//
// Validity markers:
//
//	A per-hour flag certifying the paired value. Accepted "valid" tokens,
//	case-insensitive: "v", "1", "true", "ok", "valid". Numeric markers are
//	valid when they truncate to 1 (so "1.0" counts, "2" does not). Anything
//	else, including an absent marker, is invalid. Unknown validity is never
//	treated as valid.
//
// Hour columns:
//
//	value_1..value_24 and validity_1..validity_24 cover local hours 0-23.
//	Column 1 is the hour starting at midnight.
//
// Timestamps:
//
//	(year, month, day, hour) tuples are civil times in Europe/Madrid.
//	Spring-forward gaps shift to the next valid instant; fall-back
//	ambiguities resolve to the earlier instant, which is the one consistent
//	with an ascending hourly sequence. See [Localize].
//
// Pollutant codes:
//
//	Numeric strings mapped to short names ("8" -> "no2", "38" -> "pm25").
//	Codes are trimmed and a trailing ".0" from float round-trips is
//	stripped. Unknown codes keep the code string as their name so that no
//	reading is lost to an incomplete taxonomy. See [PollutantTable].
//
// # Exposure Method
//
// Each school is assigned its single nearest station in a planar metric
// projection (ETRS89 / UTM 31N). Daily exposure is the hours-weighted mean of
// the station's daily values, gated on a minimum coverage percentage. The
// method tag on exposure records is "nearest".
package domain
