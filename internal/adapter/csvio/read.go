// Package csvio reads the municipal CSV exports and writes the pipeline's
// output artifacts. Readers validate schemas strictly (a missing column is a
// fatal configuration error) but absorb and count per-row anomalies.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/soccerwave/barcelona-air-quality-schools/internal/domain"
)

var wideBaseColumns = []string{"year", "month", "day", "station_id", "pollutant_code"}

// WideSummary counts rows handled while reading the wide readings export.
type WideSummary struct {
	RowsRead      int
	MalformedRows int
}

// PointSummary counts rows handled while reading a point table.
type PointSummary struct {
	RowsRead          int
	BadCoordinates    int
	OutOfRange        int
	Duplicates        int
	OtherMunicipality int
	Kept              int
}

// ReadWideRecords loads the wide hourly readings table. The header must carry
// the base columns plus value_1..value_24 and validity_1..validity_24; any
// absence is a SchemaError. Rows whose base fields fail to parse are counted
// and skipped, never guessed at.
func ReadWideRecords(path string) ([]domain.RawWideRecord, WideSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, WideSummary{}, fmt.Errorf("csvio: open readings: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, WideSummary{}, fmt.Errorf("csvio: read readings header: %w", err)
	}
	cols := indexColumns(header)

	var missing []string
	base := make([]int, len(wideBaseColumns))
	for i, name := range wideBaseColumns {
		idx, ok := cols[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		base[i] = idx
	}
	var valueIdx, validityIdx [24]int
	for h := 1; h <= 24; h++ {
		name := fmt.Sprintf("value_%d", h)
		idx, ok := cols[name]
		if !ok {
			missing = append(missing, name)
		}
		valueIdx[h-1] = idx
		name = fmt.Sprintf("validity_%d", h)
		idx, ok = cols[name]
		if !ok {
			missing = append(missing, name)
		}
		validityIdx[h-1] = idx
	}
	if len(missing) > 0 {
		return nil, WideSummary{}, &domain.SchemaError{Source: "readings", Missing: missing}
	}

	var out []domain.RawWideRecord
	var sum WideSummary
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			sum.MalformedRows++
			continue
		}
		sum.RowsRead++

		year, errY := strconv.Atoi(strings.TrimSpace(row[base[0]]))
		month, errM := strconv.Atoi(strings.TrimSpace(row[base[1]]))
		day, errD := strconv.Atoi(strings.TrimSpace(row[base[2]]))
		if errY != nil || errM != nil || errD != nil {
			sum.MalformedRows++
			continue
		}

		rec := domain.RawWideRecord{
			Year:          year,
			Month:         month,
			Day:           day,
			StationID:     strings.TrimSpace(row[base[3]]),
			PollutantCode: strings.TrimSpace(row[base[4]]),
		}
		for h := 0; h < 24; h++ {
			rec.Values[h] = row[valueIdx[h]]
			rec.Validity[h] = row[validityIdx[h]]
		}
		out = append(out, rec)
	}
	return out, sum, nil
}

// ReadStations loads the station point table, coercing comma-decimal
// coordinates, dropping unparseable or out-of-range positions, and keeping
// the first row per station_id.
func ReadStations(path string) ([]domain.StationPoint, PointSummary, error) {
	rows, cols, err := readTable(path, "stations", []string{"station_id", "longitude", "latitude"})
	if err != nil {
		return nil, PointSummary{}, err
	}

	var out []domain.StationPoint
	var sum PointSummary
	seen := make(map[string]struct{})
	for _, row := range rows {
		sum.RowsRead++
		lon, okLon := coerceFloat(row[cols["longitude"]])
		lat, okLat := coerceFloat(row[cols["latitude"]])
		if !okLon || !okLat {
			sum.BadCoordinates++
			continue
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			sum.OutOfRange++
			continue
		}
		id := strings.TrimSpace(row[cols["station_id"]])
		if _, dup := seen[id]; dup {
			sum.Duplicates++
			continue
		}
		seen[id] = struct{}{}
		out = append(out, domain.StationPoint{StationID: id, Longitude: lon, Latitude: lat})
	}
	sum.Kept = len(out)
	return out, sum, nil
}

// ReadSchools loads the school point table with the same coordinate cleaning
// as stations, keeps the first row per school_id, and, when municipality is
// non-empty, retains only schools in that municipality.
func ReadSchools(path, municipality string) ([]domain.SchoolPoint, PointSummary, error) {
	rows, cols, err := readTable(path, "schools", []string{"school_id", "longitude", "latitude", "municipality"})
	if err != nil {
		return nil, PointSummary{}, err
	}

	wantMuni := strings.ToLower(strings.TrimSpace(municipality))
	var out []domain.SchoolPoint
	var sum PointSummary
	seen := make(map[string]struct{})
	for _, row := range rows {
		sum.RowsRead++
		muni := strings.TrimSpace(row[cols["municipality"]])
		if wantMuni != "" && strings.ToLower(muni) != wantMuni {
			sum.OtherMunicipality++
			continue
		}
		lon, okLon := coerceFloat(row[cols["longitude"]])
		lat, okLat := coerceFloat(row[cols["latitude"]])
		if !okLon || !okLat {
			sum.BadCoordinates++
			continue
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			sum.OutOfRange++
			continue
		}
		id := strings.TrimSpace(row[cols["school_id"]])
		if _, dup := seen[id]; dup {
			sum.Duplicates++
			continue
		}
		seen[id] = struct{}{}
		out = append(out, domain.SchoolPoint{SchoolID: id, Longitude: lon, Latitude: lat, Municipality: muni})
	}
	sum.Kept = len(out)
	return out, sum, nil
}

// readTable reads a whole CSV with a validated header and returns data rows
// plus the column index map.
func readTable(path, source string, required []string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("csvio: open %s: %w", source, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("csvio: read %s header: %w", source, err)
	}
	cols := indexColumns(header)

	var missing []string
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, nil, &domain.SchemaError{Source: source, Missing: missing}
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("csvio: read %s rows: %w", source, err)
	}
	return rows, cols, nil
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols
}

// coerceFloat parses a coordinate cell, accepting the comma decimal separator
// used in some municipal exports.
func coerceFloat(raw string) (float64, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
