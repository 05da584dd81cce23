package csvio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soccerwave/barcelona-air-quality-schools/internal/domain"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// wideHeader builds the full 53-column readings header.
func wideHeader() string {
	cols := []string{"year", "month", "day", "station_id", "pollutant_code"}
	for h := 1; h <= 24; h++ {
		cols = append(cols, fmt.Sprintf("value_%d", h))
	}
	for h := 1; h <= 24; h++ {
		cols = append(cols, fmt.Sprintf("validity_%d", h))
	}
	return strings.Join(cols, ",")
}

func wideRow(year, month, day int, station, code, value, validity string) string {
	cells := []string{
		fmt.Sprintf("%d", year), fmt.Sprintf("%d", month), fmt.Sprintf("%d", day),
		station, code,
	}
	for h := 0; h < 24; h++ {
		cells = append(cells, value)
	}
	for h := 0; h < 24; h++ {
		cells = append(cells, validity)
	}
	return strings.Join(cells, ",")
}

func TestReadWideRecords(t *testing.T) {
	path := writeTempCSV(t, wideHeader()+"\n"+
		wideRow(2024, 5, 14, "43", "8", "31.0", "V")+"\n"+
		wideRow(2024, 5, 15, "44", "10", "12.5", "N")+"\n")

	records, sum, err := ReadWideRecords(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 2, sum.RowsRead)
	assert.Equal(t, 0, sum.MalformedRows)

	rec := records[0]
	assert.Equal(t, 2024, rec.Year)
	assert.Equal(t, 5, rec.Month)
	assert.Equal(t, 14, rec.Day)
	assert.Equal(t, "43", rec.StationID)
	assert.Equal(t, "8", rec.PollutantCode)
	assert.Equal(t, "31.0", rec.Values[0])
	assert.Equal(t, "31.0", rec.Values[23])
	assert.Equal(t, "V", rec.Validity[0])
}

func TestReadWideRecords_MissingColumnsFatal(t *testing.T) {
	// Drop validity_24 and the station column.
	header := wideHeader()
	header = strings.Replace(header, "station_id,", "", 1)
	header = strings.Replace(header, ",validity_24", "", 1)
	path := writeTempCSV(t, header+"\n")

	_, _, err := ReadWideRecords(path)
	require.Error(t, err)

	var schemaErr *domain.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "readings", schemaErr.Source)
	assert.Contains(t, schemaErr.Missing, "station_id")
	assert.Contains(t, schemaErr.Missing, "validity_24")
}

func TestReadWideRecords_MalformedRowsSkipped(t *testing.T) {
	path := writeTempCSV(t, wideHeader()+"\n"+
		wideRow(2024, 5, 14, "43", "8", "31.0", "V")+"\n"+
		strings.Replace(wideRow(2024, 5, 15, "43", "8", "1", "V"), "2024", "twentytwentyfour", 1)+"\n"+
		"1,2\n")

	records, sum, err := ReadWideRecords(path)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 2, sum.MalformedRows)
}

func TestReadStations(t *testing.T) {
	path := writeTempCSV(t, strings.Join([]string{
		"station_id,longitude,latitude",
		"43,2.1538,41.3853",
		`44,"2,2045","41,4039"`, // comma decimals
		"43,9.9,9.9",            // duplicate id, first wins
		"45,,41.0",              // missing coordinate
		"46,200.0,41.0",         // longitude out of range
	}, "\n") + "\n")

	stations, sum, err := ReadStations(path)
	require.NoError(t, err)
	require.Len(t, stations, 2)

	assert.Equal(t, "43", stations[0].StationID)
	assert.Equal(t, 2.1538, stations[0].Longitude)
	assert.Equal(t, 2.2045, stations[1].Longitude)
	assert.Equal(t, 41.4039, stations[1].Latitude)

	assert.Equal(t, 5, sum.RowsRead)
	assert.Equal(t, 1, sum.Duplicates)
	assert.Equal(t, 1, sum.BadCoordinates)
	assert.Equal(t, 1, sum.OutOfRange)
	assert.Equal(t, 2, sum.Kept)
}

func TestReadStations_MissingColumnFatal(t *testing.T) {
	path := writeTempCSV(t, "station_id,lat,lon\n43,41.0,2.0\n")
	_, _, err := ReadStations(path)

	var schemaErr *domain.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []string{"longitude", "latitude"}, schemaErr.Missing)
}

func TestReadSchools(t *testing.T) {
	path := writeTempCSV(t, strings.Join([]string{
		"school_id,longitude,latitude,municipality",
		"E1,2.16,41.39,Barcelona",
		"E2,2.20,41.40,barcelona", // case-insensitive municipality
		"E3,2.05,41.48,Badalona",  // filtered out
		"E1,2.00,41.00,Barcelona", // duplicate id
	}, "\n") + "\n")

	schools, sum, err := ReadSchools(path, "Barcelona")
	require.NoError(t, err)
	require.Len(t, schools, 2)
	assert.Equal(t, "E1", schools[0].SchoolID)
	assert.Equal(t, "E2", schools[1].SchoolID)
	assert.Equal(t, 1, sum.OtherMunicipality)
	assert.Equal(t, 1, sum.Duplicates)
}

func TestReadSchools_NoMunicipalityFilter(t *testing.T) {
	path := writeTempCSV(t, "school_id,longitude,latitude,municipality\nE1,2.16,41.39,Barcelona\nE3,2.05,41.48,Badalona\n")

	schools, _, err := ReadSchools(path, "")
	require.NoError(t, err)
	assert.Len(t, schools, 2)
}
