package csvio

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soccerwave/barcelona-air-quality-schools/internal/domain"
	"github.com/soccerwave/barcelona-air-quality-schools/internal/qc"
)

func readBack(t *testing.T, dir, name string) [][]string {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriter_Readings(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(filepath.Join(dir, "out"))
	require.NoError(t, err)

	madrid, _ := time.LoadLocation(domain.DefaultTimezone)
	err = w.WriteReadings([]domain.Reading{{
		StationID:     "43",
		PollutantCode: "8",
		Timestamp:     time.Date(2024, 5, 14, 9, 0, 0, 0, madrid),
		Value:         31.5,
		Validity:      true,
	}})
	require.NoError(t, err)

	rows := readBack(t, filepath.Join(dir, "out"), ReadingsFile)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"station_id", "pollutant_code", "timestamp", "value", "validity"}, rows[0])
	assert.Equal(t, []string{"43", "8", "2024-05-14T09:00:00+02:00", "31.5", "1"}, rows[1])
}

func TestWriter_Exposures(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	err = w.WriteExposures([]domain.SchoolExposureRecord{{
		SchoolID:      "E1",
		PollutantName: "no2",
		Date:          "2024-05-14",
		ValueAgg:      30,
		ValidHours:    20,
		CoveragePct:   83.33333333333334,
		StationCount:  1,
		Method:        domain.MethodNearest,
	}})
	require.NoError(t, err)

	rows := readBack(t, dir, ExposureFile)
	require.Len(t, rows, 2)
	assert.Equal(t, "E1", rows[1][0])
	assert.Equal(t, "30", rows[1][3])
	assert.Equal(t, "1", rows[1][6])
	assert.Equal(t, "nearest", rows[1][7])
}

func TestWriter_QCReport(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	in := qc.Report{
		RowsIn:      10,
		RowsKept:    8,
		RowsFlagged: 2,
		Flagged:     map[string]int{"above_max": 2},
		ValueMedian: 21.5,
		ValueP90:    40,
		ValueP95:    45,
		GeneratedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, w.WriteQCReport(in))

	data, err := os.ReadFile(filepath.Join(dir, QCReportFile))
	require.NoError(t, err)

	var got qc.Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, in, got)
}
