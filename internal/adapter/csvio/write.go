package csvio

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/soccerwave/barcelona-air-quality-schools/internal/domain"
	"github.com/soccerwave/barcelona-air-quality-schools/internal/qc"
)

// Output artifact filenames within the output directory.
const (
	ReadingsFile     = "air_readings_long.csv"
	MappingFile      = "schools_station_map.csv"
	StationDailyFile = "station_daily.csv"
	ExposureFile     = "school_exposure_daily.csv"
	QCReportFile     = "school_exposure_daily_qc_report.json"
)

// Writer persists pipeline artifacts under a single output directory.
type Writer struct {
	dir string
}

// NewWriter ensures dir exists and returns a Writer targeting it.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("csvio: mkdir %s: %w", dir, err)
	}
	return &Writer{dir: dir}, nil
}

// WriteReadings exports the long reading table.
func (w *Writer) WriteReadings(readings []domain.Reading) error {
	rows := make([][]string, 0, len(readings)+1)
	rows = append(rows, []string{"station_id", "pollutant_code", "timestamp", "value", "validity"})
	for _, rd := range readings {
		rows = append(rows, []string{
			rd.StationID,
			rd.PollutantCode,
			rd.Timestamp.Format(time.RFC3339),
			formatFloat(rd.Value),
			formatBool(rd.Validity),
		})
	}
	return w.writeCSV(ReadingsFile, rows)
}

// WriteMapping exports the school-to-station assignments with the school
// geometry back in WGS-84.
func (w *Writer) WriteMapping(mapping []domain.SchoolStationMapping) error {
	rows := make([][]string, 0, len(mapping)+1)
	rows = append(rows, []string{"school_id", "station_id", "distance_m", "longitude", "latitude"})
	for _, mp := range mapping {
		rows = append(rows, []string{
			mp.SchoolID,
			mp.StationID,
			formatFloat(mp.DistanceM),
			formatFloat(mp.Longitude),
			formatFloat(mp.Latitude),
		})
	}
	return w.writeCSV(MappingFile, rows)
}

// WriteStationDaily exports station-day aggregates.
func (w *Writer) WriteStationDaily(daily []domain.StationDailyAggregate) error {
	rows := make([][]string, 0, len(daily)+1)
	rows = append(rows, []string{"station_id", "pollutant_name", "date", "valid_hours", "value_mean", "coverage_pct"})
	for _, sd := range daily {
		rows = append(rows, []string{
			sd.StationID,
			sd.PollutantName,
			sd.Date,
			strconv.Itoa(sd.ValidHours),
			formatFloat(sd.ValueMean),
			formatFloat(sd.CoveragePct),
		})
	}
	return w.writeCSV(StationDailyFile, rows)
}

// WriteExposures exports the post-QC school exposure records.
func (w *Writer) WriteExposures(records []domain.SchoolExposureRecord) error {
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, []string{"school_id", "pollutant_name", "date", "value_agg", "valid_hours", "coverage_pct", "station_count", "method"})
	for _, rec := range records {
		rows = append(rows, []string{
			rec.SchoolID,
			rec.PollutantName,
			rec.Date,
			formatFloat(rec.ValueAgg),
			strconv.Itoa(rec.ValidHours),
			formatFloat(rec.CoveragePct),
			strconv.Itoa(rec.StationCount),
			rec.Method,
		})
	}
	return w.writeCSV(ExposureFile, rows)
}

// WriteQCReport writes the QC report as indented JSON.
func (w *Writer) WriteQCReport(report qc.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("csvio: marshal qc report: %w", err)
	}
	path := filepath.Join(w.dir, QCReportFile)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("csvio: write %s: %w", QCReportFile, err)
	}
	return nil
}

func (w *Writer) writeCSV(name string, rows [][]string) error {
	path := filepath.Join(w.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csvio: create %s: %w", name, err)
	}

	cw := csv.NewWriter(f)
	if err := cw.WriteAll(rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("csvio: write %s: %w", name, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("csvio: flush %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("csvio: close %s: %w", name, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
