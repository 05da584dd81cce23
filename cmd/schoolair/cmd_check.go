package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soccerwave/barcelona-air-quality-schools/internal/adapter/csvio"
	"github.com/soccerwave/barcelona-air-quality-schools/internal/domain"
	"github.com/soccerwave/barcelona-air-quality-schools/internal/qc"
)

// check re-verifies a finished run's artifacts from disk, independently of
// the in-process acceptance checks, so an operator can audit an output
// directory after the fact.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the integrity of an output directory",
	RunE:  runCheck,
}

var (
	flagCheckDir      string
	flagCheckCoverage float64
)

func init() {
	checkCmd.Flags().StringVar(&flagCheckDir, "dir", "out", "output directory to verify")
	checkCmd.Flags().Float64Var(&flagCheckCoverage, "coverage-min", 75.0, "minimum coverage percent the run used")
	rootCmd.AddCommand(checkCmd)
}

// phase tracks pass/fail for one verification phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func runCheck(_ *cobra.Command, _ []string) error {
	readings, err := loadCSVRows(filepath.Join(flagCheckDir, csvio.ReadingsFile))
	if err != nil {
		return fmt.Errorf("load readings: %w", err)
	}
	mapping, err := loadCSVRows(filepath.Join(flagCheckDir, csvio.MappingFile))
	if err != nil {
		return fmt.Errorf("load mapping: %w", err)
	}
	daily, err := loadCSVRows(filepath.Join(flagCheckDir, csvio.StationDailyFile))
	if err != nil {
		return fmt.Errorf("load station daily: %w", err)
	}
	exposures, err := loadCSVRows(filepath.Join(flagCheckDir, csvio.ExposureFile))
	if err != nil {
		return fmt.Errorf("load exposures: %w", err)
	}
	report, err := loadQCReport(filepath.Join(flagCheckDir, csvio.QCReportFile))
	if err != nil {
		return fmt.Errorf("load qc report: %w", err)
	}

	phases := []*phase{
		checkReadings(readings),
		checkMapping(mapping),
		checkStationDaily(daily),
		checkExposures(exposures, mapping, flagCheckCoverage),
		checkQCReport(report, len(exposures)),
	}

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-32s %s\n", p.name, status)
	}
	fmt.Printf("\nRows: %d readings, %d mappings, %d station-days, %d exposures\n",
		len(readings), len(mapping), len(daily), len(exposures))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if !allPassed {
		return fmt.Errorf("verification failed")
	}
	fmt.Println("\nAll checks passed.")
	return nil
}

func checkReadings(rows []csvRow) *phase {
	p := &phase{name: "readings integrity"}
	seen := make(map[string]int, len(rows))
	for _, row := range rows {
		key := row.fields["station_id"] + "|" + row.fields["pollutant_code"] + "|" + row.fields["timestamp"]
		if prev, dup := seen[key]; dup {
			p.errorf("line %d: duplicate station-hour slot (first at line %d)", row.lineNum, prev)
			continue
		}
		seen[key] = row.lineNum
		v, err := strconv.ParseFloat(row.fields["value"], 64)
		if err != nil {
			p.errorf("line %d: unparseable value %q", row.lineNum, row.fields["value"])
			continue
		}
		if v < 0 {
			p.errorf("line %d: negative value %g", row.lineNum, v)
		}
	}
	return p
}

func checkMapping(rows []csvRow) *phase {
	p := &phase{name: "mapping totality"}
	seen := make(map[string]int, len(rows))
	for _, row := range rows {
		id := row.fields["school_id"]
		if prev, dup := seen[id]; dup {
			p.errorf("line %d: school %s mapped twice (first at line %d)", row.lineNum, id, prev)
			continue
		}
		seen[id] = row.lineNum
		d, err := strconv.ParseFloat(row.fields["distance_m"], 64)
		if err != nil || d < 0 {
			p.errorf("line %d: bad distance %q", row.lineNum, row.fields["distance_m"])
		}
	}
	return p
}

func checkStationDaily(rows []csvRow) *phase {
	p := &phase{name: "station daily consistency"}
	for _, row := range rows {
		hours, err := strconv.Atoi(row.fields["valid_hours"])
		if err != nil || hours < 1 || hours > 24 {
			p.errorf("line %d: valid_hours %q out of [1, 24]", row.lineNum, row.fields["valid_hours"])
			continue
		}
		cov, err := strconv.ParseFloat(row.fields["coverage_pct"], 64)
		if err != nil {
			p.errorf("line %d: unparseable coverage %q", row.lineNum, row.fields["coverage_pct"])
			continue
		}
		want := float64(hours) / 24.0 * 100.0
		if diff := cov - want; diff > 0.01 || diff < -0.01 {
			p.errorf("line %d: coverage %g does not match %d valid hours", row.lineNum, cov, hours)
		}
	}
	return p
}

func checkExposures(rows []csvRow, mapping []csvRow, minCoverage float64) *phase {
	p := &phase{name: "exposure policy"}
	mapped := make(map[string]struct{}, len(mapping))
	for _, row := range mapping {
		mapped[row.fields["school_id"]] = struct{}{}
	}
	bounds := domain.DefaultPollutantBounds()
	for _, row := range rows {
		if _, ok := mapped[row.fields["school_id"]]; !ok {
			p.errorf("line %d: school %s has no mapping row", row.lineNum, row.fields["school_id"])
		}
		if row.fields["station_count"] != "1" {
			p.errorf("line %d: station_count %q, want 1", row.lineNum, row.fields["station_count"])
		}
		if row.fields["method"] != domain.MethodNearest {
			p.errorf("line %d: method %q, want %s", row.lineNum, row.fields["method"], domain.MethodNearest)
		}
		cov, err := strconv.ParseFloat(row.fields["coverage_pct"], 64)
		if err != nil || cov < minCoverage {
			p.errorf("line %d: coverage %q below minimum %g", row.lineNum, row.fields["coverage_pct"], minCoverage)
		}
		v, err := strconv.ParseFloat(row.fields["value_agg"], 64)
		if err != nil {
			p.errorf("line %d: unparseable value_agg %q", row.lineNum, row.fields["value_agg"])
			continue
		}
		b := bounds.Lookup(row.fields["pollutant_name"])
		if v < b.Min || v > b.Max {
			p.errorf("line %d: %s value %g outside [%g, %g]", row.lineNum, row.fields["pollutant_name"], v, b.Min, b.Max)
		}
	}
	return p
}

func checkQCReport(report qc.Report, exposureRows int) *phase {
	p := &phase{name: "qc report consistency"}
	if report.RowsKept != exposureRows {
		p.errorf("report says %d rows kept, exposure file has %d", report.RowsKept, exposureRows)
	}
	if report.RowsIn != report.RowsKept+report.RowsFlagged {
		p.errorf("rows_in %d != rows_kept %d + rows_flagged %d", report.RowsIn, report.RowsKept, report.RowsFlagged)
	}
	flagged := 0
	for _, n := range report.Flagged {
		flagged += n
	}
	if flagged != report.RowsFlagged {
		p.errorf("flagged_by_reason sums to %d, rows_flagged is %d", flagged, report.RowsFlagged)
	}
	return p
}

// csvRow is a parsed CSV data row with values keyed by header name.
type csvRow struct {
	lineNum int
	fields  map[string]string
}

func loadCSVRows(path string) ([]csvRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []csvRow
	line := 1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		fields := make(map[string]string, len(header))
		for i, col := range header {
			fields[col] = rec[i]
		}
		rows = append(rows, csvRow{lineNum: line, fields: fields})
	}
	return rows, nil
}

func loadQCReport(path string) (qc.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return qc.Report{}, err
	}
	var report qc.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return qc.Report{}, err
	}
	return report, nil
}
