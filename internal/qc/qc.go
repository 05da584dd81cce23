// Package qc applies pollutant-specific plausibility bounds to aggregated
// exposure records and produces the quality-control report.
package qc

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/soccerwave/barcelona-air-quality-schools/internal/domain"
)

// Flag reasons, evaluated in priority order. Negative values should not
// survive the aggregator but are still checked here.
const (
	FlagOK       = "ok"
	FlagNegative = "negative"
	FlagBelowMin = "below_min"
	FlagAboveMax = "above_max"
)

// Report summarizes one QC pass: counts by flag reason plus distribution
// statistics of the kept values.
type Report struct {
	RowsIn      int            `json:"rows_in"`
	RowsKept    int            `json:"rows_kept"`
	RowsFlagged int            `json:"rows_flagged"`
	Flagged     map[string]int `json:"flagged_by_reason"`
	ValueMedian float64        `json:"value_median"`
	ValueP90    float64        `json:"value_p90"`
	ValueP95    float64        `json:"value_p95"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Filter classifies exposure records against bounds and keeps only "ok" rows.
type Filter struct {
	bounds         domain.PollutantBounds
	minCoveragePct float64
	logger         *slog.Logger
}

// NewFilter creates a Filter. minCoveragePct is only used for the post-filter
// invariant re-check; the coverage gate itself lives in the aggregator.
func NewFilter(bounds domain.PollutantBounds, minCoveragePct float64, logger *slog.Logger) *Filter {
	return &Filter{bounds: bounds, minCoveragePct: minCoveragePct, logger: logger}
}

// Classify returns the flag for a single record, first match wins:
// negative, below_min, above_max, ok.
func (f *Filter) Classify(rec domain.SchoolExposureRecord) string {
	bound := f.bounds.Lookup(rec.PollutantName)
	switch {
	case rec.ValueAgg < 0:
		return FlagNegative
	case rec.ValueAgg < bound.Min:
		return FlagBelowMin
	case rec.ValueAgg > bound.Max:
		return FlagAboveMax
	default:
		return FlagOK
	}
}

// Run filters records and builds the QC report. The input is never mutated;
// disqualified rows are removed, not edited. After filtering, every kept row
// is re-checked against the pipeline's exposure invariants; a violation there
// means something upstream is broken and the error is fatal.
func (f *Filter) Run(records []domain.SchoolExposureRecord) ([]domain.SchoolExposureRecord, Report, error) {
	report := Report{
		RowsIn:      len(records),
		Flagged:     map[string]int{},
		GeneratedAt: domain.Now(),
	}

	kept := make([]domain.SchoolExposureRecord, 0, len(records))
	for _, rec := range records {
		flag := f.Classify(rec)
		if flag != FlagOK {
			report.Flagged[flag]++
			report.RowsFlagged++
			continue
		}
		kept = append(kept, rec)
	}
	report.RowsKept = len(kept)

	// Statistics stay zero when nothing survives; the report is serialized
	// as JSON, which has no encoding for NaN.
	if len(kept) > 0 {
		values := make([]float64, len(kept))
		for i, rec := range kept {
			values[i] = rec.ValueAgg
		}
		sort.Float64s(values)
		report.ValueMedian = percentile(values, 0.50)
		report.ValueP90 = percentile(values, 0.90)
		report.ValueP95 = percentile(values, 0.95)
	}

	if err := f.checkInvariants(kept); err != nil {
		return nil, report, err
	}

	f.logger.Info("quality control complete",
		"rows_in", report.RowsIn,
		"rows_kept", report.RowsKept,
		"rows_flagged", report.RowsFlagged,
		"flagged_by_reason", report.Flagged)

	return kept, report, nil
}

// checkInvariants verifies that every kept row satisfies the guarantees the
// pipeline promises downstream consumers.
func (f *Filter) checkInvariants(kept []domain.SchoolExposureRecord) error {
	var violations []string
	for _, rec := range kept {
		at := fmt.Sprintf("school %s pollutant %s date %s", rec.SchoolID, rec.PollutantName, rec.Date)
		if rec.CoveragePct < f.minCoveragePct {
			violations = append(violations, fmt.Sprintf("%s: coverage %.1f below minimum %.1f", at, rec.CoveragePct, f.minCoveragePct))
		}
		if rec.ValueAgg < 0 || math.IsNaN(rec.ValueAgg) || math.IsInf(rec.ValueAgg, 0) {
			violations = append(violations, fmt.Sprintf("%s: value %v not a non-negative finite number", at, rec.ValueAgg))
		}
		if rec.StationCount != 1 {
			violations = append(violations, fmt.Sprintf("%s: station_count %d, want 1", at, rec.StationCount))
		}
	}
	return domain.NewInvariantError("qc post-filter", violations)
}

// percentile interpolates linearly between order statistics of a sorted
// slice. Returns
// NaN for an empty slice.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
