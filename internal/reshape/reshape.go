// Package reshape converts wide municipal hourly records into long-form
// readings: 24 value/validity cell pairs per row become up to 24 timestamped
// observations, validity-normalized, timezone-localized, and deduplicated.
package reshape

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soccerwave/barcelona-air-quality-schools/internal/domain"
)

// Summary counts what happened to every hour cell during one reshape run.
// Parsing anomalies are absorbed here, never fatal, and always reported.
type Summary struct {
	WideRows          int
	HoursExpanded     int
	InvalidMarker     int
	MissingValue      int
	NegativeValue     int
	BadTimestamp      int
	DuplicatesRemoved int
	Kept              int
}

// Reshaper unpivots RawWideRecords into Readings.
type Reshaper struct {
	loc     *time.Location
	workers int
	logger  *slog.Logger
}

// New creates a Reshaper localizing timestamps into loc. workers <= 0 means
// one worker per CPU.
func New(loc *time.Location, workers int, logger *slog.Logger) *Reshaper {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Reshaper{loc: loc, workers: workers, logger: logger}
}

// Reshape expands records into valid readings. Rows are dropped when the
// validity marker is not valid, the value is absent or negative, or the
// timestamp cannot be composed. The result is sorted by (station, pollutant,
// timestamp) and deduplicated keep-first on (station, pollutant, date, hour);
// the canonical pre-sort makes the keep-first choice reproducible.
func (r *Reshaper) Reshape(ctx context.Context, records []domain.RawWideRecord) ([]domain.Reading, Summary, error) {
	chunks := chunkRecords(records, r.workers)
	results := make([][]domain.Reading, len(chunks))
	partials := make([]Summary, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], partials[i] = r.reshapeChunk(chunk)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Summary{}, err
	}

	var sum Summary
	var readings []domain.Reading
	for i := range chunks {
		readings = append(readings, results[i]...)
		sum.WideRows += partials[i].WideRows
		sum.HoursExpanded += partials[i].HoursExpanded
		sum.InvalidMarker += partials[i].InvalidMarker
		sum.MissingValue += partials[i].MissingValue
		sum.NegativeValue += partials[i].NegativeValue
		sum.BadTimestamp += partials[i].BadTimestamp
	}

	sortReadings(readings)
	readings, sum.DuplicatesRemoved = dedupReadings(readings)
	sum.Kept = len(readings)

	if sum.DuplicatesRemoved > 0 {
		r.logger.Warn("duplicate readings removed",
			"count", sum.DuplicatesRemoved,
			"policy", "keep first after (station, pollutant, timestamp) sort")
	}
	r.logger.Info("reshape complete",
		"wide_rows", sum.WideRows,
		"hours_expanded", sum.HoursExpanded,
		"invalid_marker", sum.InvalidMarker,
		"missing_value", sum.MissingValue,
		"negative_value", sum.NegativeValue,
		"bad_timestamp", sum.BadTimestamp,
		"duplicates_removed", sum.DuplicatesRemoved,
		"kept", sum.Kept)

	return readings, sum, nil
}

func (r *Reshaper) reshapeChunk(records []domain.RawWideRecord) ([]domain.Reading, Summary) {
	var sum Summary
	out := make([]domain.Reading, 0, len(records)*24)

	for _, rec := range records {
		sum.WideRows++
		for hour := 0; hour < 24; hour++ {
			sum.HoursExpanded++
			if !domain.NormalizeValidity(rec.Validity[hour]) {
				sum.InvalidMarker++
				continue
			}
			value, ok := parseValue(rec.Values[hour])
			if !ok {
				sum.MissingValue++
				continue
			}
			if value < 0 {
				sum.NegativeValue++
				continue
			}
			ts, err := domain.Localize(rec.Year, rec.Month, rec.Day, hour, r.loc)
			if err != nil {
				sum.BadTimestamp++
				continue
			}
			out = append(out, domain.Reading{
				StationID:     strings.TrimSpace(rec.StationID),
				PollutantCode: domain.NormalizeCode(rec.PollutantCode),
				Timestamp:     ts,
				Value:         value,
				Validity:      true,
			})
		}
	}
	return out, sum
}

func parseValue(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// sortReadings orders by the natural key. The sort is stable so input order
// decides between rows sharing a (station, pollutant, timestamp) key, which
// pins down which duplicate "first" means.
func sortReadings(readings []domain.Reading) {
	sort.SliceStable(readings, func(i, j int) bool {
		a, b := readings[i], readings[j]
		if a.StationID != b.StationID {
			return a.StationID < b.StationID
		}
		if a.PollutantCode != b.PollutantCode {
			return a.PollutantCode < b.PollutantCode
		}
		return a.Timestamp.Before(b.Timestamp)
	})
}

// dedupReadings keeps the first reading per (station, pollutant, date, hour)
// slot. The input must already be in canonical order.
func dedupReadings(readings []domain.Reading) ([]domain.Reading, int) {
	seen := make(map[domain.ReadingKey]struct{}, len(readings))
	out := readings[:0]
	removed := 0
	for _, rd := range readings {
		key := rd.Key()
		if _, dup := seen[key]; dup {
			removed++
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rd)
	}
	return out, removed
}

func chunkRecords(records []domain.RawWideRecord, workers int) [][]domain.RawWideRecord {
	if len(records) == 0 {
		return nil
	}
	if workers > len(records) {
		workers = len(records)
	}
	size := (len(records) + workers - 1) / workers
	chunks := make([][]domain.RawWideRecord, 0, workers)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[start:end])
	}
	return chunks
}
