package qc

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soccerwave/barcelona-air-quality-schools/internal/domain"
)

func testFilter() *Filter {
	return NewFilter(domain.DefaultPollutantBounds(), 75.0,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func exposure(pollutant string, value float64) domain.SchoolExposureRecord {
	return domain.SchoolExposureRecord{
		SchoolID:      "E1",
		PollutantName: pollutant,
		Date:          "2024-05-14",
		ValueAgg:      value,
		ValidHours:    20,
		CoveragePct:   83.3,
		StationCount:  1,
		Method:        domain.MethodNearest,
	}
}

func TestClassify(t *testing.T) {
	f := testFilter()

	tests := []struct {
		name string
		rec  domain.SchoolExposureRecord
		want string
	}{
		{"plausible pm25", exposure("pm25", 50.0), FlagOK},
		{"pm25 above max", exposure("pm25", 300.0), FlagAboveMax},
		{"pm25 at max", exposure("pm25", 250.0), FlagOK},
		{"negative beats bounds", exposure("pm25", -1.0), FlagNegative},
		{"no2 above max", exposure("no2", 410.0), FlagAboveMax},
		{"unknown pollutant plausible", exposure("mystery", 500.0), FlagOK},
		{"unknown pollutant implausible", exposure("mystery", 2_000_000.0), FlagAboveMax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Classify(tt.rec))
		})
	}
}

func TestRun_FiltersAndReports(t *testing.T) {
	frozen := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(frozen))
	defer domain.SetClock(nil)

	records := []domain.SchoolExposureRecord{
		exposure("pm25", 50.0),
		exposure("pm25", 300.0), // above_max
		exposure("no2", 30.0),
		exposure("no2", -2.0), // negative
		exposure("o3", 80.0),
	}

	kept, report, err := testFilter().Run(records)
	require.NoError(t, err)

	require.Len(t, kept, 3)
	assert.Equal(t, 5, report.RowsIn)
	assert.Equal(t, 3, report.RowsKept)
	assert.Equal(t, 2, report.RowsFlagged)
	assert.Equal(t, 1, report.Flagged[FlagAboveMax])
	assert.Equal(t, 1, report.Flagged[FlagNegative])
	assert.Equal(t, frozen, report.GeneratedAt)

	// Kept values are 50, 30, 80 -> median 50.
	assert.Equal(t, 50.0, report.ValueMedian)
}

func TestRun_BoundEdgeCases(t *testing.T) {
	f := testFilter()

	// pm25 at 300.0 must be flagged above_max and excluded.
	kept, report, err := f.Run([]domain.SchoolExposureRecord{exposure("pm25", 300.0)})
	require.NoError(t, err)
	assert.Empty(t, kept)
	assert.Equal(t, 1, report.Flagged[FlagAboveMax])

	// pm25 at 50.0 with coverage 80 and one station must be kept.
	rec := exposure("pm25", 50.0)
	rec.CoveragePct = 80.0
	kept, _, err = f.Run([]domain.SchoolExposureRecord{rec})
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, rec, kept[0])
}

func TestRun_PostFilterInvariants(t *testing.T) {
	t.Run("low coverage slipping through is fatal", func(t *testing.T) {
		rec := exposure("pm25", 50.0)
		rec.CoveragePct = 60.0

		_, _, err := testFilter().Run([]domain.SchoolExposureRecord{rec})
		require.Error(t, err)

		var invErr *domain.InvariantError
		require.ErrorAs(t, err, &invErr)
		assert.Equal(t, "qc post-filter", invErr.Stage)
		assert.Contains(t, invErr.Violations[0], "coverage 60.0 below minimum 75.0")
	})

	t.Run("station count other than one is fatal", func(t *testing.T) {
		rec := exposure("pm25", 50.0)
		rec.StationCount = 2

		_, _, err := testFilter().Run([]domain.SchoolExposureRecord{rec})
		var invErr *domain.InvariantError
		require.ErrorAs(t, err, &invErr)
		assert.Contains(t, invErr.Violations[0], "station_count 2")
	})
}

func TestRun_EmptyInput(t *testing.T) {
	kept, report, err := testFilter().Run(nil)
	require.NoError(t, err)
	assert.Empty(t, kept)
	assert.Equal(t, 0, report.RowsIn)
	assert.Equal(t, 0.0, report.ValueMedian)
}

func TestPercentile(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50}

	assert.Equal(t, 30.0, percentile(sorted, 0.50))
	assert.InDelta(t, 46.0, percentile(sorted, 0.90), 1e-9)
	assert.InDelta(t, 48.0, percentile(sorted, 0.95), 1e-9)
	assert.Equal(t, 10.0, percentile(sorted, 0))
	assert.Equal(t, 50.0, percentile(sorted, 1))
	assert.Equal(t, 7.0, percentile([]float64{7}, 0.9))
	assert.True(t, math.IsNaN(percentile(nil, 0.5)))
}
