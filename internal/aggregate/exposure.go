package aggregate

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/soccerwave/barcelona-air-quality-schools/internal/domain"
)

// ExposureSummary reports what the exposure aggregation kept and dropped.
type ExposureSummary struct {
	GroupsBefore    int
	DroppedCoverage int
	DroppedValue    int
	Kept            int
}

// SchoolExposure joins station-day aggregates to the nearest-station mapping
// and computes the hours-weighted exposure per (school, pollutant, date).
//
// Under the single nearest-station policy every group has exactly one
// contributing station; a higher count means the mapping is corrupt and the
// whole run must stop, so it returns an InvariantError rather than a row.
// Groups below minCoveragePct or with a non-finite or negative value are
// dropped here, before persistence.
func SchoolExposure(
	daily []domain.StationDailyAggregate,
	mapping []domain.SchoolStationMapping,
	minCoveragePct float64,
	logger *slog.Logger,
) ([]domain.SchoolExposureRecord, ExposureSummary, error) {
	schoolsByStation := make(map[string][]string)
	for _, mp := range mapping {
		schoolsByStation[mp.StationID] = append(schoolsByStation[mp.StationID], mp.SchoolID)
	}

	type key struct {
		school string
		name   string
		date   string
	}
	type acc struct {
		stations   map[string]struct{}
		validHours int
		weightSum  float64
		weighted   float64
	}

	groups := make(map[key]*acc)
	for _, sd := range daily {
		// Station-days with broken means never enter the join.
		if math.IsNaN(sd.ValueMean) || math.IsInf(sd.ValueMean, 0) || sd.ValueMean < 0 {
			continue
		}
		for _, school := range schoolsByStation[sd.StationID] {
			k := key{school: school, name: sd.PollutantName, date: sd.Date}
			a := groups[k]
			if a == nil {
				a = &acc{stations: make(map[string]struct{})}
				groups[k] = a
			}
			a.stations[sd.StationID] = struct{}{}
			a.validHours += sd.ValidHours
			weight := math.Max(float64(sd.ValidHours), 0)
			a.weightSum += weight
			a.weighted += weight * sd.ValueMean
		}
	}

	sum := ExposureSummary{GroupsBefore: len(groups)}
	out := make([]domain.SchoolExposureRecord, 0, len(groups))
	var violations []string

	for k, a := range groups {
		stationCount := len(a.stations)
		if stationCount != 1 {
			violations = append(violations, fmt.Sprintf(
				"school %s pollutant %s date %s has station_count=%d, want 1",
				k.school, k.name, k.date, stationCount))
			continue
		}

		value := a.weighted / a.weightSum
		coverage := float64(a.validHours) / (hoursPerDay * float64(stationCount)) * 100.0

		if coverage < minCoveragePct {
			sum.DroppedCoverage++
			continue
		}
		if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
			sum.DroppedValue++
			continue
		}

		out = append(out, domain.SchoolExposureRecord{
			SchoolID:      k.school,
			PollutantName: k.name,
			Date:          k.date,
			ValueAgg:      value,
			ValidHours:    a.validHours,
			CoveragePct:   coverage,
			StationCount:  stationCount,
			Method:        domain.MethodNearest,
		})
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		return nil, sum, domain.NewInvariantError("school exposure", violations)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.SchoolID != b.SchoolID {
			return a.SchoolID < b.SchoolID
		}
		if a.PollutantName != b.PollutantName {
			return a.PollutantName < b.PollutantName
		}
		return a.Date < b.Date
	})
	sum.Kept = len(out)

	logger.Info("school exposure aggregated",
		"groups", sum.GroupsBefore,
		"dropped_low_coverage", sum.DroppedCoverage,
		"dropped_bad_value", sum.DroppedValue,
		"kept", sum.Kept,
		"min_coverage_pct", minCoveragePct)

	return out, sum, nil
}
