// Package aggregate folds the reading store into station-day aggregates and
// joins them through the nearest-station mapping into per-school daily
// exposure records.
package aggregate

import (
	"sort"

	"github.com/soccerwave/barcelona-air-quality-schools/internal/domain"
)

const hoursPerDay = 24.0

// StationDaily collapses readings into one row per (station, pollutant name,
// calendar date): count and mean of the valid hourly values. Pollutant codes
// resolve to names through the injected table. A group exists only if at
// least one valid reading contributed, so valid_hours is always 1-24.
//
// Names in whitelist restrict the output; an empty whitelist keeps
// everything. The second return value is how many readings the whitelist
// removed.
func StationDaily(readings []domain.Reading, table domain.PollutantTable, whitelist map[string]struct{}) ([]domain.StationDailyAggregate, int) {
	type key struct {
		station string
		name    string
		date    string
	}
	type acc struct {
		count int
		sum   float64
	}

	groups := make(map[key]*acc)
	removed := 0
	for _, rd := range readings {
		name := table.Name(rd.PollutantCode)
		if len(whitelist) > 0 {
			if _, ok := whitelist[name]; !ok {
				removed++
				continue
			}
		}
		k := key{station: rd.StationID, name: name, date: rd.Date()}
		a := groups[k]
		if a == nil {
			a = &acc{}
			groups[k] = a
		}
		a.count++
		a.sum += rd.Value
	}

	out := make([]domain.StationDailyAggregate, 0, len(groups))
	for k, a := range groups {
		out = append(out, domain.StationDailyAggregate{
			StationID:     k.station,
			PollutantName: k.name,
			Date:          k.date,
			ValidHours:    a.count,
			ValueMean:     a.sum / float64(a.count),
			CoveragePct:   float64(a.count) / hoursPerDay * 100.0,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.StationID != b.StationID {
			return a.StationID < b.StationID
		}
		if a.PollutantName != b.PollutantName {
			return a.PollutantName < b.PollutantName
		}
		return a.Date < b.Date
	})
	return out, removed
}
