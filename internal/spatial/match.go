package spatial

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"

	"github.com/soccerwave/barcelona-air-quality-schools/internal/domain"
)

// ErrNoStations is returned when the station set is empty; matching against
// nothing would produce an undefined mapping.
var ErrNoStations = errors.New("spatial: no stations to match against")

// stationNode is a projected station inside the quadtree. index preserves
// input order so equidistant candidates resolve to the first one seen.
type stationNode struct {
	point   orb.Point // projected easting/northing
	station domain.StationPoint
	index   int
}

func (n *stationNode) Point() orb.Point { return n.point }

// Matcher computes nearest-station assignments over a quadtree of projected
// station coordinates, one query per school instead of an all-pairs scan.
type Matcher struct {
	logger *slog.Logger
}

// NewMatcher creates a Matcher.
func NewMatcher(logger *slog.Logger) *Matcher {
	return &Matcher{logger: logger}
}

// NearestStations maps every school to its nearest station with the planar
// distance in meters. The mapping is total: one row per school, stations
// reused freely. Equidistant stations resolve to the first in input order;
// truly coincident stations are not expected in the source data.
func (m *Matcher) NearestStations(schools []domain.SchoolPoint, stations []domain.StationPoint) ([]domain.SchoolStationMapping, error) {
	if len(stations) == 0 {
		return nil, ErrNoStations
	}

	nodes := make([]*stationNode, len(stations))
	bound := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	for i, st := range stations {
		p := projectUTM31(orb.Point{st.Longitude, st.Latitude})
		nodes[i] = &stationNode{point: p, station: st, index: i}
		bound = bound.Extend(p)
	}

	// Pad the bound so schools outside the station envelope still query
	// against a tree whose root covers every point it holds.
	bound = bound.Pad(1)

	tree := quadtree.New(bound)
	for _, node := range nodes {
		if err := tree.Add(node); err != nil {
			return nil, fmt.Errorf("spatial: index station %s: %w", node.station.StationID, err)
		}
	}

	out := make([]domain.SchoolStationMapping, 0, len(schools))
	for _, school := range schools {
		sp := projectUTM31(orb.Point{school.Longitude, school.Latitude})

		found := tree.Find(sp)
		if found == nil {
			return nil, fmt.Errorf("spatial: no station found for school %s", school.SchoolID)
		}
		best := found.(*stationNode)

		// The quadtree does not promise input-order ties; settle any exact
		// tie against the earlier-indexed candidate. Only nodes on the
		// circle of radius dist can tie, so query the enclosing box rather
		// than scanning every station.
		dist := planarDistance(sp, best.point)
		box := orb.Bound{
			Min: orb.Point{sp[0] - dist, sp[1] - dist},
			Max: orb.Point{sp[0] + dist, sp[1] + dist},
		}
		for _, ptr := range tree.InBound(nil, box) {
			node := ptr.(*stationNode)
			if node.index < best.index && planarDistance(sp, node.point) == dist {
				best = node
			}
		}

		out = append(out, domain.SchoolStationMapping{
			SchoolID:  school.SchoolID,
			StationID: best.station.StationID,
			DistanceM: dist,
			Longitude: school.Longitude,
			Latitude:  school.Latitude,
		})
	}

	m.logger.Info("nearest-station matching complete",
		"schools", len(schools),
		"stations", len(stations),
		"mappings", len(out))

	return out, nil
}

func planarDistance(a, b orb.Point) float64 {
	return math.Hypot(a[0]-b[0], a[1]-b[1])
}
