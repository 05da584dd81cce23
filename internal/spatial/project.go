// Package spatial assigns each school its geometrically nearest air-quality
// station. Both point sets are projected from WGS-84 into ETRS89 / UTM zone
// 31N (EPSG:25831), the planar metric system covering Catalonia, so that
// Euclidean distance approximates ground distance to well under a meter at
// city scale.
package spatial

import (
	"math"

	"github.com/paulmach/orb"
)

// GRS80 ellipsoid parameters (ETRS89 datum).
const (
	semiMajorAxis = 6378137.0
	flattening    = 1.0 / 298.257222101
)

// UTM zone 31N parameters.
const (
	centralMeridianDeg = 3.0
	scaleFactor        = 0.9996
	falseEasting       = 500000.0
	falseNorthing      = 0.0
)

// projectUTM31 converts a WGS-84 longitude/latitude point to ETRS89 / UTM 31N
// easting/northing in meters, using the standard transverse Mercator series
// (Snyder, Map Projections: A Working Manual, eq. 8-9..8-15). WGS-84 and
// ETRS89 differ by centimeters, below the accuracy this matching needs.
func projectUTM31(p orb.Point) orb.Point {
	lon := p[0] * math.Pi / 180
	lat := p[1] * math.Pi / 180
	lon0 := centralMeridianDeg * math.Pi / 180

	e2 := flattening * (2 - flattening)
	e4 := e2 * e2
	e6 := e4 * e2
	ep2 := e2 / (1 - e2)

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	tanLat := math.Tan(lat)

	n := semiMajorAxis / math.Sqrt(1-e2*sinLat*sinLat)
	t := tanLat * tanLat
	c := ep2 * cosLat * cosLat
	a := (lon - lon0) * cosLat

	m := semiMajorAxis * ((1-e2/4-3*e4/64-5*e6/256)*lat -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*lat) +
		(15*e4/256+45*e6/1024)*math.Sin(4*lat) -
		(35*e6/3072)*math.Sin(6*lat))

	a2 := a * a
	a3 := a2 * a
	a4 := a3 * a
	a5 := a4 * a
	a6 := a5 * a

	easting := falseEasting + scaleFactor*n*(a+
		(1-t+c)*a3/6+
		(5-18*t+t*t+72*c-58*ep2)*a5/120)

	northing := falseNorthing + scaleFactor*(m+n*tanLat*(a2/2+
		(5-t+9*c+4*c*c)*a4/24+
		(61-58*t+t*t+600*c-330*ep2)*a6/720))

	return orb.Point{easting, northing}
}
