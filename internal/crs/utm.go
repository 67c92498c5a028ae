package crs

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Projector transforms a whole geometry from a source CRS to WGS84.
type Projector interface {
	ToWGS84(g orb.Geometry, from CRS) (orb.Geometry, error)
}

// UTMProjector inverts the WGS84 UTM zones (EPSG:326xx / 327xx) without
// leaving the process.
type UTMProjector struct{}

// WGS84 ellipsoid and UTM scale factor.
const (
	semiMajor  = 6378137.0
	flattening = 1 / 298.257223563
	utmScale   = 0.9996
	falseEast  = 500000.0
	falseNorth = 10000000.0
)

func (UTMProjector) ToWGS84(g orb.Geometry, from CRS) (orb.Geometry, error) {
	if from == WGS84 {
		return g, nil
	}
	zone, north, ok := from.UTMZone()
	if !ok {
		return nil, fmt.Errorf("unsupported source crs %s", from)
	}

	var bad error
	out := mapPoints(orb.Clone(g), func(p orb.Point) orb.Point {
		lon, lat := utmInverse(p[0], p[1], zone, north)
		if math.IsNaN(lon) || math.IsNaN(lat) || math.Abs(lat) > 90 {
			bad = fmt.Errorf("coordinate %v is outside %s", p, from)
		}
		return orb.Point{lon, lat}
	})
	if bad != nil {
		return nil, bad
	}
	return out, nil
}

// utmInverse follows Snyder's transverse Mercator series (USGS PP 1395).
func utmInverse(x, y float64, zone int, north bool) (lon, lat float64) {
	e2 := flattening * (2 - flattening)
	ep2 := e2 / (1 - e2)

	x -= falseEast
	if !north {
		y -= falseNorth
	}

	m := y / utmScale
	mu := m / (semiMajor * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))
	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))

	phi1 := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sin, cos, tan := math.Sin(phi1), math.Cos(phi1), math.Tan(phi1)
	n1 := semiMajor / math.Sqrt(1-e2*sin*sin)
	t1 := tan * tan
	c1 := ep2 * cos * cos
	r1 := semiMajor * (1 - e2) / math.Pow(1-e2*sin*sin, 1.5)
	d := x / (n1 * utmScale)

	latRad := phi1 - (n1*tan/r1)*
		(d*d/2-
			(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
			(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)

	lonRad := (d -
		(1+2*t1+c1)*math.Pow(d, 3)/6 +
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120) / cos

	centralMeridian := float64((zone-1)*6-180+3)
	return centralMeridian + lonRad*180/math.Pi, latRad * 180 / math.Pi
}

// mapPoints rewrites every coordinate of g in place.
func mapPoints(g orb.Geometry, fn func(orb.Point) orb.Point) orb.Geometry {
	switch g := g.(type) {
	case orb.Point:
		return fn(g)
	case orb.MultiPoint:
		for i := range g {
			g[i] = fn(g[i])
		}
		return g
	case orb.LineString:
		for i := range g {
			g[i] = fn(g[i])
		}
		return g
	case orb.Ring:
		for i := range g {
			g[i] = fn(g[i])
		}
		return g
	case orb.MultiLineString:
		for i := range g {
			g[i] = mapPoints(g[i], fn).(orb.LineString)
		}
		return g
	case orb.Polygon:
		for i := range g {
			g[i] = mapPoints(g[i], fn).(orb.Ring)
		}
		return g
	case orb.MultiPolygon:
		for i := range g {
			g[i] = mapPoints(g[i], fn).(orb.Polygon)
		}
		return g
	case orb.Collection:
		for i := range g {
			g[i] = mapPoints(g[i], fn)
		}
		return g
	case orb.Bound:
		return mapPoints(g.ToPolygon(), fn)
	}
	return g
}
