package vector

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

var ErrInvalidGeometry = errors.New("invalid geometry")

// Validate rejects geometry that a spatial database would refuse or that
// cannot be rendered. Beyond the structural checks (empty parts, non-finite
// ordinates, short lines, unclosed rings) polygons must be simple: no ring
// may cross or touch itself, holes must lie inside their shell, and no two
// rings of a polygon or polygons of a multipolygon may cross.
func Validate(g orb.Geometry) error {
	switch g := g.(type) {
	case nil:
		return ErrNullGeometry
	case orb.Point:
		return validPoint(g)
	case orb.MultiPoint:
		if len(g) == 0 {
			return fmt.Errorf("%w: empty multipoint", ErrInvalidGeometry)
		}
		for _, p := range g {
			if err := validPoint(p); err != nil {
				return err
			}
		}
	case orb.LineString:
		return validLine(g)
	case orb.MultiLineString:
		if len(g) == 0 {
			return fmt.Errorf("%w: empty multilinestring", ErrInvalidGeometry)
		}
		for _, ls := range g {
			if err := validLine(ls); err != nil {
				return err
			}
		}
	case orb.Ring:
		return validRing(g)
	case orb.Polygon:
		return validPolygon(g)
	case orb.MultiPolygon:
		if len(g) == 0 {
			return fmt.Errorf("%w: empty multipolygon", ErrInvalidGeometry)
		}
		for _, p := range g {
			if err := validPolygon(p); err != nil {
				return err
			}
		}
		for i := range g {
			for j := i + 1; j < len(g); j++ {
				if len(g[i]) > 0 && len(g[j]) > 0 && ringsCross(g[i][0], g[j][0]) {
					return fmt.Errorf("%w: polygons %d and %d intersect", ErrInvalidGeometry, i, j)
				}
			}
		}
	case orb.Collection:
		if len(g) == 0 {
			return fmt.Errorf("%w: empty collection", ErrInvalidGeometry)
		}
		for _, c := range g {
			if err := Validate(c); err != nil {
				return err
			}
		}
	case orb.Bound:
		return validPolygon(g.ToPolygon())
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrInvalidGeometry, g)
	}
	return nil
}

func validPoint(p orb.Point) error {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite coordinate", ErrInvalidGeometry)
		}
	}
	return nil
}

func validLine(ls orb.LineString) error {
	if len(ls) < 2 {
		return fmt.Errorf("%w: linestring needs at least 2 points", ErrInvalidGeometry)
	}
	for _, p := range ls {
		if err := validPoint(p); err != nil {
			return err
		}
	}
	return nil
}

func validRing(r orb.Ring) error {
	if len(r) < 4 {
		return fmt.Errorf("%w: ring needs at least 4 points", ErrInvalidGeometry)
	}
	if !r.Closed() {
		return fmt.Errorf("%w: ring is not closed", ErrInvalidGeometry)
	}
	for _, p := range r {
		if err := validPoint(p); err != nil {
			return err
		}
	}
	return nil
}

func validPolygon(p orb.Polygon) error {
	if len(p) == 0 {
		return fmt.Errorf("%w: empty polygon", ErrInvalidGeometry)
	}
	for _, r := range p {
		if err := validRing(r); err != nil {
			return err
		}
	}
	for i, r := range p {
		if planar.Area(r) == 0 {
			return fmt.Errorf("%w: ring %d has no area", ErrInvalidGeometry, i)
		}
		if selfIntersects(r) {
			return fmt.Errorf("%w: ring %d self-intersects", ErrInvalidGeometry, i)
		}
	}

	shell := p[0]
	for i, hole := range p[1:] {
		if ringsCross(shell, hole) {
			return fmt.Errorf("%w: hole %d crosses the shell", ErrInvalidGeometry, i+1)
		}
		if !ringInside(hole, shell) {
			return fmt.Errorf("%w: hole %d lies outside the shell", ErrInvalidGeometry, i+1)
		}
		for j, other := range p[i+2:] {
			if ringsCross(hole, other) || ringInside(other, hole) || ringInside(hole, other) {
				return fmt.Errorf("%w: holes %d and %d overlap", ErrInvalidGeometry, i+1, i+j+2)
			}
		}
	}
	return nil
}

// segments returns the ring's edges with repeated vertices dropped.
func segments(r orb.Ring) [][2]orb.Point {
	out := make([][2]orb.Point, 0, len(r))
	for i := 1; i < len(r); i++ {
		if r[i] == r[i-1] {
			continue
		}
		out = append(out, [2]orb.Point{r[i-1], r[i]})
	}
	return out
}

// selfIntersects reports whether two edges of r meet anywhere other than
// the vertex shared by neighbouring edges, including an edge folding back
// over its neighbour.
func selfIntersects(r orb.Ring) bool {
	segs := segments(r)
	n := len(segs)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a, b := segs[i], segs[j]
			switch {
			case j == i+1:
				if foldsBack(a[0], a[1], b[1]) {
					return true
				}
			case i == 0 && j == n-1:
				if foldsBack(b[0], b[1], a[1]) {
					return true
				}
			default:
				if segmentsIntersect(a[0], a[1], b[0], b[1]) {
					return true
				}
			}
		}
	}
	return false
}

// foldsBack reports whether the path p-q-r turns straight back on itself.
func foldsBack(p, q, r orb.Point) bool {
	if orient(p, q, r) != 0 {
		return false
	}
	return (q[0]-p[0])*(r[0]-q[0])+(q[1]-p[1])*(r[1]-q[1]) < 0
}

// ringsCross reports whether any edge of a properly crosses an edge of b.
// Touching at a single point is allowed, as it is between a shell and its
// holes.
func ringsCross(a, b orb.Ring) bool {
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}
	for _, s := range segments(a) {
		for _, t := range segments(b) {
			if properlyCross(s[0], s[1], t[0], t[1]) {
				return true
			}
		}
	}
	return false
}

// ringInside reports whether inner lies within outer, judged by the first
// vertex of inner that is not on outer's boundary.
func ringInside(inner, outer orb.Ring) bool {
	for _, p := range inner {
		if onRing(outer, p) {
			continue
		}
		return planar.RingContains(outer, p)
	}
	return true
}

func onRing(r orb.Ring, p orb.Point) bool {
	for _, s := range segments(r) {
		if orient(s[0], s[1], p) == 0 && onSegment(s[0], s[1], p) {
			return true
		}
	}
	return false
}

func orient(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// onSegment reports whether p, already known to be collinear with a-b,
// lies within the segment's box.
func onSegment(a, b, p orb.Point) bool {
	return math.Min(a[0], b[0]) <= p[0] && p[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= p[1] && p[1] <= math.Max(a[1], b[1])
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// segmentsIntersect reports whether p1-p2 and q1-q2 share any point.
func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := sign(orient(q1, q2, p1))
	d2 := sign(orient(q1, q2, p2))
	d3 := sign(orient(p1, p2, q1))
	d4 := sign(orient(p1, p2, q2))
	if d1*d2 < 0 && d3*d4 < 0 {
		return true
	}
	return (d1 == 0 && onSegment(q1, q2, p1)) ||
		(d2 == 0 && onSegment(q1, q2, p2)) ||
		(d3 == 0 && onSegment(p1, p2, q1)) ||
		(d4 == 0 && onSegment(p1, p2, q2))
}

// properlyCross reports whether the segments cross at a single interior
// point of both.
func properlyCross(p1, p2, q1, q2 orb.Point) bool {
	d1 := sign(orient(q1, q2, p1))
	d2 := sign(orient(q1, q2, p2))
	d3 := sign(orient(p1, p2, q1))
	d4 := sign(orient(p1, p2, q2))
	return d1*d2 < 0 && d3*d4 < 0
}

// GeometryType names a geometry the way the catalog stores it.
func GeometryType(g orb.Geometry) string {
	if g == nil {
		return "GEOMETRY"
	}
	switch g.(type) {
	case orb.Point:
		return "POINT"
	case orb.MultiPoint:
		return "MULTIPOINT"
	case orb.LineString:
		return "LINESTRING"
	case orb.MultiLineString:
		return "MULTILINESTRING"
	case orb.Polygon, orb.Ring, orb.Bound:
		return "POLYGON"
	case orb.MultiPolygon:
		return "MULTIPOLYGON"
	}
	return "GEOMETRYCOLLECTION"
}
