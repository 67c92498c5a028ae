// Package crs detects the coordinate reference system of incoming geometry
// and reprojects it to WGS84.
package crs

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// CRS is an EPSG code.
type CRS int

const (
	WGS84  CRS = 4326
	UTM45N CRS = 32645
)

// Detection samples the first few geometries and the first few coordinates
// of each.
const (
	SampleGeometries  = 5
	SampleCoordinates = 10
)

// Bounds of the regional UTM heuristic, in metres.
const (
	utmMinX = 200000.0
	utmMaxX = 800000.0
	utmMinY = 1000000.0
	utmMaxY = 4000000.0
)

func (c CRS) String() string {
	return fmt.Sprintf("EPSG:%d", int(c))
}

// ParseEPSG accepts "EPSG:32645", "epsg:32645" or "32645".
func ParseEPSG(s string) (CRS, error) {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	code, err := strconv.Atoi(s)
	if err != nil || code <= 0 {
		return 0, fmt.Errorf("invalid EPSG code %q", s)
	}
	return CRS(code), nil
}

// UTMZone reports the zone and hemisphere of a WGS84/UTM code.
func (c CRS) UTMZone() (zone int, north bool, ok bool) {
	switch {
	case c >= 32601 && c <= 32660:
		return int(c) - 32600, true, true
	case c >= 32701 && c <= 32760:
		return int(c) - 32700, false, true
	}
	return 0, false, false
}

// Sample collects up to SampleCoordinates points from each of the first
// SampleGeometries non-nil geometries.
func Sample(geoms []orb.Geometry) []orb.Point {
	var out []orb.Point
	taken := 0
	for _, g := range geoms {
		if g == nil {
			continue
		}
		if taken == SampleGeometries {
			break
		}
		taken++
		n := 0
		walkPoints(g, func(p orb.Point) bool {
			out = append(out, p)
			n++
			return n < SampleCoordinates
		})
	}
	return out
}

// DetectCRS classifies sampled coordinates. It never fails: coordinates
// outside both known ranges fall back to the regional UTM zone.
func DetectCRS(samples []orb.Point) CRS {
	if allWithin(samples, -180, 180, -90, 90) {
		return WGS84
	}
	if allWithin(samples, utmMinX, utmMaxX, utmMinY, utmMaxY) {
		return UTM45N
	}
	log.Printf("Warning: could not classify coordinate system from %d samples, assuming %s", len(samples), UTM45N)
	return UTM45N
}

func allWithin(points []orb.Point, minX, maxX, minY, maxY float64) bool {
	for _, p := range points {
		if p[0] < minX || p[0] > maxX || p[1] < minY || p[1] > maxY {
			return false
		}
	}
	return true
}

// walkPoints visits coordinates in order until fn returns false.
func walkPoints(g orb.Geometry, fn func(orb.Point) bool) bool {
	switch g := g.(type) {
	case orb.Point:
		return fn(g)
	case orb.MultiPoint:
		for _, p := range g {
			if !fn(p) {
				return false
			}
		}
	case orb.LineString:
		for _, p := range g {
			if !fn(p) {
				return false
			}
		}
	case orb.Ring:
		for _, p := range g {
			if !fn(p) {
				return false
			}
		}
	case orb.MultiLineString:
		for _, ls := range g {
			if !walkPoints(ls, fn) {
				return false
			}
		}
	case orb.Polygon:
		for _, r := range g {
			if !walkPoints(r, fn) {
				return false
			}
		}
	case orb.MultiPolygon:
		for _, p := range g {
			if !walkPoints(p, fn) {
				return false
			}
		}
	case orb.Collection:
		for _, c := range g {
			if !walkPoints(c, fn) {
				return false
			}
		}
	case orb.Bound:
		return walkPoints(g.ToPolygon(), fn)
	}
	return true
}
