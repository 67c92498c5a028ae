package vector

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

type kmlPlacemark struct {
	Name         string            `xml:"name"`
	Description  string            `xml:"description"`
	ExtendedData kmlExtendedData   `xml:"ExtendedData"`
	Point        *kmlPoint         `xml:"Point"`
	LineString   *kmlLineString    `xml:"LineString"`
	Polygon      *kmlPolygon       `xml:"Polygon"`
	Multi        *kmlMultiGeometry `xml:"MultiGeometry"`
}

type kmlExtendedData struct {
	Data []struct {
		Name  string `xml:"name,attr"`
		Value string `xml:"value"`
	} `xml:"Data"`
	SimpleData []struct {
		Name  string `xml:"name,attr"`
		Value string `xml:",chardata"`
	} `xml:"SchemaData>SimpleData"`
}

type kmlPoint struct {
	Coordinates string `xml:"coordinates"`
}

type kmlLineString struct {
	Coordinates string `xml:"coordinates"`
}

type kmlPolygon struct {
	Outer string   `xml:"outerBoundaryIs>LinearRing>coordinates"`
	Inner []string `xml:"innerBoundaryIs>LinearRing>coordinates"`
}

type kmlMultiGeometry struct {
	Points   []kmlPoint         `xml:"Point"`
	Lines    []kmlLineString    `xml:"LineString"`
	Polygons []kmlPolygon       `xml:"Polygon"`
	Multi    []kmlMultiGeometry `xml:"MultiGeometry"`
}

func readKMLFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open kml: %w", err)
	}
	defer f.Close()
	return ParseKML(f)
}

// ParseKML walks the document for Placemarks at any Document/Folder depth.
func ParseKML(r io.Reader) ([]Record, error) {
	dec := xml.NewDecoder(r)
	var records []Record
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid kml: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Placemark" {
			continue
		}

		var pm kmlPlacemark
		if err := dec.DecodeElement(&pm, &start); err != nil {
			return nil, fmt.Errorf("invalid kml placemark: %w", err)
		}
		records = append(records, placemarkRecord(pm))
	}
	return records, nil
}

func placemarkRecord(pm kmlPlacemark) Record {
	props := map[string]interface{}{}
	if pm.Name != "" {
		props["name"] = pm.Name
	}
	if pm.Description != "" {
		props["description"] = strings.TrimSpace(pm.Description)
	}
	for _, d := range pm.ExtendedData.Data {
		props[d.Name] = d.Value
	}
	for _, d := range pm.ExtendedData.SimpleData {
		props[d.Name] = d.Value
	}

	var (
		g   orb.Geometry
		err error
	)
	switch {
	case pm.Point != nil:
		g, err = kmlPointGeometry(*pm.Point)
	case pm.LineString != nil:
		g, err = kmlLineGeometry(*pm.LineString)
	case pm.Polygon != nil:
		g, err = kmlPolygonGeometry(*pm.Polygon)
	case pm.Multi != nil:
		g, err = kmlMultiGeometryValue(*pm.Multi)
	default:
		err = ErrNullGeometry
	}
	return Record{Geometry: g, Properties: props, Err: err}
}

func kmlPointGeometry(p kmlPoint) (orb.Geometry, error) {
	pts, err := parseKMLCoordinates(p.Coordinates)
	if err != nil {
		return nil, err
	}
	if len(pts) != 1 {
		return nil, fmt.Errorf("%w: point has %d coordinates", ErrInvalidGeometry, len(pts))
	}
	return pts[0], nil
}

func kmlLineGeometry(l kmlLineString) (orb.Geometry, error) {
	pts, err := parseKMLCoordinates(l.Coordinates)
	if err != nil {
		return nil, err
	}
	return orb.LineString(pts), nil
}

func kmlPolygonGeometry(p kmlPolygon) (orb.Geometry, error) {
	outer, err := parseKMLCoordinates(p.Outer)
	if err != nil {
		return nil, err
	}
	poly := orb.Polygon{orb.Ring(outer)}
	for _, inner := range p.Inner {
		pts, err := parseKMLCoordinates(inner)
		if err != nil {
			return nil, err
		}
		poly = append(poly, orb.Ring(pts))
	}
	return poly, nil
}

func kmlMultiGeometryValue(m kmlMultiGeometry) (orb.Geometry, error) {
	var c orb.Collection
	for _, p := range m.Points {
		g, err := kmlPointGeometry(p)
		if err != nil {
			return nil, err
		}
		c = append(c, g)
	}
	for _, l := range m.Lines {
		g, err := kmlLineGeometry(l)
		if err != nil {
			return nil, err
		}
		c = append(c, g)
	}
	for _, p := range m.Polygons {
		g, err := kmlPolygonGeometry(p)
		if err != nil {
			return nil, err
		}
		c = append(c, g)
	}
	for _, nested := range m.Multi {
		g, err := kmlMultiGeometryValue(nested)
		if err != nil {
			return nil, err
		}
		c = append(c, g)
	}
	return collapse(c), nil
}

// collapse turns homogeneous collections into their Multi* equivalent.
func collapse(c orb.Collection) orb.Geometry {
	if len(c) == 0 {
		return c
	}
	switch c[0].(type) {
	case orb.Point:
		mp := orb.MultiPoint{}
		for _, g := range c {
			p, ok := g.(orb.Point)
			if !ok {
				return c
			}
			mp = append(mp, p)
		}
		return mp
	case orb.LineString:
		mls := orb.MultiLineString{}
		for _, g := range c {
			ls, ok := g.(orb.LineString)
			if !ok {
				return c
			}
			mls = append(mls, ls)
		}
		return mls
	case orb.Polygon:
		mp := orb.MultiPolygon{}
		for _, g := range c {
			p, ok := g.(orb.Polygon)
			if !ok {
				return c
			}
			mp = append(mp, p)
		}
		return mp
	}
	return c
}

// parseKMLCoordinates reads "lon,lat[,alt]" tuples separated by whitespace.
func parseKMLCoordinates(s string) ([]orb.Point, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty coordinates", ErrInvalidGeometry)
	}
	pts := make([]orb.Point, 0, len(fields))
	for _, tuple := range fields {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: bad coordinate %q", ErrInvalidGeometry, tuple)
		}
		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad longitude %q", ErrInvalidGeometry, parts[0])
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad latitude %q", ErrInvalidGeometry, parts[1])
		}
		pts = append(pts, orb.Point{lon, lat})
	}
	return pts, nil
}
