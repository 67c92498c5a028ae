package vector

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb"
)

type gpxDocument struct {
	Waypoints []gpxPoint `xml:"wpt"`
	Routes    []struct {
		Name   string     `xml:"name"`
		Desc   string     `xml:"desc"`
		Points []gpxPoint `xml:"rtept"`
	} `xml:"rte"`
	Tracks []struct {
		Name     string `xml:"name"`
		Desc     string `xml:"desc"`
		Segments []struct {
			Points []gpxPoint `xml:"trkpt"`
		} `xml:"trkseg"`
	} `xml:"trk"`
}

type gpxPoint struct {
	Lat  float64 `xml:"lat,attr"`
	Lon  float64 `xml:"lon,attr"`
	Name string  `xml:"name"`
	Desc string  `xml:"desc"`
	Time string  `xml:"time"`
}

func readGPXFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open gpx: %w", err)
	}
	defer f.Close()
	return ParseGPX(f)
}

// ParseGPX maps waypoints to points, routes to lines and tracks to lines or
// multilines (one line per segment).
func ParseGPX(r io.Reader) ([]Record, error) {
	var doc gpxDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid gpx: %w", err)
	}

	var records []Record
	for _, w := range doc.Waypoints {
		records = append(records, Record{
			Geometry:   orb.Point{w.Lon, w.Lat},
			Properties: gpxProps("waypoint", w.Name, w.Desc, w.Time),
		})
	}
	for _, rte := range doc.Routes {
		records = append(records, Record{
			Geometry:   gpxLine(rte.Points),
			Properties: gpxProps("route", rte.Name, rte.Desc, ""),
		})
	}
	for _, trk := range doc.Tracks {
		mls := make(orb.MultiLineString, 0, len(trk.Segments))
		for _, seg := range trk.Segments {
			mls = append(mls, gpxLine(seg.Points))
		}
		rec := Record{Properties: gpxProps("track", trk.Name, trk.Desc, "")}
		switch len(mls) {
		case 0:
			rec.Err = ErrNullGeometry
		case 1:
			rec.Geometry = mls[0]
		default:
			rec.Geometry = mls
		}
		records = append(records, rec)
	}
	return records, nil
}

func gpxLine(points []gpxPoint) orb.LineString {
	ls := make(orb.LineString, len(points))
	for i, p := range points {
		ls[i] = orb.Point{p.Lon, p.Lat}
	}
	return ls
}

func gpxProps(kind, name, desc, ts string) map[string]interface{} {
	props := map[string]interface{}{"gpx_type": kind}
	if name != "" {
		props["name"] = name
	}
	if desc != "" {
		props["description"] = desc
	}
	if ts != "" {
		props["time"] = ts
	}
	return props
}
