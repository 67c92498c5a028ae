package vector

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/mholt/archiver/v3"
	"github.com/paulmach/orb"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// readShapefileZip extracts a zipped shapefile bundle next to the archive
// and reads the first .shp it contains.
func readShapefileZip(path string) ([]Record, error) {
	dest, err := os.MkdirTemp(filepath.Dir(path), "shp-")
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction dir: %w", err)
	}
	defer os.RemoveAll(dest)

	z := archiver.NewZip()
	z.OverwriteExisting = true
	if err := z.Unarchive(path, dest); err != nil {
		return nil, fmt.Errorf("failed to extract shapefile archive: %w", err)
	}

	shpPath, err := findShapefile(dest)
	if err != nil {
		return nil, err
	}
	return readShapefile(shpPath)
}

func findShapefile(root string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		// skip macOS resource forks
		if d.IsDir() && d.Name() == "__MACOSX" {
			return filepath.SkipDir
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".shp") && found == "" {
			found = p
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to scan archive: %w", err)
	}
	if found == "" {
		return "", fmt.Errorf("%w: archive contains no .shp file", ErrUnsupportedFormat)
	}
	return found, nil
}

func readShapefile(path string) ([]Record, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer reader.Close()

	base := strings.TrimSuffix(path, filepath.Ext(path))
	var fields []shp.Field
	if _, err := os.Stat(base + ".dbf"); err == nil {
		fields = reader.Fields()
	} else {
		log.Printf("Warning: %s has no .dbf, attributes will be empty", filepath.Base(path))
	}
	decoder := attributeDecoder(base)

	var records []Record
	for reader.Next() {
		row, shape := reader.Shape()

		props := make(map[string]interface{}, len(fields))
		for k, f := range fields {
			raw := reader.ReadAttribute(row, k)
			if decoder != nil {
				if s, err := decoder.String(raw); err == nil {
					raw = s
				}
			}
			props[f.String()] = attributeValue(f, raw)
		}

		g, err := shapeGeometry(shape)
		records = append(records, Record{Geometry: g, Properties: props, Err: err})
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("failed to read shapefile: %w", err)
	}
	return records, nil
}

// attributeDecoder honours the code page declared in a .cpg sidecar.
func attributeDecoder(base string) *encoding.Decoder {
	cpg, err := os.ReadFile(base + ".cpg")
	if err != nil {
		return nil
	}
	name := strings.TrimSpace(string(cpg))
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		log.Printf("Warning: unknown shapefile code page %q, reading attributes as-is", name)
		return nil
	}
	return enc.NewDecoder()
}

func attributeValue(f shp.Field, raw string) interface{} {
	raw = strings.TrimSpace(strings.Trim(raw, "\x00"))
	if raw == "" {
		return nil
	}
	switch f.Fieldtype {
	case 'N':
		if f.Precision == 0 {
			if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
				return n
			}
		}
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	case 'F':
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	case 'L':
		switch strings.ToUpper(raw) {
		case "T", "Y":
			return true
		case "F", "N":
			return false
		}
	}
	return raw
}

func shapeGeometry(shape shp.Shape) (orb.Geometry, error) {
	switch s := shape.(type) {
	case *shp.Null:
		return nil, ErrNullGeometry
	case *shp.Point:
		return orb.Point{s.X, s.Y}, nil
	case *shp.PointZ:
		return orb.Point{s.X, s.Y}, nil
	case *shp.PointM:
		return orb.Point{s.X, s.Y}, nil
	case *shp.MultiPoint:
		return multiPoint(s.Points), nil
	case *shp.MultiPointZ:
		return multiPoint(s.Points), nil
	case *shp.MultiPointM:
		return multiPoint(s.Points), nil
	case *shp.PolyLine:
		return lines(s.Parts, s.Points), nil
	case *shp.PolyLineZ:
		return lines(s.Parts, s.Points), nil
	case *shp.PolyLineM:
		return lines(s.Parts, s.Points), nil
	case *shp.Polygon:
		return polygons(s.Parts, s.Points), nil
	case *shp.PolygonZ:
		return polygons(s.Parts, s.Points), nil
	case *shp.PolygonM:
		return polygons(s.Parts, s.Points), nil
	}
	return nil, fmt.Errorf("%w: shape %T", ErrInvalidGeometry, shape)
}

func multiPoint(points []shp.Point) orb.MultiPoint {
	mp := make(orb.MultiPoint, len(points))
	for i, p := range points {
		mp[i] = orb.Point{p.X, p.Y}
	}
	return mp
}

func splitParts(parts []int32, points []shp.Point) [][]orb.Point {
	out := make([][]orb.Point, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || int(end) > len(points) {
			continue
		}
		part := make([]orb.Point, 0, end-start)
		for _, p := range points[start:end] {
			part = append(part, orb.Point{p.X, p.Y})
		}
		out = append(out, part)
	}
	return out
}

func lines(parts []int32, points []shp.Point) orb.Geometry {
	split := splitParts(parts, points)
	if len(split) == 1 {
		return orb.LineString(split[0])
	}
	mls := make(orb.MultiLineString, len(split))
	for i, p := range split {
		mls[i] = orb.LineString(p)
	}
	return mls
}

// polygons groups shapefile rings: clockwise rings are shells, the
// counter-clockwise rings that follow are their holes.
func polygons(parts []int32, points []shp.Point) orb.Geometry {
	var mp orb.MultiPolygon
	for _, p := range splitParts(parts, points) {
		ring := orb.Ring(p)
		if ring.Orientation() == orb.CCW && len(mp) > 0 {
			mp[len(mp)-1] = append(mp[len(mp)-1], ring)
			continue
		}
		mp = append(mp, orb.Polygon{ring})
	}
	if len(mp) == 1 {
		return mp[0]
	}
	return mp
}
