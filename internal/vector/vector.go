// Package vector decodes uploaded vector files into 2D orb geometries with
// flat attribute maps. A feature whose geometry cannot be decoded is kept as
// a Record carrying the error so callers can count it as skipped.
package vector

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
)

type Format string

const (
	FormatGeoJSON      Format = "geojson"
	FormatShapefile    Format = "shapefile"
	FormatShapefileZip Format = "shapefile_zip"
	FormatKML          Format = "kml"
	FormatGPX          Format = "gpx"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported vector format")
	ErrNullGeometry      = errors.New("feature has no geometry")
)

// Record is one decoded feature.
type Record struct {
	Geometry   orb.Geometry
	Properties map[string]interface{}
	Err        error
}

type Dataset struct {
	Format  Format
	Records []Record
}

// Geometries returns one entry per record; failed records yield nil.
func (d *Dataset) Geometries() []orb.Geometry {
	out := make([]orb.Geometry, len(d.Records))
	for i, r := range d.Records {
		if r.Err == nil {
			out[i] = r.Geometry
		}
	}
	return out
}

func FormatFor(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".geojson", ".json":
		return FormatGeoJSON, nil
	case ".zip":
		return FormatShapefileZip, nil
	case ".shp":
		return FormatShapefile, nil
	case ".kml":
		return FormatKML, nil
	case ".gpx":
		return FormatGPX, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
}

// ReadFile decodes the file at path.
func ReadFile(path string, format Format) (*Dataset, error) {
	var (
		records []Record
		err     error
	)
	switch format {
	case FormatGeoJSON:
		records, err = readGeoJSONFile(path)
	case FormatShapefileZip:
		records, err = readShapefileZip(path)
	case FormatShapefile:
		records, err = readShapefile(path)
	case FormatKML:
		records, err = readKMLFile(path)
	case FormatGPX:
		records, err = readGPXFile(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	return &Dataset{Format: format, Records: records}, nil
}

// NormalizeAttributes keeps scalar values, stringifies nested values and
// leaves nil as nil.
func NormalizeAttributes(props map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(props))
	for k, v := range props {
		switch val := v.(type) {
		case nil, string, bool, float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
			out[k] = val
		default:
			encoded, err := json.Marshal(val)
			if err != nil {
				out[k] = fmt.Sprintf("%v", val)
				continue
			}
			out[k] = string(encoded)
		}
	}
	return out
}
