// Package raster reads gridded uploads (GeoTIFF, ESRI ASCII grid, XYZ point
// grids) far enough to catalog them: georeferencing, dimensions and per-band
// summary statistics. Pixel data is streamed; nothing holds a whole band in
// memory except the XYZ reader, which has to build the grid itself.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"geo-ingest-backend/internal/crs"
	"github.com/paulmach/orb"
)

type Format string

const (
	FormatGeoTIFF   Format = "geotiff"
	FormatASCIIGrid Format = "arcgrid"
	FormatXYZ       Format = "xyz"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported raster format")
	ErrNotGeoreferenced  = errors.New("raster has no georeferencing")
)

// Band describes one raster band. Statistics are nil when the band could not
// be read or holds no valid samples.
type Band struct {
	Index       int      `json:"index"`
	DataType    string   `json:"dtype"`
	NoData      *float64 `json:"nodata,omitempty"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Mean        *float64 `json:"mean,omitempty"`
	Description string   `json:"description"`
}

// Info is the catalog view of a raster file.
type Info struct {
	Format     Format
	CRS        crs.CRS
	Width      int
	Height     int
	PixelSizeX float64
	PixelSizeY float64
	// Bounds is in the file's own CRS; GeoBounds is WGS84.
	Bounds    orb.Bound
	GeoBounds orb.Bound
	Bands     []Band
}

func (i *Info) BandCount() int { return len(i.Bands) }

// Detect sniffs the leading bytes of path. Extensions are unreliable for
// terrain (.dem/.dtm/.dsm are usually GeoTIFF, sometimes ASCII grids).
func Detect(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open raster: %w", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read raster header: %w", err)
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, []byte("II*\x00")), bytes.HasPrefix(head, []byte("MM\x00*")):
		return FormatGeoTIFF, nil
	case bytes.HasPrefix(head, []byte("II+\x00")), bytes.HasPrefix(head, []byte("MM\x00+")):
		return "", fmt.Errorf("%w: BigTIFF", ErrUnsupportedFormat)
	case bytes.HasPrefix(head, []byte("\x00\x00\x00\x0cjP")), bytes.HasPrefix(head, []byte("\xff\x4f\xff\x51")):
		return "", fmt.Errorf("%w: JPEG 2000", ErrUnsupportedFormat)
	}

	text := strings.ToLower(string(head))
	if strings.HasPrefix(strings.TrimSpace(text), "ncols") {
		return FormatASCIIGrid, nil
	}
	if strings.EqualFold(filepath.Ext(path), ".xyz") || looksLikeXYZ(text) {
		return FormatXYZ, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
}

// Open reads the catalog metadata of the raster at path and fills in
// WGS84 bounds through the normalizer.
func Open(path string, normalizer *crs.Normalizer) (*Info, error) {
	format, err := Detect(path)
	if err != nil {
		return nil, err
	}

	var info *Info
	switch format {
	case FormatGeoTIFF:
		info, err = readGeoTIFF(path)
	case FormatASCIIGrid:
		info, err = readASCIIGrid(path)
	case FormatXYZ:
		var g *Grid
		g, err = ReadXYZ(path)
		if err == nil {
			info = g.Info()
			info.Format = FormatXYZ
		}
	}
	if err != nil {
		return nil, err
	}

	if info.CRS == 0 {
		info.CRS = crs.DetectCRS([]orb.Point{info.Bounds.Min, info.Bounds.Max})
	}
	info.GeoBounds = geoBounds(info.Bounds, info.CRS, normalizer)
	for i := range info.Bands {
		if info.Bands[i].Description == "" {
			info.Bands[i].Description = fmt.Sprintf("Band %d", info.Bands[i].Index)
		}
	}
	return info, nil
}

func geoBounds(b orb.Bound, source crs.CRS, normalizer *crs.Normalizer) orb.Bound {
	if source == crs.WGS84 {
		return b
	}
	if normalizer == nil {
		normalizer = crs.NewNormalizer(nil)
	}
	g := normalizer.Reproject(b.ToPolygon(), source)
	if g == nil {
		return b
	}
	out := g.Bound()
	if out.Min[1] < -90 || out.Max[1] > 90 {
		log.Printf("Warning: could not transform raster bounds from %s to %s", source, crs.WGS84)
		return b
	}
	return out
}

// elevationLabels are band descriptions that mark imagery, not elevation.
var elevationLabels = map[string]bool{"red": true, "green": true, "blue": true, "rgb": true, "nir": true}

// ElevationWarning returns a reason when the raster does not look like an
// elevation model: more than one band, a non-numeric type or colour band
// labels. An empty string means it looks plausible.
func ElevationWarning(info *Info) string {
	if len(info.Bands) != 1 {
		return fmt.Sprintf("raster has %d bands, elevation models usually have one", len(info.Bands))
	}
	if !numericType(info.Bands[0].DataType) {
		return fmt.Sprintf("band type %q is not typical for elevation data", info.Bands[0].DataType)
	}
	for _, b := range info.Bands {
		if elevationLabels[strings.ToLower(strings.TrimSpace(b.Description))] {
			return fmt.Sprintf("band %d is labelled %q, raster looks like imagery", b.Index, b.Description)
		}
	}
	return ""
}

func numericType(dtype string) bool {
	switch dtype {
	case "uint8", "int8", "uint16", "int16", "uint32", "int32", "uint64", "int64", "float32", "float64":
		return true
	}
	return false
}
