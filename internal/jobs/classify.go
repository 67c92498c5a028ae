package jobs

import (
	"crypto/rand"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"geo-ingest-backend/internal/naming"
)

// TokenLength is the length of the random part of a storage key.
const TokenLength = 25

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

var categories = map[string]string{
	".geojson": naming.CategoryVector,
	".json":    naming.CategoryVector,
	".shp":     naming.CategoryVector,
	".zip":     naming.CategoryVector,
	".kml":     naming.CategoryVector,
	".gpx":     naming.CategoryVector,

	".tif":     naming.CategoryRaster,
	".tiff":    naming.CategoryRaster,
	".geotiff": naming.CategoryRaster,

	".dem": naming.CategoryTerrain,
	".dtm": naming.CategoryTerrain,
	".dsm": naming.CategoryTerrain,
	".asc": naming.CategoryTerrain,
	".xyz": naming.CategoryTerrain,

	".jpg":  naming.CategoryImagery,
	".jpeg": naming.CategoryImagery,
	".png":  naming.CategoryImagery,
	".raw":  naming.CategoryImagery,
	".cr2":  naming.CategoryImagery,
	".nef":  naming.CategoryImagery,
}

// unsupported are recognised formats that no processor can read.
var unsupported = map[string]string{
	".jp2": "JPEG 2000",
	".j2k": "JPEG 2000",
}

var ErrUnsupportedFormat = errors.New("unsupported file format")

// CheckSupported rejects filename when its extension names a format that
// would only fail later in processing.
func CheckSupported(filename string) error {
	if name, ok := unsupported[strings.ToLower(filepath.Ext(filename))]; ok {
		return fmt.Errorf("%w: %s (%s), convert it to GeoTIFF", ErrUnsupportedFormat, filename, name)
	}
	return nil
}

// hinted are extensions a descriptor may move into another category. TIFF
// is used for rasters, elevation models and photos alike.
var hinted = map[string]map[string]bool{
	naming.CategoryTerrain: {".tif": true, ".tiff": true},
	naming.CategoryImagery: {".tif": true, ".tiff": true},
}

// Classify picks the content category of filename. hint is honoured when it
// names the extension's own category or an allowed alternative; otherwise
// the lookup table decides and unknown extensions land in other_files.
func Classify(filename, hint string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	primary, ok := categories[ext]
	if hint != "" && (hint == primary || hinted[hint][ext]) {
		return hint
	}
	if !ok {
		return naming.CategoryOther
	}
	return primary
}

// NewStorageKey returns a random token plus the lowercased extension of
// filename.
func NewStorageKey(filename string) (string, error) {
	buf := make([]byte, TokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate storage key: %w", err)
	}
	for i, b := range buf {
		buf[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(buf) + strings.ToLower(filepath.Ext(filename)), nil
}

// StoragePath scopes a storage key under its company, project and category.
func StoragePath(companyID, projectID, category, key string) string {
	return fmt.Sprintf("%s/%s/%s/%s", companyID, projectID, category, key)
}
