package processors_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"geo-ingest-backend/internal/geoserver"
	"geo-ingest-backend/internal/models"
	"geo-ingest-backend/internal/naming"
	"geo-ingest-backend/internal/processors"
	"geo-ingest-backend/internal/raster"
	"geo-ingest-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func featureCollection(features ...string) []byte {
	return []byte(`{"type":"FeatureCollection","features":[` + strings.Join(features, ",") + `]}`)
}

func pointFeature(i int) string {
	return fmt.Sprintf(`{"type":"Feature","properties":{"name":"p%d","tags":{"a":1}},"geometry":{"type":"Point","coordinates":[85.%d,27.%d,1300]}}`, i, i, i)
}

func TestVectorProcessor_SkipsInvalidFeatures(t *testing.T) {
	h := newHarness(t)
	var features []string
	for i := 0; i < 7; i++ {
		features = append(features, pointFeature(i))
	}
	features = append(features,
		`{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[1,1]]}}`,
		`{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1]]]}}`,
		`{"type":"Feature","properties":{"name":"nothing"},"geometry":null}`,
	)
	src := h.put("acme/p1/vector_layers/abc.geojson", featureCollection(features...))
	src.Title = "Roads"

	layer, err := processors.NewVectorProcessor(h.deps).Process(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, 7, layer.FeatureCount)
	assert.Equal(t, 3, layer.SkippedCount)
	assert.Equal(t, "Roads", layer.Name)
	assert.Equal(t, "POINT", layer.GeometryType)
	assert.Equal(t, "EPSG:4326", layer.CRS)
	require.NotNil(t, layer.BBoxMinX)
	assert.InDelta(t, 85.0, *layer.BBoxMinX, 1e-9)
	assert.InDelta(t, 85.6, *layer.BBoxMaxX, 1e-9)

	// one name for the table, the map-server layer and the catalog row
	ident := naming.StorageIdentifier(naming.KindVector, layer.ID)
	assert.Equal(t, ident, layer.Identifier())
	require.Len(t, h.tables.layers[ident], 7)
	require.Len(t, h.publisher.targets, 1)
	assert.Equal(t, ident, h.publisher.targets[0].Layer)
	assert.Equal(t, ident, h.publisher.targets[0].Table)
	assert.Equal(t, "p1_vector_layers", h.publisher.targets[0].Group)

	stored, err := h.deps.Repo.GetLayer(context.Background(), layer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PublishPublished, stored.PublishStatus)
	assert.True(t, stored.IsPublished)

	rows, err := h.deps.Repo.ListFeatures(context.Background(), layer.ID)
	require.NoError(t, err)
	require.Len(t, rows, 7)
	var attrs map[string]interface{}
	require.NoError(t, json.Unmarshal(rows[0].Attributes, &attrs))
	assert.Equal(t, `{"a":1}`, attrs["tags"])
	assert.NotContains(t, string(rows[0].Geometry), "1300")

	h.requireScratchEmpty(t)
}

func TestVectorProcessor_SkipsSelfIntersectingPolygons(t *testing.T) {
	h := newHarness(t)
	square := `{"type":"Feature","properties":{"name":"block"},"geometry":{"type":"Polygon","coordinates":[[[85,27],[85.1,27],[85.1,27.1],[85,27.1],[85,27]]]}}`
	bowtie := `{"type":"Feature","properties":{"name":"bowtie"},"geometry":{"type":"Polygon","coordinates":[[[85,27],[85.1,27.1],[85.1,27],[85,27.1],[85,27]]]}}`
	src := h.put("acme/p1/vector_layers/parcels.geojson", featureCollection(square, bowtie))

	layer, err := processors.NewVectorProcessor(h.deps).Process(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, 1, layer.FeatureCount)
	assert.Equal(t, 1, layer.SkippedCount)
	assert.Equal(t, "POLYGON", layer.GeometryType)
	require.Len(t, h.tables.layers[layer.Identifier()], 1)

	h.requireScratchEmpty(t)
}

func TestVectorProcessor_AllInvalidFails(t *testing.T) {
	h := newHarness(t)
	src := h.put("acme/p1/vector_layers/bad.geojson", featureCollection(
		`{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[1,1]]}}`,
		`{"type":"Feature","properties":{},"geometry":null}`,
	))

	_, err := processors.NewVectorProcessor(h.deps).Process(context.Background(), src)
	assert.ErrorIs(t, err, processors.ErrNoValidFeatures)

	layers, err := h.deps.Repo.ListLayers(context.Background(), repository.LayerFilter{IncludeInactive: true})
	require.NoError(t, err)
	assert.Empty(t, layers)
	assert.Empty(t, h.publisher.targets)
	h.requireScratchEmpty(t)
}

func TestVectorProcessor_EmptyCollectionFails(t *testing.T) {
	h := newHarness(t)
	src := h.put("acme/p1/vector_layers/empty.geojson", featureCollection())

	_, err := processors.NewVectorProcessor(h.deps).Process(context.Background(), src)
	assert.ErrorIs(t, err, processors.ErrEmptyFeatureSet)
	h.requireScratchEmpty(t)
}

func TestVectorProcessor_PublishFailureLeavesLayerUnpublished(t *testing.T) {
	h := newHarness(t)
	h.publisher.err = errors.New("failed after 3 attempts: connection refused")
	src := h.put("acme/p1/vector_layers/abc.geojson", featureCollection(pointFeature(1)))

	layer, err := processors.NewVectorProcessor(h.deps).Process(context.Background(), src)
	require.NoError(t, err)

	stored, err := h.deps.Repo.GetLayer(context.Background(), layer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PublishUnpublished, stored.PublishStatus)
	assert.False(t, stored.IsPublished)
	assert.Contains(t, stored.PublishError, "connection refused")
	assert.Equal(t, 1, stored.FeatureCount)
}

func TestVectorProcessor_TableFailureRemovesLayer(t *testing.T) {
	h := newHarness(t)
	h.tables.createErr = errors.New("disk full")
	src := h.put("acme/p1/vector_layers/abc.geojson", featureCollection(pointFeature(1)))

	_, err := processors.NewVectorProcessor(h.deps).Process(context.Background(), src)
	assert.ErrorContains(t, err, "disk full")

	layers, err := h.deps.Repo.ListLayers(context.Background(), repository.LayerFilter{IncludeInactive: true})
	require.NoError(t, err)
	assert.Empty(t, layers)
	assert.Zero(t, h.deps.Registry.Len())
	h.requireScratchEmpty(t)
}

func TestVectorProcessor_DownloadFailureStillCleansUp(t *testing.T) {
	h := newHarness(t)
	src := processors.Source{Path: "acme/p1/vector_layers/missing.geojson", Filename: "missing.geojson"}

	_, err := processors.NewVectorProcessor(h.deps).Process(context.Background(), src)
	assert.ErrorContains(t, err, "not found")
	h.requireScratchEmpty(t)
}

const demGrid = `ncols 3
nrows 2
xllcorner 85.0
yllcorner 27.0
cellsize 0.5
NODATA_value -9999
1200 1250 -9999
1300 1350 1400
`

func TestTerrainProcessor_ASCIIGrid(t *testing.T) {
	h := newHarness(t)
	src := h.put("acme/p1/terrain_models/abc.asc", []byte(demGrid))
	src.TerrainType = "dtm"

	layer, err := processors.NewTerrainProcessor(h.deps).Process(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, models.KindTerrain, layer.Kind)
	assert.Equal(t, "dtm", layer.TerrainType)
	assert.Equal(t, 3, layer.Width)
	assert.Equal(t, 2, layer.Height)
	require.NotNil(t, layer.MinElevation)
	assert.Equal(t, 1200.0, *layer.MinElevation)
	assert.Equal(t, 1400.0, *layer.MaxElevation)

	var bands []raster.Band
	require.NoError(t, json.Unmarshal(layer.BandDescriptions, &bands))
	require.Len(t, bands, 1)
	assert.Equal(t, "Band 1", bands[0].Description)

	require.Len(t, h.publisher.targets, 1)
	target := h.publisher.targets[0]
	assert.True(t, target.Coverage)
	assert.Equal(t, geoserver.CoverageArcGrid, target.Format)
	assert.True(t, h.publisher.fileSeen[0])
	assert.Equal(t, layer.Identifier(), target.Layer)
	assert.Equal(t, layer.Identifier(), target.Store)
	assert.Equal(t, "p1_terrain_models", target.Group)
	h.requireScratchEmpty(t)
}

func TestTerrainProcessor_XYZConvertedForPublishing(t *testing.T) {
	h := newHarness(t)
	src := h.put("acme/p1/terrain_models/abc.xyz", []byte("85.0 27.0 10\n85.5 27.0 11\n85.0 27.5 12\n85.5 27.5 13\n"))

	layer, err := processors.NewTerrainProcessor(h.deps).Process(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, string(raster.FormatXYZ), layer.SourceFormat)

	require.Len(t, h.publisher.targets, 1)
	assert.Equal(t, geoserver.CoverageArcGrid, h.publisher.targets[0].Format)
	assert.True(t, strings.HasSuffix(h.publisher.targets[0].File, ".asc"))
	assert.True(t, h.publisher.fileSeen[0])
	h.requireScratchEmpty(t)
}

func TestRasterProcessor_RejectsUnsupported(t *testing.T) {
	h := newHarness(t)
	src := h.put("acme/p1/raster_layers/abc.jp2", []byte("\x00\x00\x00\x0cjP  \r\n\x87\n"))

	_, err := processors.NewRasterProcessor(h.deps).Process(context.Background(), src)
	assert.ErrorIs(t, err, raster.ErrUnsupportedFormat)
	assert.Empty(t, h.publisher.targets)
	h.requireScratchEmpty(t)
}

func TestImageryProcessor_ReadsGPSFromEXIF(t *testing.T) {
	h := newHarness(t)
	// 12°58'12" N, 77°35'24" E
	src := h.put("acme/p1/street_imagery/abc.jpg", geotaggedJPEG("N", dms(12, 58, 12), "E", dms(77, 35, 24)))

	rec, err := processors.NewImageryProcessor(h.deps).Process(context.Background(), src)
	require.NoError(t, err)
	assert.InDelta(t, 12.97, rec.Latitude, 1e-6)
	assert.InDelta(t, 77.59, rec.Longitude, 1e-6)
	assert.Equal(t, "Acme", rec.CameraMake)
	assert.Equal(t, "StreetCam 3", rec.CameraModel)
	assert.Equal(t, "completed", rec.ProcessingStatus)

	table := naming.ImageryTable("p1")
	require.Contains(t, h.tables.imagery, table)
	assert.Contains(t, h.tables.imagery[table], rec.ID)

	require.Len(t, h.publisher.targets, 1)
	assert.Equal(t, naming.ImageryResources("acme", "p1"), h.publisher.targets[0].Resources)
	h.requireScratchEmpty(t)
}

func TestImageryProcessor_SouthWestNegates(t *testing.T) {
	h := newHarness(t)
	src := h.put("acme/p1/street_imagery/sw.jpg", geotaggedJPEG("S", dms(33, 52, 0), "W", dms(70, 30, 0)))

	rec, err := processors.NewImageryProcessor(h.deps).Process(context.Background(), src)
	require.NoError(t, err)
	assert.InDelta(t, -(33 + 52.0/60), rec.Latitude, 1e-9)
	assert.InDelta(t, -70.5, rec.Longitude, 1e-9)
}

func TestImageryProcessor_RejectsNearZeroCoordinates(t *testing.T) {
	h := newHarness(t)
	src := h.put("acme/p1/street_imagery/zero.jpg", []byte("not a jpeg"))
	lat, lon := 0.00001, 0.00001
	src.Latitude, src.Longitude = &lat, &lon

	_, err := processors.NewImageryProcessor(h.deps).Process(context.Background(), src)
	assert.ErrorIs(t, err, processors.ErrInvalidGPS)
	assert.Contains(t, err.Error(), "street images require valid GPS coordinates")
	assert.Empty(t, h.publisher.targets)
	h.requireScratchEmpty(t)
}

func TestImageryProcessor_DescriptorOverridesAndMissingGPS(t *testing.T) {
	h := newHarness(t)
	src := h.put("acme/p1/street_imagery/plain.png", []byte("\x89PNG\r\n\x1a\n"))

	_, err := processors.NewImageryProcessor(h.deps).Process(context.Background(), src)
	assert.ErrorIs(t, err, processors.ErrInvalidGPS)

	lat, lon := 12.97, 77.59
	src.Latitude, src.Longitude = &lat, &lon
	rec, err := processors.NewImageryProcessor(h.deps).Process(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 12.97, rec.Latitude)
}

func TestImageryProcessor_RerunUpsertsSameRecord(t *testing.T) {
	h := newHarness(t)
	src := h.put("acme/p1/street_imagery/abc.jpg", geotaggedJPEG("N", dms(12, 58, 12), "E", dms(77, 35, 24)))
	p := processors.NewImageryProcessor(h.deps)

	first, err := p.Process(context.Background(), src)
	require.NoError(t, err)
	second, err := p.Process(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	records, err := h.deps.Repo.ListImagery(context.Background(), "p1")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Len(t, h.tables.imagery[naming.ImageryTable("p1")], 1)
}

func TestValidCoordinates(t *testing.T) {
	assert.True(t, processors.ValidCoordinates(12.97, 77.59))
	assert.True(t, processors.ValidCoordinates(0, 77.59))
	assert.False(t, processors.ValidCoordinates(0.00001, 0.00001))
	assert.False(t, processors.ValidCoordinates(95, 10))
}

func TestSourceLayerName(t *testing.T) {
	assert.Equal(t, "roads", processors.Source{Filename: "roads.geojson"}.LayerName())
	assert.Equal(t, "Main roads", processors.Source{Filename: "roads.geojson", Title: " Main roads "}.LayerName())
}
