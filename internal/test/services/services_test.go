package services_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"geo-ingest-backend/internal/crs"
	"geo-ingest-backend/internal/geoserver"
	"geo-ingest-backend/internal/lifecycle"
	"geo-ingest-backend/internal/models"
	"geo-ingest-backend/internal/naming"
	"geo-ingest-backend/internal/processors"
	"geo-ingest-backend/internal/repository"
	"geo-ingest-backend/internal/services"
	"geo-ingest-backend/internal/spatial"
	"geo-ingest-backend/internal/test/testutil"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBlob struct {
	objects map[string][]byte
}

func (b *memBlob) Download(objectPath, dir string) (string, error) {
	data, ok := b.objects[objectPath]
	if !ok {
		return "", fmt.Errorf("failed to download file: %s not found", objectPath)
	}
	dst := filepath.Join(dir, "src"+filepath.Ext(objectPath))
	return dst, os.WriteFile(dst, data, 0o644)
}

type fakeTables struct {
	mu    sync.Mutex
	rows  map[string][]spatial.Row
	types map[string]string
	drops []string
}

func (f *fakeTables) CreateLayerTable(ctx context.Context, table, geometryType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[table] = []spatial.Row{}
	f.types[table] = geometryType
	return nil
}

func (f *fakeTables) CreateAndPopulate(ctx context.Context, table string, rows []spatial.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[table] = rows
	return nil
}

func (f *fakeTables) DropTable(ctx context.Context, table string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, table)
	f.drops = append(f.drops, table)
	return nil
}

func (f *fakeTables) EnsureImageryTable(ctx context.Context, projectID string) (string, error) {
	return naming.ImageryTable(projectID), nil
}

func (f *fakeTables) UpsertImagery(ctx context.Context, table string, row spatial.ImageryRow) error {
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	targets  []geoserver.Target
	fileSeen []bool
	deleted  []geoserver.Target
	err      error
}

func (p *fakePublisher) Publish(ctx context.Context, t geoserver.Target) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.targets = append(p.targets, t)
	_, statErr := os.Stat(t.File)
	p.fileSeen = append(p.fileSeen, t.File != "" && statErr == nil)
	if p.err != nil {
		return "", p.err
	}
	return "http://maps.test/" + t.Workspace + "/" + t.Layer, nil
}

func (p *fakePublisher) Delete(ctx context.Context, t geoserver.Target) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, t)
	return nil
}

type harness struct {
	deps      *processors.Deps
	blob      *memBlob
	tables    *fakeTables
	publisher *fakePublisher
	svc       *services.LayerService
}

func newHarness(t *testing.T) *harness {
	h := &harness{
		blob:      &memBlob{objects: map[string][]byte{}},
		tables:    &fakeTables{rows: map[string][]spatial.Row{}, types: map[string]string{}},
		publisher: &fakePublisher{},
	}
	h.deps = &processors.Deps{
		Blob:       h.blob,
		Repo:       testutil.NewRepository(t),
		Tables:     h.tables,
		Publisher:  h.publisher,
		Registry:   naming.NewRegistry(),
		Normalizer: crs.NewNormalizer(nil),
		ScratchDir: t.TempDir(),
	}
	lm := lifecycle.NewManager(h.deps.Repo, h.tables, h.publisher, h.deps.Registry, 0)
	h.svc = services.NewLayerService(h.deps, lm)
	return h
}

// vectorLayer stores a layer with one feature per attribute map, placed at
// increasing longitudes starting from x.
func (h *harness) vectorLayer(t *testing.T, name, project string, geom func(float64) orb.Geometry, x float64, attrs ...map[string]interface{}) *models.Layer {
	t.Helper()
	features := make([]processors.Feature, len(attrs))
	for i, a := range attrs {
		features[i] = processors.Feature{Geometry: geom(x + float64(i)), Attributes: a}
	}
	layer := &models.Layer{Name: name, CompanyID: "acme", ProjectID: project, CRS: "EPSG:4326"}
	require.NoError(t, h.deps.CreateVectorLayer(context.Background(), layer, features))
	return layer
}

func point(x float64) orb.Geometry { return orb.Point{x, 27} }

func line(x float64) orb.Geometry { return orb.LineString{{x, 27}, {x + 0.5, 27.5}} }

func attrs(kv ...interface{}) map[string]interface{} {
	m := map[string]interface{}{}
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i].(string)] = kv[i+1]
	}
	return m
}

func TestMergeLayers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.vectorLayer(t, "Wells", "p1", point, 85, attrs("id", 1), attrs("id", 2))
	b := h.vectorLayer(t, "Springs", "p1", point, 90, attrs("id", 3))

	merged, err := h.svc.MergeLayers(ctx, []uuid.UUID{a.ID, b.ID}, "Water points", "user-1")
	require.NoError(t, err)

	assert.Equal(t, "Water points", merged.Name)
	assert.Equal(t, 3, merged.FeatureCount)
	assert.Equal(t, "POINT", merged.GeometryType)
	assert.Equal(t, "Merged layer from Wells and Springs", merged.Description)
	assert.InDelta(t, 85.0, *merged.BBoxMinX, 1e-9)
	assert.InDelta(t, 90.0, *merged.BBoxMaxX, 1e-9)
	assert.True(t, merged.IsPublished)
	assert.Len(t, h.tables.rows[merged.Identifier()], 3)

	// sources are untouched
	n, err := h.deps.Repo.CountFeatures(ctx, a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestMergeLayers_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pts := h.vectorLayer(t, "Wells", "p1", point, 85, attrs("id", 1))
	lines := h.vectorLayer(t, "Roads", "p1", line, 85, attrs("id", 1))
	other := h.vectorLayer(t, "Wells", "p2", point, 85, attrs("id", 1))
	gone := h.vectorLayer(t, "Old", "p1", point, 85, attrs("id", 1))
	_, err := h.svc.DeleteLayer(ctx, gone.ID)
	require.NoError(t, err)

	_, err = h.svc.MergeLayers(ctx, []uuid.UUID{pts.ID}, "x", "u")
	assert.ErrorIs(t, err, services.ErrTooFewLayers)

	_, err = h.svc.MergeLayers(ctx, []uuid.UUID{pts.ID, lines.ID}, "x", "u")
	assert.ErrorIs(t, err, services.ErrGeometryMismatch)

	_, err = h.svc.MergeLayers(ctx, []uuid.UUID{pts.ID, other.ID}, "x", "u")
	assert.ErrorIs(t, err, services.ErrProjectMismatch)

	_, err = h.svc.MergeLayers(ctx, []uuid.UUID{pts.ID, gone.ID}, "x", "u")
	assert.ErrorIs(t, err, services.ErrLayerInactive)

	_, err = h.svc.MergeLayers(ctx, []uuid.UUID{pts.ID, uuid.New()}, "x", "u")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	layers, err := h.svc.ListLayers(ctx, repository.LayerFilter{ProjectID: "p1"})
	require.NoError(t, err)
	assert.Len(t, layers, 2)
}

func TestSplitLayerByAttribute_OneLayerPerValue(t *testing.T) {
	h := newHarness(t)
	src := h.vectorLayer(t, "Parcels", "p1", point, 85,
		attrs("landuse", "farm"), attrs("landuse", "forest"), attrs("landuse", "farm"), attrs("owner", "x"))

	layers, err := h.svc.SplitLayerByAttribute(context.Background(), src.ID, "landuse", nil, "", "user-1")
	require.NoError(t, err)
	require.Len(t, layers, 2)

	assert.Equal(t, "Parcels_farm", layers[0].Name)
	assert.Equal(t, 2, layers[0].FeatureCount)
	assert.Equal(t, "Parcels_forest", layers[1].Name)
	assert.Equal(t, 1, layers[1].FeatureCount)
	assert.Equal(t, "Split from Parcels where landuse=forest", layers[1].Description)
	assert.NotEqual(t, layers[0].Identifier(), layers[1].Identifier())
}

func TestSplitLayerByAttribute_SingleValue(t *testing.T) {
	h := newHarness(t)
	src := h.vectorLayer(t, "Parcels", "p1", point, 85,
		attrs("zone", float64(1)), attrs("zone", float64(2)), attrs("zone", float64(1)))

	layers, err := h.svc.SplitLayerByAttribute(context.Background(), src.ID, "zone", "1", "Zone one", "user-1")
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Equal(t, "Zone one", layers[0].Name)
	assert.Equal(t, 2, layers[0].FeatureCount)

	_, err = h.svc.SplitLayerByAttribute(context.Background(), src.ID, "zone", float64(9), "", "user-1")
	assert.ErrorIs(t, err, services.ErrNoMatchingFeatures)

	_, err = h.svc.SplitLayerByAttribute(context.Background(), src.ID, "missing", nil, "", "user-1")
	assert.ErrorIs(t, err, services.ErrAttributeMissing)
}

func TestFilterFeatures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	roads := h.vectorLayer(t, "Roads", "p1", point, 85,
		attrs("class", "primary"), attrs("class", "track"), attrs("class", "primary"))
	h.vectorLayer(t, "Wells", "p1", point, 85, attrs("class", "primary"))
	hidden := h.vectorLayer(t, "Hidden", "p1", point, 85, attrs("class", "primary"))
	_, err := h.svc.DeleteLayer(ctx, hidden.ID)
	require.NoError(t, err)

	matches, err := h.svc.FilterFeatures(ctx, services.FeatureFilter{ProjectID: "p1", Attributes: attrs("class", "primary")})
	require.NoError(t, err)
	assert.Len(t, matches, 3)

	matches, err = h.svc.FilterFeatures(ctx, services.FeatureFilter{
		LayerName:  "Roads",
		BBox:       []float64{86.5, 26, 88, 28},
		Attributes: attrs("class", "primary"),
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, roads.ID, matches[0].Layer.ID)

	fc := services.FeatureCollection(matches)
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Equal(t, 1, fc.Count)
	props := fc.Features[0].Properties
	assert.Equal(t, "Roads", props["layer_name"])
	assert.Equal(t, roads.ID.String(), props["layer_id"])
	assert.Equal(t, "p1", props["project_id"])
	assert.Equal(t, "primary", props["class"])
	assert.Contains(t, string(fc.Features[0].Geometry), `"Point"`)

	_, err = h.svc.FilterFeatures(ctx, services.FeatureFilter{BBox: []float64{1, 2, 0, 3}})
	assert.ErrorIs(t, err, services.ErrInvalidBoundingBox)
}

func TestCreateEmptyLayer(t *testing.T) {
	h := newHarness(t)
	layer, err := h.svc.CreateEmptyLayer(context.Background(), models.CreateEmptyLayerRequest{
		CompanyID: "acme", ProjectID: "p1", Name: " Sketch ", GeometryType: "Polygon",
	}, "user-1")
	require.NoError(t, err)

	assert.Equal(t, "Sketch", layer.Name)
	assert.Equal(t, 0, layer.FeatureCount)
	assert.Equal(t, "POLYGON", h.tables.types[layer.Identifier()])
	assert.True(t, layer.IsPublished)
	require.Len(t, h.publisher.targets, 1)
	assert.Equal(t, layer.Identifier(), h.publisher.targets[0].Table)

	_, err = h.svc.CreateEmptyLayer(context.Background(), models.CreateEmptyLayerRequest{
		CompanyID: "acme", ProjectID: "p1", Name: "x", GeometryType: "Circle",
	}, "user-1")
	assert.ErrorIs(t, err, services.ErrInvalidGeometryType)
}

func TestRepublish_VectorLayer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.publisher.err = errors.New("connection refused")
	layer := h.vectorLayer(t, "Roads", "p1", point, 85, attrs("id", 1))
	require.False(t, layer.IsPublished)

	h.publisher.err = nil
	got, err := h.svc.Republish(ctx, layer.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPublished)

	stored, err := h.svc.GetLayer(ctx, layer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PublishPublished, stored.PublishStatus)
	assert.Empty(t, stored.PublishError)
}

func TestRepublishAll_ConvertsCoverageAgain(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.blob.objects["acme/p1/terrain_models/dem.xyz"] = []byte("85.0 27.0 10\n85.5 27.0 11\n85.0 27.5 12\n85.5 27.5 13\n")
	h.publisher.err = errors.New("connection refused")

	layer, err := processors.NewTerrainProcessor(h.deps).Process(ctx, processors.Source{
		Path: "acme/p1/terrain_models/dem.xyz", Filename: "dem.xyz", CompanyID: "acme", ProjectID: "p1",
	})
	require.NoError(t, err)
	require.False(t, layer.IsPublished)

	h.publisher.err = nil
	n, err := h.svc.RepublishAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	last := h.publisher.targets[len(h.publisher.targets)-1]
	assert.True(t, last.Coverage)
	assert.Equal(t, geoserver.CoverageArcGrid, last.Format)
	assert.True(t, strings.HasSuffix(last.File, ".asc"))
	assert.True(t, h.publisher.fileSeen[len(h.publisher.fileSeen)-1])
	assert.Equal(t, layer.Identifier(), last.Store)
}

func TestDeleteAndRestoreLayer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	layer := h.vectorLayer(t, "Roads", "p1", point, 85, attrs("id", 1))

	deleted, err := h.svc.DeleteLayer(ctx, layer.ID)
	require.NoError(t, err)
	assert.NotNil(t, deleted.DeletedAt)
	assert.Empty(t, h.publisher.deleted)

	_, err = h.svc.Republish(ctx, layer.ID)
	assert.ErrorIs(t, err, services.ErrLayerInactive)

	restored, err := h.svc.RestoreLayer(ctx, layer.ID)
	require.NoError(t, err)
	assert.True(t, restored.IsActive)

	layers, err := h.svc.ListLayers(ctx, repository.LayerFilter{ProjectID: "p1"})
	require.NoError(t, err)
	assert.Len(t, layers, 1)
}
