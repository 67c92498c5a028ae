package processors

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"geo-ingest-backend/internal/geoserver"
	"geo-ingest-backend/internal/models"
	"geo-ingest-backend/internal/spatial"
	"geo-ingest-backend/internal/vector"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type VectorProcessor struct {
	deps *Deps
}

func NewVectorProcessor(deps *Deps) *VectorProcessor {
	return &VectorProcessor{deps: deps}
}

func (p *VectorProcessor) Run(ctx context.Context, src Source) (uuid.UUID, error) {
	layer, err := p.Process(ctx, src)
	if err != nil {
		return uuid.Nil, err
	}
	return layer.ID, nil
}

// Feature is a validated WGS84 feature ready to be stored.
type Feature struct {
	Geometry   orb.Geometry
	Attributes map[string]interface{}
}

// Process ingests a GeoJSON, zipped shapefile, KML or GPX upload as one
// vector layer. Features that fail to decode or validate are skipped and
// counted; the ingestion fails only when none survive.
func (p *VectorProcessor) Process(ctx context.Context, src Source) (*models.Layer, error) {
	format, err := vector.FormatFor(src.Filename)
	if err != nil {
		return nil, err
	}

	path, cleanup, err := p.deps.Fetch(src)
	defer cleanup()
	if err != nil {
		return nil, err
	}

	ds, err := vector.ReadFile(path, format)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", src.Filename, err)
	}
	if len(ds.Records) == 0 {
		return nil, ErrEmptyFeatureSet
	}

	source, geoms := p.deps.Normalizer.Normalize(ds.Geometries())

	var (
		kept    []Feature
		skipped int
	)
	for i, rec := range ds.Records {
		if rec.Err != nil {
			skipped++
			log.Printf("Skipping feature %d of %s: %v", i, src.Filename, rec.Err)
			continue
		}
		if err := vector.Validate(geoms[i]); err != nil {
			skipped++
			log.Printf("Skipping feature %d of %s: %v", i, src.Filename, err)
			continue
		}
		kept = append(kept, Feature{Geometry: geoms[i], Attributes: vector.NormalizeAttributes(rec.Properties)})
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w (%d skipped)", ErrNoValidFeatures, skipped)
	}
	if skipped > 0 {
		log.Printf("Skipped %d of %d features in %s", skipped, len(ds.Records), src.Filename)
	}

	layer := &models.Layer{
		Kind:         models.KindVector,
		Name:         src.LayerName(),
		Description:  src.Description,
		CompanyID:    src.CompanyID,
		ProjectID:    src.ProjectID,
		CreatedBy:    src.UserID,
		SourceKey:    src.Path,
		SourceFormat: string(ds.Format),
		CRS:          source.String(),
		SkippedCount: skipped,
	}
	if err := p.deps.CreateVectorLayer(ctx, layer, kept); err != nil {
		return nil, err
	}
	return layer, nil
}

// CreateVectorLayer stores a new vector layer with its features: catalog
// row, canonical identifier, feature rows, spatial table, then publication.
// Geometry type, count and bounds are derived from features. Any failure
// before publication removes the layer again; a publish failure only leaves
// it unpublished.
func (d *Deps) CreateVectorLayer(ctx context.Context, layer *models.Layer, features []Feature) error {
	if len(features) == 0 {
		return ErrNoValidFeatures
	}
	layer.Kind = models.KindVector
	layer.GeometryType = vector.GeometryType(features[0].Geometry)
	layer.FeatureCount = len(features)
	bound := features[0].Geometry.Bound()
	for _, f := range features[1:] {
		bound = bound.Union(f.Geometry.Bound())
	}
	layer.SetBounds(bound.Min.X(), bound.Min.Y(), bound.Max.X(), bound.Max.Y())

	if err := d.Repo.CreateLayer(ctx, layer); err != nil {
		return err
	}
	entry, err := d.Register(ctx, layer)
	if err != nil {
		d.discard(ctx, layer)
		return err
	}
	res := entry.Resources()

	rows, rowsErr := buildFeatures(layer.ID, features)
	if rowsErr != nil {
		d.discard(ctx, layer)
		return rowsErr
	}
	if err := d.Repo.CreateFeatures(ctx, rows.catalog); err != nil {
		d.discard(ctx, layer)
		return err
	}
	if err := d.Tables.CreateAndPopulate(ctx, res.Table, rows.table); err != nil {
		d.discard(ctx, layer)
		return err
	}
	log.Printf("Stored vector layer %s (%s) with %d features", layer.ID, res.Table, len(features))

	d.PublishLayer(ctx, layer, geoserver.Target{Resources: res, Title: layer.Name})
	return nil
}

type featureRows struct {
	catalog []models.Feature
	table   []spatial.Row
}

func buildFeatures(layerID uuid.UUID, features []Feature) (featureRows, error) {
	out := featureRows{
		catalog: make([]models.Feature, 0, len(features)),
		table:   make([]spatial.Row, 0, len(features)),
	}
	for i, f := range features {
		geom, err := geojson.NewGeometry(f.Geometry).MarshalJSON()
		if err != nil {
			return featureRows{}, fmt.Errorf("failed to encode feature %d: %w", i, err)
		}
		attrs := f.Attributes
		if attrs == nil {
			attrs = map[string]interface{}{}
		}
		encoded, err := json.Marshal(attrs)
		if err != nil {
			return featureRows{}, fmt.Errorf("failed to encode feature %d attributes: %w", i, err)
		}
		b := f.Geometry.Bound()
		out.catalog = append(out.catalog, models.Feature{
			LayerID:      layerID,
			GeometryType: vector.GeometryType(f.Geometry),
			Geometry:     geom,
			Attributes:   encoded,
			MinX:         b.Min.X(),
			MinY:         b.Min.Y(),
			MaxX:         b.Max.X(),
			MaxY:         b.Max.Y(),
		})
		out.table = append(out.table, spatial.Row{Geometry: f.Geometry, Attributes: attrs})
	}
	return out, nil
}

// CreateEmptyVectorLayer stores a layer with no features and a table typed
// to layer.GeometryType, then publishes it.
func (d *Deps) CreateEmptyVectorLayer(ctx context.Context, layer *models.Layer) error {
	layer.Kind = models.KindVector
	layer.FeatureCount = 0
	if err := d.Repo.CreateLayer(ctx, layer); err != nil {
		return err
	}
	entry, err := d.Register(ctx, layer)
	if err != nil {
		d.discard(ctx, layer)
		return err
	}
	res := entry.Resources()
	if err := d.Tables.CreateLayerTable(ctx, res.Table, layer.GeometryType); err != nil {
		d.discard(ctx, layer)
		return err
	}
	log.Printf("Created empty %s layer %s", layer.GeometryType, res.Table)

	d.PublishLayer(ctx, layer, geoserver.Target{Resources: res, Title: layer.Name})
	return nil
}
