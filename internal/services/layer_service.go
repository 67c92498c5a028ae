package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"geo-ingest-backend/internal/lifecycle"
	"geo-ingest-backend/internal/models"
	"geo-ingest-backend/internal/processors"
	"geo-ingest-backend/internal/repository"
	"github.com/google/uuid"
)

var (
	ErrGeometryMismatch    = errors.New("geometry types do not match")
	ErrProjectMismatch     = errors.New("layers belong to different projects")
	ErrNotVectorLayer      = errors.New("operation requires a vector layer")
	ErrLayerInactive       = errors.New("layer is deleted")
	ErrTooFewLayers        = errors.New("at least two layers are required")
	ErrAttributeMissing    = errors.New("attribute not found on any feature")
	ErrNoMatchingFeatures  = errors.New("no features match")
	ErrInvalidGeometryType = errors.New("unsupported geometry type")
	ErrInvalidBoundingBox  = errors.New("bbox must be [minX, minY, maxX, maxY]")
)

// geometryTypes accepted for empty layers.
var geometryTypes = map[string]bool{
	"POINT": true, "MULTIPOINT": true, "LINESTRING": true, "MULTILINESTRING": true,
	"POLYGON": true, "MULTIPOLYGON": true, "GEOMETRY": true,
}

// LayerService holds the synchronous layer operations behind the API.
type LayerService struct {
	deps      *processors.Deps
	lifecycle *lifecycle.Manager
}

func NewLayerService(deps *processors.Deps, lm *lifecycle.Manager) *LayerService {
	return &LayerService{deps: deps, lifecycle: lm}
}

// GetLayer returns a layer, including soft-deleted ones.
func (s *LayerService) GetLayer(ctx context.Context, id uuid.UUID) (*models.Layer, error) {
	return s.deps.Repo.GetLayer(ctx, id)
}

// ListLayers returns active layers unless the filter asks otherwise.
func (s *LayerService) ListLayers(ctx context.Context, f repository.LayerFilter) ([]models.Layer, error) {
	return s.deps.Repo.ListLayers(ctx, f)
}

// DeleteLayer soft-deletes; the map-server layer stays up for the grace window.
func (s *LayerService) DeleteLayer(ctx context.Context, id uuid.UUID) (*models.Layer, error) {
	return s.lifecycle.SoftDelete(ctx, id)
}

func (s *LayerService) RestoreLayer(ctx context.Context, id uuid.UUID) (*models.Layer, error) {
	return s.lifecycle.Restore(ctx, id)
}

// CreateEmptyLayer creates a published vector layer with a typed, empty table.
func (s *LayerService) CreateEmptyLayer(ctx context.Context, req models.CreateEmptyLayerRequest, userID string) (*models.Layer, error) {
	geometryType := strings.ToUpper(strings.TrimSpace(req.GeometryType))
	if !geometryTypes[geometryType] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGeometryType, req.GeometryType)
	}
	layer := &models.Layer{
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		CompanyID:    req.CompanyID,
		ProjectID:    req.ProjectID,
		CreatedBy:    userID,
		GeometryType: geometryType,
		SourceFormat: "empty",
		CRS:          "EPSG:4326",
	}
	if err := s.deps.CreateEmptyVectorLayer(ctx, layer); err != nil {
		return nil, err
	}
	return layer, nil
}

// Republish publishes an active layer again, typically one left
// unpublished after the map server was unreachable.
func (s *LayerService) Republish(ctx context.Context, id uuid.UUID) (*models.Layer, error) {
	layer, err := s.deps.Repo.GetLayer(ctx, id)
	if err != nil {
		return nil, err
	}
	if !layer.IsActive {
		return nil, ErrLayerInactive
	}
	if err := s.deps.Republish(ctx, layer, lifecycle.Target(layer)); err != nil {
		return nil, err
	}
	return layer, nil
}

// RepublishAll retries every active unpublished layer and reports how many
// are published afterwards.
func (s *LayerService) RepublishAll(ctx context.Context) (int, error) {
	layers, err := s.deps.Repo.ListUnpublished(ctx)
	if err != nil {
		return 0, err
	}
	published := 0
	var errs []error
	for i := range layers {
		layer := &layers[i]
		if err := s.deps.Republish(ctx, layer, lifecycle.Target(layer)); err != nil {
			log.Printf("Warning: could not republish layer %s: %v", layer.ID, err)
			errs = append(errs, err)
			continue
		}
		if layer.IsPublished {
			published++
		}
	}
	log.Printf("Republished %d of %d unpublished layers", published, len(layers))
	return published, errors.Join(errs...)
}

// activeVector loads a layer that merge and split may read from.
func (s *LayerService) activeVector(ctx context.Context, id uuid.UUID) (*models.Layer, error) {
	layer, err := s.deps.Repo.GetLayer(ctx, id)
	if err != nil {
		return nil, err
	}
	if !layer.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrLayerInactive, id)
	}
	if layer.Kind != models.KindVector {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotVectorLayer, id, layer.Kind)
	}
	return layer, nil
}
