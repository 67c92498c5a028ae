// Package lifecycle moves layers between active, soft-deleted and
// permanently deleted. A soft-deleted layer stays on the map server for the
// grace window so existing maps keep rendering; only Sweep removes it.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"geo-ingest-backend/internal/geoserver"
	"geo-ingest-backend/internal/models"
	"geo-ingest-backend/internal/naming"
	"geo-ingest-backend/internal/repository"
	"github.com/google/uuid"
)

const DefaultGraceWindow = 7 * 24 * time.Hour

var (
	ErrAlreadyDeleted = errors.New("layer is already deleted")
	ErrNotDeleted     = errors.New("layer is not deleted")
	ErrGraceExpired   = errors.New("grace window has expired")
)

type TableDropper interface {
	DropTable(ctx context.Context, table string) error
}

type Unpublisher interface {
	Delete(ctx context.Context, t geoserver.Target) error
}

type Manager struct {
	repo      *repository.Repository
	tables    TableDropper
	publisher Unpublisher
	registry  *naming.Registry
	grace     time.Duration
	now       func() time.Time
}

func NewManager(repo *repository.Repository, tables TableDropper, publisher Unpublisher, registry *naming.Registry, grace time.Duration) *Manager {
	if grace <= 0 {
		grace = DefaultGraceWindow
	}
	return &Manager{
		repo:      repo,
		tables:    tables,
		publisher: publisher,
		registry:  registry,
		grace:     grace,
		now:       time.Now,
	}
}

// SetClock replaces the time source.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

func (m *Manager) GraceWindow() time.Duration {
	return m.grace
}

// Target returns the map-server resources of layer.
func Target(layer *models.Layer) geoserver.Target {
	entry := naming.Entry{
		ID:         layer.ID,
		Kind:       naming.Kind(layer.Kind),
		Identifier: layer.Identifier(),
		CompanyID:  layer.CompanyID,
		ProjectID:  layer.ProjectID,
	}
	return geoserver.Target{
		Resources: entry.Resources(),
		Title:     layer.Name,
		Coverage:  layer.Kind != models.KindVector,
	}
}

// Eligible reports whether layer may be permanently deleted at now.
func (m *Manager) Eligible(layer *models.Layer, now time.Time) bool {
	if layer.IsActive || layer.DeletedAt == nil {
		return false
	}
	return now.After(layer.DeletedAt.Add(m.grace))
}

// SoftDelete hides the layer from listings. Its table and map-server layer
// are kept until the grace window has passed.
func (m *Manager) SoftDelete(ctx context.Context, id uuid.UUID) (*models.Layer, error) {
	layer, err := m.repo.GetLayer(ctx, id)
	if err != nil {
		return nil, err
	}
	if !layer.IsActive {
		return nil, ErrAlreadyDeleted
	}
	now := m.now().UTC()
	if err := m.repo.SetActive(ctx, id, false, &now); err != nil {
		return nil, err
	}
	layer.IsActive = false
	layer.DeletedAt = &now
	log.Printf("Soft-deleted layer %s, eligible for removal after %s", id, now.Add(m.grace).Format(time.RFC3339))
	return layer, nil
}

// Restore reactivates a soft-deleted layer still inside its grace window.
func (m *Manager) Restore(ctx context.Context, id uuid.UUID) (*models.Layer, error) {
	layer, err := m.repo.GetLayer(ctx, id)
	if err != nil {
		return nil, err
	}
	if layer.IsActive || layer.DeletedAt == nil {
		return nil, ErrNotDeleted
	}
	if m.Eligible(layer, m.now()) {
		return nil, ErrGraceExpired
	}
	if err := m.repo.SetActive(ctx, id, true, nil); err != nil {
		return nil, err
	}
	layer.IsActive = true
	layer.DeletedAt = nil
	log.Printf("Restored layer %s", id)
	return layer, nil
}

// PurgeLayer removes every trace of layer: map-server resources first, then
// the spatial table, then the catalog rows.
func (m *Manager) PurgeLayer(ctx context.Context, layer *models.Layer) error {
	if layer.Identifier() != "" {
		if err := m.publisher.Delete(ctx, Target(layer)); err != nil && !geoserver.IsNotFound(err) {
			return fmt.Errorf("failed to unpublish layer %s: %w", layer.ID, err)
		}
		if layer.Kind == models.KindVector {
			if err := m.tables.DropTable(ctx, layer.Identifier()); err != nil {
				return fmt.Errorf("failed to drop table of layer %s: %w", layer.ID, err)
			}
		}
	}
	if err := m.repo.DeleteLayer(ctx, layer.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	m.registry.Release(layer.ID)
	log.Printf("Permanently deleted layer %s", layer.ID)
	return nil
}

// Sweep purges every layer whose grace window ended before now. A failed
// layer is left for the next sweep; the others still go.
func (m *Manager) Sweep(ctx context.Context, now time.Time) (int, error) {
	layers, err := m.repo.ListDeletedBefore(ctx, now.Add(-m.grace))
	if err != nil {
		return 0, err
	}
	var (
		purged int
		errs   []error
	)
	for i := range layers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := m.PurgeLayer(ctx, &layers[i]); err != nil {
			log.Printf("Warning: sweep could not delete layer %s: %v", layers[i].ID, err)
			errs = append(errs, err)
			continue
		}
		purged++
	}
	if len(layers) > 0 {
		log.Printf("Sweep removed %d of %d expired layers", purged, len(layers))
	}
	return purged, errors.Join(errs...)
}
