package repository

import (
	"context"
	"fmt"
	"time"

	"geo-ingest-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LayerFilter narrows ListLayers. Empty fields match everything.
type LayerFilter struct {
	CompanyID       string
	ProjectID       string
	Kind            string
	IncludeInactive bool
}

func (r *Repository) CreateLayer(ctx context.Context, layer *models.Layer) error {
	if layer.ID == uuid.Nil {
		layer.ID = uuid.New()
	}
	if layer.PublishStatus == "" {
		layer.PublishStatus = models.PublishPending
	}
	layer.IsActive = true
	if err := r.db.WithContext(ctx).Create(layer).Error; err != nil {
		return fmt.Errorf("failed to create layer: %w", err)
	}
	return nil
}

// AssignStorageName sets the storage name once. A row that already carries
// a name keeps it; the layer is reloaded either way so the caller sees the
// stored value.
func (r *Repository) AssignStorageName(ctx context.Context, layer *models.Layer, name string) error {
	err := r.db.WithContext(ctx).
		Model(&models.Layer{}).
		Where("id = ? AND storage_name IS NULL", layer.ID).
		Update("storage_name", name).Error
	if err != nil {
		return fmt.Errorf("failed to assign storage name: %w", err)
	}
	return r.db.WithContext(ctx).First(layer, "id = ?", layer.ID).Error
}

// GetLayer returns a layer whether or not it is soft-deleted.
func (r *Repository) GetLayer(ctx context.Context, id uuid.UUID) (*models.Layer, error) {
	var layer models.Layer
	if err := r.db.WithContext(ctx).First(&layer, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &layer, nil
}

func (r *Repository) ListLayers(ctx context.Context, f LayerFilter) ([]models.Layer, error) {
	q := r.db.WithContext(ctx).Model(&models.Layer{})
	if f.CompanyID != "" {
		q = q.Where("company_id = ?", f.CompanyID)
	}
	if f.ProjectID != "" {
		q = q.Where("project_id = ?", f.ProjectID)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if !f.IncludeInactive {
		q = q.Where("is_active = ?", true)
	}

	var layers []models.Layer
	if err := q.Order("created_at DESC").Find(&layers).Error; err != nil {
		return nil, fmt.Errorf("failed to list layers: %w", err)
	}
	return layers, nil
}

// UpdatePublishState records the outcome of a publish attempt.
func (r *Repository) UpdatePublishState(ctx context.Context, id uuid.UUID, published bool, externalURL, publishErr string) error {
	updates := map[string]interface{}{
		"is_published":  published,
		"publish_error": publishErr,
		"external_url":  externalURL,
	}
	if published {
		now := time.Now()
		updates["publish_status"] = models.PublishPublished
		updates["published_at"] = &now
	} else {
		updates["publish_status"] = models.PublishUnpublished
	}
	res := r.db.WithContext(ctx).Model(&models.Layer{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update publish state: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive flips the soft-delete flag. deletedAt is cleared on restore.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool, deletedAt *time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Layer{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": active, "deleted_at": deletedAt})
	if res.Error != nil {
		return fmt.Errorf("failed to update layer state: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDeletedBefore returns inactive layers deleted strictly before cutoff.
func (r *Repository) ListDeletedBefore(ctx context.Context, cutoff time.Time) ([]models.Layer, error) {
	var layers []models.Layer
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND deleted_at IS NOT NULL AND deleted_at < ?", false, cutoff).
		Order("deleted_at").
		Find(&layers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list deleted layers: %w", err)
	}
	return layers, nil
}

func (r *Repository) ListUnpublished(ctx context.Context) ([]models.Layer, error) {
	var layers []models.Layer
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND is_published = ? AND storage_name IS NOT NULL", true, false).
		Order("created_at").
		Find(&layers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unpublished layers: %w", err)
	}
	return layers, nil
}

// DeleteLayer removes the layer row and its catalog features.
func (r *Repository) DeleteLayer(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("layer_id = ?", id).Delete(&models.Feature{}).Error; err != nil {
			return fmt.Errorf("failed to delete features of layer %s: %w", id, err)
		}
		res := tx.Delete(&models.Layer{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete layer %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
