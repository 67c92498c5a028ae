package repository

import (
	"context"
	"fmt"

	"geo-ingest-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

// UpsertImageryRecord inserts the record or overwrites the existing one with
// the same id, so reprocessing a file never duplicates it.
func (r *Repository) UpsertImageryRecord(ctx context.Context, rec *models.ImageryRecord) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to upsert imagery record %s: %w", rec.ID, err)
	}
	return nil
}

func (r *Repository) GetImageryRecord(ctx context.Context, id uuid.UUID) (*models.ImageryRecord, error) {
	var rec models.ImageryRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

func (r *Repository) ListImagery(ctx context.Context, projectID string) ([]models.ImageryRecord, error) {
	var recs []models.ImageryRecord
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND is_active = ?", projectID, true).
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list imagery: %w", err)
	}
	return recs, nil
}
