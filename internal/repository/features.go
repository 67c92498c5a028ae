package repository

import (
	"context"
	"fmt"

	"geo-ingest-backend/internal/models"
	"github.com/google/uuid"
)

const featureBatchSize = 500

// FeatureQuery selects catalog features. BBox, when set, is
// [minX, minY, maxX, maxY] and matches features whose envelope intersects it.
type FeatureQuery struct {
	LayerIDs []uuid.UUID
	BBox     []float64
}

func (r *Repository) CreateFeatures(ctx context.Context, features []models.Feature) error {
	if len(features) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(features, featureBatchSize).Error; err != nil {
		return fmt.Errorf("failed to create features: %w", err)
	}
	return nil
}

func (r *Repository) ListFeatures(ctx context.Context, layerID uuid.UUID) ([]models.Feature, error) {
	var features []models.Feature
	if err := r.db.WithContext(ctx).Where("layer_id = ?", layerID).Order("id").Find(&features).Error; err != nil {
		return nil, fmt.Errorf("failed to list features of layer %s: %w", layerID, err)
	}
	return features, nil
}

func (r *Repository) QueryFeatures(ctx context.Context, q FeatureQuery) ([]models.Feature, error) {
	tx := r.db.WithContext(ctx).Model(&models.Feature{})
	if len(q.LayerIDs) > 0 {
		tx = tx.Where("layer_id IN ?", q.LayerIDs)
	}
	if len(q.BBox) == 4 {
		tx = tx.Where("max_x >= ? AND min_x <= ? AND max_y >= ? AND min_y <= ?",
			q.BBox[0], q.BBox[2], q.BBox[1], q.BBox[3])
	}

	var features []models.Feature
	if err := tx.Order("id").Find(&features).Error; err != nil {
		return nil, fmt.Errorf("failed to query features: %w", err)
	}
	return features, nil
}

func (r *Repository) CountFeatures(ctx context.Context, layerID uuid.UUID) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Feature{}).Where("layer_id = ?", layerID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count features: %w", err)
	}
	return n, nil
}
