package repository

import (
	"context"
	"fmt"

	"geo-ingest-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateJob stores a job together with its file mappings.
func (r *Repository) CreateJob(ctx context.Context, job *models.UploadJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (r *Repository) GetJob(ctx context.Context, id uuid.UUID) (*models.UploadJob, error) {
	var job models.UploadJob
	err := r.db.WithContext(ctx).
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&job, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &job, nil
}

func (r *Repository) UpdateJob(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.UploadJob{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update job %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) UpdateJobFile(ctx context.Context, id uint, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.JobFile{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update job file %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListOpenJobs returns jobs that have not reached a final state, oldest
// first. Used to resume polling after a restart.
func (r *Repository) ListOpenJobs(ctx context.Context) ([]models.UploadJob, error) {
	var jobs []models.UploadJob
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{models.JobWaitingForUpload, models.JobProcessing}).
		Order("created_at").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list open jobs: %w", err)
	}
	return jobs, nil
}
