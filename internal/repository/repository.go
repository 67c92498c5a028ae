// Package repository is the gorm-backed catalog of layers, features,
// imagery records and upload jobs.
package repository

import (
	"errors"
	"fmt"

	"geo-ingest-backend/internal/models"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *gorm.DB {
	return r.db
}

// AutoMigrate creates or updates the catalog tables. Production schemas come
// from the embedded SQL migrations; this keeps tests and local SQLite runs
// in step with the models.
func (r *Repository) AutoMigrate() error {
	if err := r.db.AutoMigrate(
		&models.Layer{},
		&models.Feature{},
		&models.ImageryRecord{},
		&models.UploadJob{},
		&models.JobFile{},
	); err != nil {
		return fmt.Errorf("failed to migrate catalog: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
