package models

import (
	"time"

	"github.com/google/uuid"
)

// Job states.
const (
	JobWaitingForUpload = "waiting_for_upload"
	JobProcessing       = "processing"
	JobCompleted        = "completed"
	JobFailed           = "failed"
)

// File states. FileTimeout is kept apart from FileFailed so callers can
// tell a slow file from a broken one.
const (
	FileWaitingForUpload = "waiting_for_upload"
	FileUploaded         = "uploaded"
	FileProcessing       = "processing"
	FileCompleted        = "completed"
	FileFailed           = "failed"
	FileTimeout          = "timeout"
)

// Errors recorded on files rejected before processing.
const (
	ErrNotUploaded  = "not uploaded"
	ErrSizeMismatch = "uploaded size does not match the grant"
)

// UploadJob tracks one RequestUploads batch through arrival polling and
// per-file processing.
type UploadJob struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"job_id"`
	CompanyID   string     `gorm:"size:64;not null" json:"company_id"`
	ProjectID   string     `gorm:"size:64;not null;index" json:"project_id"`
	UserID      string     `gorm:"size:255" json:"user_id,omitempty"`
	Status      string     `gorm:"size:32;not null;index" json:"status"`
	Checks      int        `json:"checks"`
	NextCheckAt *time.Time `json:"next_check_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Files       []JobFile  `gorm:"foreignKey:JobID" json:"files"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (UploadJob) TableName() string { return "upload_jobs" }

// JobFile is one file mapping of a job.
type JobFile struct {
	ID               uint       `gorm:"primaryKey" json:"-"`
	JobID            uuid.UUID  `gorm:"type:uuid;not null;index" json:"-"`
	OriginalFilename string     `gorm:"size:255;not null" json:"filename"`
	StorageKey       string     `gorm:"size:64;not null" json:"storage_key"`
	StoragePath      string     `gorm:"size:500;not null" json:"storage_path"`
	Category         string     `gorm:"size:32;not null" json:"category"`
	ContentType      string     `gorm:"size:100" json:"content_type,omitempty"`
	Size             int64      `json:"size,omitempty"`
	Title            string     `gorm:"size:255" json:"title,omitempty"`
	Description      string     `json:"description,omitempty"`
	TerrainType      string     `gorm:"size:16" json:"terrain_type,omitempty"`
	Latitude         *float64   `json:"latitude,omitempty"`
	Longitude        *float64   `json:"longitude,omitempty"`
	Status           string     `gorm:"size:32;not null" json:"status"`
	Error            string     `json:"error,omitempty"`
	ResultID         *uuid.UUID `gorm:"type:uuid" json:"result_id,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
}

func (JobFile) TableName() string { return "job_files" }
