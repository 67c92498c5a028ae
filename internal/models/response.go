package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type HealthResponse struct {
	Status string `json:"status"`
}

// UploadGrant is a signed, time-limited upload target for one file.
type UploadGrant struct {
	Filename   string    `json:"filename"`
	StorageKey string    `json:"storage_key"`
	Path       string    `json:"path"`
	Category   string    `json:"category"`
	UploadURL  string    `json:"upload_url"`
	Token      string    `json:"token,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type RequestUploadsResponse struct {
	JobID  uuid.UUID     `json:"job_id"`
	Grants []UploadGrant `json:"grants"`
}

type FileStatus struct {
	Filename string     `json:"filename"`
	Category string     `json:"category"`
	Status   string     `json:"status"`
	Error    string     `json:"error,omitempty"`
	ResultID *uuid.UUID `json:"result_id,omitempty"`
}

type JobStatusResponse struct {
	JobID          uuid.UUID    `json:"job_id"`
	Status         string       `json:"status"`
	Error          string       `json:"error,omitempty"`
	ProcessedFiles int          `json:"processed_files"`
	FailedFiles    int          `json:"failed_files"`
	Files          []FileStatus `json:"files"`
	CreatedAt      time.Time    `json:"created_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
}

type LayerListResponse struct {
	Layers []Layer `json:"layers"`
	Count  int     `json:"count"`
}

type SplitLayerResponse struct {
	Layers []Layer `json:"layers"`
}

// FeatureCollection is a GeoJSON FeatureCollection with a count member.
type FeatureCollection struct {
	Type     string           `json:"type"`
	Count    int              `json:"count"`
	Features []GeoJSONFeature `json:"features"`
}

type GeoJSONFeature struct {
	Type       string                 `json:"type"`
	ID         uint                   `json:"id,omitempty"`
	Geometry   json.RawMessage        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type FeatureListResponse struct {
	Features []Feature `json:"features"`
	Count    int       `json:"count"`
}
