package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Layer kinds, mirroring naming.Kind.
const (
	KindVector  = "vector"
	KindRaster  = "raster"
	KindTerrain = "terrain"
)

// Publish states of a layer on the map server.
const (
	PublishPending     = "pending"
	PublishPublished   = "published"
	PublishUnpublished = "unpublished"
)

// Layer is a vector, raster or terrain layer owned by a project.
//
// StorageName is the canonical storage identifier. It is nil until the row
// has its primary key and is never changed afterwards.
type Layer struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Kind        string    `gorm:"size:16;not null;index" json:"kind"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `json:"description,omitempty"`
	StorageName *string   `gorm:"size:200;uniqueIndex" json:"storage_name,omitempty"`
	CompanyID   string    `gorm:"size:64;not null;index" json:"company_id"`
	ProjectID   string    `gorm:"size:64;not null;index" json:"project_id"`
	CreatedBy   string    `gorm:"size:255" json:"created_by,omitempty"`

	SourceKey    string `gorm:"size:500" json:"source_key,omitempty"`
	SourceFormat string `gorm:"size:32" json:"source_format,omitempty"`
	CRS          string `gorm:"column:crs;size:32" json:"crs,omitempty"`

	BBoxMinX *float64 `gorm:"column:bbox_min_x" json:"bbox_min_x,omitempty"`
	BBoxMinY *float64 `gorm:"column:bbox_min_y" json:"bbox_min_y,omitempty"`
	BBoxMaxX *float64 `gorm:"column:bbox_max_x" json:"bbox_max_x,omitempty"`
	BBoxMaxY *float64 `gorm:"column:bbox_max_y" json:"bbox_max_y,omitempty"`

	// vector
	GeometryType string `gorm:"size:32" json:"geometry_type,omitempty"`
	FeatureCount int    `json:"feature_count"`
	SkippedCount int    `json:"skipped_count"`

	// raster and terrain
	Width            int            `json:"width,omitempty"`
	Height           int            `json:"height,omitempty"`
	PixelSizeX       float64        `json:"pixel_size_x,omitempty"`
	PixelSizeY       float64        `json:"pixel_size_y,omitempty"`
	BandCount        int            `json:"band_count,omitempty"`
	BandDescriptions datatypes.JSON `json:"band_descriptions,omitempty"`
	TerrainType      string         `gorm:"size:16" json:"terrain_type,omitempty"`
	MinElevation     *float64       `json:"min_elevation,omitempty"`
	MaxElevation     *float64       `json:"max_elevation,omitempty"`

	PublishStatus string     `gorm:"size:16;not null;default:pending" json:"publish_status"`
	IsPublished   bool       `gorm:"not null;default:false" json:"is_published"`
	PublishError  string     `json:"publish_error,omitempty"`
	ExternalURL   string     `gorm:"size:1000" json:"external_url,omitempty"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`

	IsActive  bool       `gorm:"not null;default:true;index" json:"is_active"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Layer) TableName() string { return "layers" }

// Identifier returns the storage name, or "" before it is assigned.
func (l *Layer) Identifier() string {
	if l.StorageName == nil {
		return ""
	}
	return *l.StorageName
}

// SetBounds stores a bounding box given as min/max corners.
func (l *Layer) SetBounds(minX, minY, maxX, maxY float64) {
	l.BBoxMinX, l.BBoxMinY, l.BBoxMaxX, l.BBoxMaxY = &minX, &minY, &maxX, &maxY
}

// Feature is one vector feature kept in the catalog alongside the layer's
// own spatial table. Geometry is GeoJSON; the bbox columns support
// envelope filtering without a spatial index.
type Feature struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	LayerID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"layer_id"`
	GeometryType string         `gorm:"size:32" json:"geometry_type"`
	Geometry     datatypes.JSON `gorm:"not null" json:"geometry"`
	Attributes   datatypes.JSON `json:"attributes"`
	MinX         float64        `json:"-"`
	MinY         float64        `json:"-"`
	MaxX         float64        `json:"-"`
	MaxY         float64        `json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (Feature) TableName() string { return "features" }
