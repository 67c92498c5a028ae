package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ImageryRecord is a geotagged street photo. A record only exists with a
// usable coordinate pair.
type ImageryRecord struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID        string    `gorm:"size:64;not null;index" json:"company_id"`
	ProjectID        string    `gorm:"size:64;not null;index" json:"project_id"`
	StorageKey       string    `gorm:"size:255;uniqueIndex" json:"storage_key"`
	OriginalFilename string    `gorm:"size:255;not null" json:"original_filename"`
	FilePath         string    `gorm:"size:500;not null" json:"file_path"`
	FileSize         int64     `json:"file_size,omitempty"`
	ImageType        string    `gorm:"size:20;default:front_view" json:"image_type"`

	Latitude    float64  `gorm:"not null" json:"latitude"`
	Longitude   float64  `gorm:"not null" json:"longitude"`
	Altitude    *float64 `json:"altitude,omitempty"`
	AltitudeRef string   `gorm:"size:20" json:"altitude_ref,omitempty"`

	CameraMake   string `gorm:"size:100" json:"camera_make,omitempty"`
	CameraModel  string `gorm:"size:100" json:"camera_model,omitempty"`
	CameraSerial string `gorm:"size:100" json:"camera_serial,omitempty"`
	LensMake     string `gorm:"size:100" json:"lens_make,omitempty"`
	LensModel    string `gorm:"size:100" json:"lens_model,omitempty"`

	FocalLength     *float64 `json:"focal_length,omitempty"`
	FocalLength35mm *float64 `gorm:"column:focal_length_35mm" json:"focal_length_35mm,omitempty"`
	FNumber         *float64 `gorm:"column:f_number" json:"f_number,omitempty"`
	ExposureTime    string   `gorm:"size:20" json:"exposure_time,omitempty"`
	ISOSpeed        *int     `gorm:"column:iso_speed" json:"iso_speed,omitempty"`
	ExposureMode    string   `gorm:"size:50" json:"exposure_mode,omitempty"`
	WhiteBalance    string   `gorm:"size:50" json:"white_balance,omitempty"`
	Flash           string   `gorm:"size:50" json:"flash,omitempty"`

	ImageWidth      *int   `json:"image_width,omitempty"`
	ImageHeight     *int   `json:"image_height,omitempty"`
	Orientation     *int   `json:"orientation,omitempty"`
	ColorSpace      string `gorm:"size:20" json:"color_space,omitempty"`
	Compression     string `gorm:"size:50" json:"compression,omitempty"`
	PixelXDimension *int   `gorm:"column:pixel_x_dimension" json:"pixel_x_dimension,omitempty"`
	PixelYDimension *int   `gorm:"column:pixel_y_dimension" json:"pixel_y_dimension,omitempty"`

	GPSSpeed           *float64 `gorm:"column:gps_speed" json:"gps_speed,omitempty"`
	GPSTrack           *float64 `gorm:"column:gps_track" json:"gps_track,omitempty"`
	GPSImgDirection    *float64 `gorm:"column:gps_img_direction" json:"gps_img_direction,omitempty"`
	GPSImgDirectionRef string   `gorm:"column:gps_img_direction_ref;size:10" json:"gps_img_direction_ref,omitempty"`

	Software          string     `gorm:"size:100" json:"software,omitempty"`
	CapturedAt        *time.Time `json:"captured_at,omitempty"`
	DateTimeDigitized *time.Time `json:"date_time_digitized,omitempty"`

	// Tags holds every readable EXIF tag as text.
	Tags datatypes.JSON `json:"tags,omitempty"`

	ProcessingStatus string    `gorm:"size:20;not null;default:pending" json:"processing_status"`
	Notes            string    `json:"notes,omitempty"`
	UploadedBy       string    `gorm:"size:255" json:"uploaded_by,omitempty"`
	IsActive         bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (ImageryRecord) TableName() string { return "imagery_records" }
