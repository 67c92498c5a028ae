package models

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// FileDescriptor announces one file the client is about to upload.
type FileDescriptor struct {
	Filename    string `json:"filename" binding:"required" example:"roads.geojson"`
	ContentType string `json:"content_type,omitempty" example:"application/geo+json"`
	// Size is the declared byte length; grants reject 0 or more than 100 GB.
	Size int64 `json:"size,omitempty" example:"48213"`
	// Category overrides extension-based classification, e.g. "terrain_models" for a .tif DEM.
	Category    string   `json:"category,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	TerrainType string   `json:"terrain_type,omitempty" example:"dtm"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

type RequestUploadsRequest struct {
	CompanyID string           `json:"company_id" binding:"required"`
	ProjectID string           `json:"project_id" binding:"required"`
	Files     []FileDescriptor `json:"files" binding:"required,min=1,dive"`
}

type MergeLayersRequest struct {
	LayerIDs []string `json:"layer_ids" binding:"required,min=2"`
	Name     string   `json:"name" binding:"required"`
}

// SplitLayerRequest splits by Attribute. With Value set only the matching
// features are copied into one new layer; otherwise one layer is created per
// distinct value.
type SplitLayerRequest struct {
	Attribute string      `json:"attribute" binding:"required" example:"landuse"`
	Value     interface{} `json:"value,omitempty"`
	Name      string      `json:"name,omitempty"`
}

// FilterFeaturesRequest narrows features by layer, bounding box and exact
// attribute values. BBox is [minX, minY, maxX, maxY] in WGS84.
type FilterFeaturesRequest struct {
	CompanyID  string                 `json:"company_id,omitempty"`
	ProjectID  string                 `json:"project_id,omitempty"`
	LayerName  string                 `json:"layer_name,omitempty"`
	LayerIDs   []string               `json:"layer_ids,omitempty"`
	BBox       []float64              `json:"bbox,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	Format     string                 `json:"format,omitempty" example:"geojson"`
}

type CreateEmptyLayerRequest struct {
	CompanyID    string `json:"company_id" binding:"required"`
	ProjectID    string `json:"project_id" binding:"required"`
	Name         string `json:"name" binding:"required"`
	GeometryType string `json:"geometry_type" binding:"required" example:"Polygon"`
	Description  string `json:"description,omitempty"`
}
