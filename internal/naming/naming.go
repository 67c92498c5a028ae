// Package naming derives every runtime-created resource name in one place.
//
// A layer's backing table, its map-server layer and (for coverages) its
// map-server store all use the same canonical storage identifier. The
// identifier is derived only from the layer's primary key, never from the
// user-facing display name.
package naming

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

type Kind string

const (
	KindVector  Kind = "vector"
	KindRaster  Kind = "raster"
	KindTerrain Kind = "terrain"
)

// MaxIdentifierLength matches the width of the name columns in the catalog.
const MaxIdentifierLength = 200

// Content categories used for storage folders and layer groups.
const (
	CategoryVector  = "vector_layers"
	CategoryRaster  = "raster_layers"
	CategoryTerrain = "terrain_models"
	CategoryImagery = "street_imagery"
	CategoryPoints  = "point_clouds"
	CategoryOther   = "other_files"
)

var unsafeChars = regexp.MustCompile(`[^0-9A-Za-z_]`)

// StorageIdentifier returns the canonical storage identifier for a layer.
func StorageIdentifier(kind Kind, id uuid.UUID) string {
	name := fmt.Sprintf("%s_layer_%s", kind, strings.ReplaceAll(id.String(), "-", ""))
	if len(name) > MaxIdentifierLength {
		name = name[:MaxIdentifierLength]
	}
	return name
}

// Category maps a layer kind to its content category.
func Category(kind Kind) string {
	switch kind {
	case KindVector:
		return CategoryVector
	case KindRaster:
		return CategoryRaster
	case KindTerrain:
		return CategoryTerrain
	}
	return CategoryOther
}

// Workspace is the company-scoped map-server workspace.
func Workspace(companyID string) string {
	return companyID
}

// ProjectStore is the project-scoped feature store that binds vector
// layers to the spatial database.
func ProjectStore(projectID string) string {
	return projectID
}

// LayerGroup returns the per-project, per-category group name.
func LayerGroup(projectID, category string) string {
	return fmt.Sprintf("%s_%s", projectID, category)
}

// Qualified returns the workspace-prefixed name used inside layer groups.
func Qualified(workspace, layer string) string {
	return workspace + ":" + layer
}

// SafeIdentifier turns an arbitrary id into a SQL-safe identifier fragment.
func SafeIdentifier(s string) string {
	safe := unsafeChars.ReplaceAllString(s, "_")
	if safe == "" {
		return "prj_"
	}
	if safe[0] >= '0' && safe[0] <= '9' {
		safe = "prj_" + safe
	}
	return safe
}

// ImageryTable is the shared point table for a project's imagery records.
func ImageryTable(projectID string) string {
	return "street_imagery_" + SafeIdentifier(projectID)
}

// ImageryLayer is the map-server layer over ImageryTable.
func ImageryLayer(projectID string) string {
	return SafeIdentifier(projectID) + "_street_imagery"
}
