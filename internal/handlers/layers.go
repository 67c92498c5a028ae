package handlers

import (
	"context"
	"net/http"
	"strconv"

	"geo-ingest-backend/internal/middleware"
	"geo-ingest-backend/internal/models"
	"geo-ingest-backend/internal/repository"
	"geo-ingest-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LayerOperations is implemented by services.LayerService.
type LayerOperations interface {
	GetLayer(ctx context.Context, id uuid.UUID) (*models.Layer, error)
	ListLayers(ctx context.Context, f repository.LayerFilter) ([]models.Layer, error)
	DeleteLayer(ctx context.Context, id uuid.UUID) (*models.Layer, error)
	RestoreLayer(ctx context.Context, id uuid.UUID) (*models.Layer, error)
	CreateEmptyLayer(ctx context.Context, req models.CreateEmptyLayerRequest, userID string) (*models.Layer, error)
	Republish(ctx context.Context, id uuid.UUID) (*models.Layer, error)
	MergeLayers(ctx context.Context, ids []uuid.UUID, name, userID string) (*models.Layer, error)
	SplitLayerByAttribute(ctx context.Context, id uuid.UUID, attribute string, value interface{}, name, userID string) ([]models.Layer, error)
	FilterFeatures(ctx context.Context, f services.FeatureFilter) ([]services.Match, error)
}

type LayersHandler struct {
	layers LayerOperations
}

func NewLayersHandler(layers LayerOperations) *LayersHandler {
	return &LayersHandler{layers: layers}
}

// ListLayers godoc
// @Summary     List layers
// @Description Lists active layers, newest first. Soft-deleted layers are only included with include_deleted=true.
// @Tags        layers
// @Produce     json
// @Security    Bearer
// @Param       company_id      query string false "Company ID"
// @Param       project_id      query string false "Project ID"
// @Param       kind            query string false "vector, raster or terrain"
// @Param       include_deleted query bool   false "Include soft-deleted layers"
// @Success     200 {object} models.LayerListResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /layers [get]
func (h *LayersHandler) ListLayers(c *gin.Context) {
	includeDeleted, _ := strconv.ParseBool(c.Query("include_deleted"))
	layers, err := h.layers.ListLayers(c.Request.Context(), repository.LayerFilter{
		CompanyID:       c.Query("company_id"),
		ProjectID:       c.Query("project_id"),
		Kind:            c.Query("kind"),
		IncludeInactive: includeDeleted,
	})
	if err != nil {
		respondError(c, "list layers", err)
		return
	}
	c.JSON(http.StatusOK, models.LayerListResponse{Layers: layers, Count: len(layers)})
}

// GetLayer godoc
// @Summary     Get a layer
// @Tags        layers
// @Produce     json
// @Security    Bearer
// @Param       layer_id path string true "Layer ID"
// @Success     200 {object} models.Layer
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /layers/{layer_id} [get]
func (h *LayersHandler) GetLayer(c *gin.Context) {
	id, ok := paramUUID(c, "layer_id")
	if !ok {
		return
	}
	layer, err := h.layers.GetLayer(c.Request.Context(), id)
	if err != nil {
		respondError(c, "get layer", err)
		return
	}
	c.JSON(http.StatusOK, layer)
}

// DeleteLayer godoc
// @Summary     Delete a layer
// @Description Soft-deletes the layer. It disappears from listings at once but stays published on the map server for the grace window, during which it can be restored.
// @Tags        layers
// @Produce     json
// @Security    Bearer
// @Param       layer_id path string true "Layer ID"
// @Success     200 {object} models.Layer
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /layers/{layer_id} [delete]
func (h *LayersHandler) DeleteLayer(c *gin.Context) {
	id, ok := paramUUID(c, "layer_id")
	if !ok {
		return
	}
	layer, err := h.layers.DeleteLayer(c.Request.Context(), id)
	if err != nil {
		respondError(c, "delete layer", err)
		return
	}
	c.JSON(http.StatusOK, layer)
}

// RestoreLayer godoc
// @Summary     Restore a deleted layer
// @Tags        layers
// @Produce     json
// @Security    Bearer
// @Param       layer_id path string true "Layer ID"
// @Success     200 {object} models.Layer
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /layers/{layer_id}/restore [post]
func (h *LayersHandler) RestoreLayer(c *gin.Context) {
	id, ok := paramUUID(c, "layer_id")
	if !ok {
		return
	}
	layer, err := h.layers.RestoreLayer(c.Request.Context(), id)
	if err != nil {
		respondError(c, "restore layer", err)
		return
	}
	c.JSON(http.StatusOK, layer)
}

// RepublishLayer godoc
// @Summary     Publish a layer again
// @Description Reruns map-server publication. The response carries the resulting publish_status and publish_error.
// @Tags        layers
// @Produce     json
// @Security    Bearer
// @Param       layer_id path string true "Layer ID"
// @Success     200 {object} models.Layer
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /layers/{layer_id}/publish [post]
func (h *LayersHandler) RepublishLayer(c *gin.Context) {
	id, ok := paramUUID(c, "layer_id")
	if !ok {
		return
	}
	layer, err := h.layers.Republish(c.Request.Context(), id)
	if err != nil {
		respondError(c, "republish layer", err)
		return
	}
	c.JSON(http.StatusOK, layer)
}

// CreateEmptyLayer godoc
// @Summary     Create an empty vector layer
// @Tags        layers
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.CreateEmptyLayerRequest true "Layer definition"
// @Success     201 {object} models.Layer
// @Failure     400 {object} models.ErrorResponse
// @Router      /layers [post]
func (h *LayersHandler) CreateEmptyLayer(c *gin.Context) {
	var req models.CreateEmptyLayerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}
	layer, err := h.layers.CreateEmptyLayer(c.Request.Context(), req, middleware.UserID(c))
	if err != nil {
		respondError(c, "create layer", err)
		return
	}
	c.JSON(http.StatusCreated, layer)
}

// MergeLayers godoc
// @Summary     Merge vector layers
// @Description Copies the features of two or more vector layers of one project, all of the same geometry type, into a new layer.
// @Tags        layers
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.MergeLayersRequest true "Layers to merge"
// @Success     201 {object} models.Layer
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /layers/merge [post]
func (h *LayersHandler) MergeLayers(c *gin.Context) {
	var req models.MergeLayersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}
	ids, err := parseUUIDs(req.LayerIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid layer_ids", Message: err.Error()})
		return
	}
	layer, err := h.layers.MergeLayers(c.Request.Context(), ids, req.Name, middleware.UserID(c))
	if err != nil {
		respondError(c, "merge layers", err)
		return
	}
	c.JSON(http.StatusCreated, layer)
}

// SplitLayer godoc
// @Summary     Split a vector layer by attribute
// @Description Creates one new layer per distinct value of the attribute, or a single layer of the features equal to value when it is given.
// @Tags        layers
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       layer_id path string true "Layer ID"
// @Param       request body models.SplitLayerRequest true "Split attribute"
// @Success     201 {object} models.SplitLayerResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /layers/{layer_id}/split [post]
func (h *LayersHandler) SplitLayer(c *gin.Context) {
	id, ok := paramUUID(c, "layer_id")
	if !ok {
		return
	}
	var req models.SplitLayerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}
	layers, err := h.layers.SplitLayerByAttribute(c.Request.Context(), id, req.Attribute, req.Value, req.Name, middleware.UserID(c))
	if err != nil {
		respondError(c, "split layer", err)
		return
	}
	c.JSON(http.StatusCreated, models.SplitLayerResponse{Layers: layers})
}

// FilterFeatures godoc
// @Summary     Filter features
// @Description Returns features of active vector layers matching the layer, bounding box and attribute filters. With format=geojson the result is a FeatureCollection whose properties include layer_name, layer_id and project_id.
// @Tags        features
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.FilterFeaturesRequest true "Filters"
// @Success     200 {object} models.FeatureListResponse
// @Success     200 {object} models.FeatureCollection
// @Failure     400 {object} models.ErrorResponse
// @Router      /features/filter [post]
func (h *LayersHandler) FilterFeatures(c *gin.Context) {
	var req models.FilterFeaturesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}
	ids, err := parseUUIDs(req.LayerIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid layer_ids", Message: err.Error()})
		return
	}
	matches, err := h.layers.FilterFeatures(c.Request.Context(), services.FeatureFilter{
		CompanyID:  req.CompanyID,
		ProjectID:  req.ProjectID,
		LayerName:  req.LayerName,
		LayerIDs:   ids,
		BBox:       req.BBox,
		Attributes: req.Attributes,
	})
	if err != nil {
		respondError(c, "filter features", err)
		return
	}

	if req.Format == "geojson" {
		c.JSON(http.StatusOK, services.FeatureCollection(matches))
		return
	}
	features := make([]models.Feature, len(matches))
	for i, m := range matches {
		features[i] = m.Feature
	}
	c.JSON(http.StatusOK, models.FeatureListResponse{Features: features, Count: len(features)})
}
