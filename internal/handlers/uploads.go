package handlers

import (
	"context"
	"net/http"

	"geo-ingest-backend/internal/middleware"
	"geo-ingest-backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UploadCoordinator is the part of the job coordinator exposed over HTTP.
type UploadCoordinator interface {
	RequestUploads(ctx context.Context, userID string, req models.RequestUploadsRequest) (*models.RequestUploadsResponse, error)
	GetJobStatus(ctx context.Context, id uuid.UUID) (*models.JobStatusResponse, error)
}

type UploadsHandler struct {
	coordinator UploadCoordinator
}

func NewUploadsHandler(coordinator UploadCoordinator) *UploadsHandler {
	return &UploadsHandler{coordinator: coordinator}
}

// RequestUploads godoc
// @Summary     Request upload grants
// @Description Classifies each file, issues a signed upload URL per file and starts a job that waits for the uploads and ingests them. Upload the bytes with PUT to each grant's upload_url.
// @Tags        uploads
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.RequestUploadsRequest true "Files to upload"
// @Success     202 {object} models.RequestUploadsResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /uploads [post]
func (h *UploadsHandler) RequestUploads(c *gin.Context) {
	var req models.RequestUploadsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	resp, err := h.coordinator.RequestUploads(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, "request uploads", err)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

// GetJobStatus godoc
// @Summary     Get upload job status
// @Description Returns the job status with per-file outcomes and processed/failed counts. A job is completed when at least one file succeeded.
// @Tags        uploads
// @Produce     json
// @Security    Bearer
// @Param       job_id path string true "Job ID"
// @Success     200 {object} models.JobStatusResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /jobs/{job_id} [get]
func (h *UploadsHandler) GetJobStatus(c *gin.Context) {
	id, ok := paramUUID(c, "job_id")
	if !ok {
		return
	}
	status, err := h.coordinator.GetJobStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, "get job status", err)
		return
	}
	c.JSON(http.StatusOK, status)
}
