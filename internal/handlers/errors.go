package handlers

import (
	"errors"
	"log"
	"net/http"

	"geo-ingest-backend/internal/jobs"
	"geo-ingest-backend/internal/lifecycle"
	"geo-ingest-backend/internal/models"
	"geo-ingest-backend/internal/processors"
	"geo-ingest-backend/internal/repository"
	"geo-ingest-backend/internal/services"
	"geo-ingest-backend/internal/supabase"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var badRequest = []error{
	jobs.ErrNoFiles,
	jobs.ErrMissingScope,
	jobs.ErrUnsupportedFormat,
	supabase.ErrInvalidSize,
	services.ErrGeometryMismatch,
	services.ErrProjectMismatch,
	services.ErrNotVectorLayer,
	services.ErrTooFewLayers,
	services.ErrAttributeMissing,
	services.ErrNoMatchingFeatures,
	services.ErrInvalidGeometryType,
	services.ErrInvalidBoundingBox,
	processors.ErrNoValidFeatures,
	processors.ErrNotRepublishable,
}

var conflict = []error{
	services.ErrLayerInactive,
	lifecycle.ErrAlreadyDeleted,
	lifecycle.ErrNotDeleted,
	lifecycle.ErrGraceExpired,
}

// respondError maps domain errors to a status code. Anything unrecognised
// is a 500 and gets logged.
func respondError(c *gin.Context, action string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case isAny(err, badRequest):
		status = http.StatusBadRequest
	case isAny(err, conflict):
		status = http.StatusConflict
	default:
		log.Printf("Failed to %s: %v", action, err)
	}
	c.JSON(status, models.ErrorResponse{Error: "failed to " + action, Message: err.Error()})
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// paramUUID parses a path parameter, answering 400 when it is not a UUID.
func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid " + name, Message: err.Error()})
		return uuid.Nil, false
	}
	return id, true
}

func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
