package handlers

import (
	"context"
	"net/http"
	"time"

	"geo-ingest-backend/internal/models"
	"github.com/gin-gonic/gin"
)

// HealthHandler reports liveness, and readiness of the catalog database when
// a ping function is set.
type HealthHandler struct {
	ping func(ctx context.Context) error
}

func NewHealthHandler(ping func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{ping: ping}
}

// Health godoc
// @Summary     Health check
// @Description Returns the health status of the API and its catalog database
// @Tags        health
// @Accept      json
// @Produce     json
// @Success     200 {object} models.HealthResponse
// @Failure     503 {object} models.ErrorResponse
// @Router      /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
				Error:   "database unavailable",
				Message: err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, models.HealthResponse{Status: "ok"})
}
