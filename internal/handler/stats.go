package handler

import (
	"context"
	"net/http"

	"premises-geocoder/internal/models"

	"github.com/gin-gonic/gin"
)

// StatsHandler reports resolution progress
type StatsHandler struct {
	service StatsService
}

// Service interface for dependency injection
type StatsService interface {
	Stats(context.Context) (models.Stats, error)
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(svc StatsService) *StatsHandler {
	return &StatsHandler{service: svc}
}

// Stats handles GET /stats requests
func (h *StatsHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, stats)
}
