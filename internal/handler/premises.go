package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"premises-geocoder/internal/models"
	"premises-geocoder/internal/repository"

	"github.com/gin-gonic/gin"
)

// PremisesHandler handles premises lookups
type PremisesHandler struct {
	service PremisesService
}

// Service interface for dependency injection
type PremisesService interface {
	Premises(context.Context, int64) (*models.Premises, error)
}

// NewPremisesHandler creates a new premises handler
func NewPremisesHandler(svc PremisesService) *PremisesHandler {
	return &PremisesHandler{service: svc}
}

// Premises handles GET /premises/:id requests
func (h *PremisesHandler) Premises(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid premises id"})
		return
	}

	premises, err := h.service.Premises(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "premises not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, premises)
}
