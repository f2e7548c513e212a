package service

import (
	"context"
	"fmt"

	"premises-geocoder/internal/models"
)

// InspectionService exposes resolution results read-only.
type InspectionService struct {
	repo InspectionRepository
}

// InspectionRepository interface for dependency injection
type InspectionRepository interface {
	GetPremises(ctx context.Context, id int64) (*models.Premises, error)
	Stats(ctx context.Context) (models.Stats, error)
}

// NewInspectionService creates a new inspection service
func NewInspectionService(repo InspectionRepository) *InspectionService {
	return &InspectionService{repo: repo}
}

// Premises returns a premises with its markets and geoname.
func (s *InspectionService) Premises(ctx context.Context, id int64) (*models.Premises, error) {
	if id <= 0 {
		return nil, fmt.Errorf("service: invalid premises id: %d", id)
	}

	premises, err := s.repo.GetPremises(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get premises %d: %w", id, err)
	}

	return premises, nil
}

// Stats counts records and outstanding work in both stages.
func (s *InspectionService) Stats(ctx context.Context) (models.Stats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return models.Stats{}, fmt.Errorf("service: failed to count records: %w", err)
	}

	return stats, nil
}
