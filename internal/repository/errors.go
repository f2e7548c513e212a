package repository

import (
	"context"
	"errors"

	"premises-geocoder/internal/models"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrAlreadyAssigned is returned when a market in a chain already has a premises.
	ErrAlreadyAssigned = errors.New("repository: market already assigned to a premises")
)

// GeonameTx is the view of the store inside one Stage-2 transaction.
type GeonameTx interface {
	FindGeonameByExternalID(ctx context.Context, geonameID int64) (*models.Geoname, error)
	CreateGeoname(ctx context.Context, g *models.Geoname) error
	LockPremises(ctx context.Context, premisesID int64) (*models.Premises, error)
	SetPremisesGeoname(ctx context.Context, premisesID, geonameID int64) error
	SetGeonamePremises(ctx context.Context, geonameID, premisesID int64) error
}
