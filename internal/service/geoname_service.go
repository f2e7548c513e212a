package service

import (
	"context"
	"errors"
	"fmt"

	"premises-geocoder/internal/geocoder"
	"premises-geocoder/internal/models"
	"premises-geocoder/internal/repository"

	"github.com/rs/zerolog"
)

// AddressGeocoder finds street- or zip-level locations for an address.
type AddressGeocoder interface {
	Geocode(ctx context.Context, loc models.Location, qualities ...string) ([]models.GeocodeResult, error)
}

// PlaceNameService searches populated places by name or coordinate.
type PlaceNameService interface {
	Search(ctx context.Context, q geocoder.PlaceQuery) ([]models.GeonameCandidate, error)
	Reverse(ctx context.Context, at models.LatLng) ([]models.GeonameCandidate, error)
}

// GeonameRepository is the record store used to bind premises to geonames.
type GeonameRepository interface {
	PremisesWithoutGeoname(ctx context.Context) ([]int64, error)
	MarketsOfPremises(ctx context.Context, premisesID int64) ([]models.Market, error)
	WithinTx(ctx context.Context, fn func(tx repository.GeonameTx) error) error
}

// GeonameOptions bound how far the name search may relax.
type GeonameOptions struct {
	MaxFuzzy int
	ZipFuzzy int
}

// DefaultGeonameOptions returns the default relaxation levels.
func DefaultGeonameOptions() GeonameOptions {
	return GeonameOptions{MaxFuzzy: 2, ZipFuzzy: 6}
}

// GeonameSummary counts the outcome of one Stage-2 pass.
type GeonameSummary struct {
	Premises   int `json:"premises"`
	Bound      int `json:"bound"`
	Ambiguous  int `json:"ambiguous"`
	Unmatched  int `json:"unmatched"`
	Violations int `json:"violations"`
}

// GeonameService resolves each premises to a county-level geoname.
type GeonameService struct {
	repo     GeonameRepository
	geocoder AddressGeocoder
	places   PlaceNameService
	opts     GeonameOptions
	log      zerolog.Logger
}

// NewGeonameService creates a new geoname service
func NewGeonameService(repo GeonameRepository, geocoder AddressGeocoder, places PlaceNameService, opts GeonameOptions, logger zerolog.Logger) *GeonameService {
	return &GeonameService{repo: repo, geocoder: geocoder, places: places, opts: opts, log: logger}
}

// AssignGeonames locates every premises that has markets but no geoname.
// Unresolved premises are reported and left for a later pass; provider and
// store failures abort the run.
func (s *GeonameService) AssignGeonames(ctx context.Context) (GeonameSummary, error) {
	var summary GeonameSummary

	ids, err := s.repo.PremisesWithoutGeoname(ctx)
	if err != nil {
		return summary, fmt.Errorf("service: failed to list premises: %w", err)
	}

	for _, id := range ids {
		summary.Premises++
		err := s.LocatePremises(ctx, id)
		switch {
		case err == nil:
			summary.Bound++
		case errors.Is(err, ErrNoCandidate):
			s.log.Warn().Int64("premises_id", id).Msg("no geoname for premises")
			summary.Unmatched++
		case errors.Is(err, ErrAmbiguousMatch):
			s.log.Warn().Int64("premises_id", id).Msg("multiple geonames for premises")
			summary.Ambiguous++
		case errors.Is(err, ErrInvariantViolation):
			s.log.Error().Err(err).Int64("premises_id", id).Msg("premises has already been located")
			summary.Violations++
		default:
			return summary, err
		}
	}

	s.log.Info().
		Int("premises", summary.Premises).
		Int("bound", summary.Bound).
		Int("ambiguous", summary.Ambiguous).
		Int("unmatched", summary.Unmatched).
		Int("violations", summary.Violations).
		Msg("geoname assignment finished")
	return summary, nil
}

// LocatePremises tries the premises' locations in order until one resolves to
// exactly one geoname, then binds it in a single transaction.
func (s *GeonameService) LocatePremises(ctx context.Context, premisesID int64) error {
	markets, err := s.repo.MarketsOfPremises(ctx, premisesID)
	if err != nil {
		return fmt.Errorf("service: failed to fetch markets of premises %d: %w", premisesID, err)
	}

	var res Resolution
	for _, loc := range Locations(markets) {
		res, err = s.Resolve(ctx, premisesID, loc)
		if err != nil {
			return err
		}
		if len(res.Candidates) == 1 {
			break
		}
	}

	switch {
	case len(res.Candidates) == 0:
		return fmt.Errorf("%w %d", ErrNoCandidate, premisesID)
	case len(res.Candidates) > 1:
		return fmt.Errorf("%w %d", ErrAmbiguousMatch, premisesID)
	}

	return s.repo.WithinTx(ctx, func(tx repository.GeonameTx) error {
		g, err := s.storeGeoname(ctx, tx, res.Candidates[0], res.Level)
		if err != nil {
			return err
		}

		p, err := tx.LockPremises(ctx, premisesID)
		if err != nil {
			return fmt.Errorf("service: failed to lock premises %d: %w", premisesID, err)
		}
		if p.GeonameID != nil {
			return fmt.Errorf("%w: premises %d holds geoname %d", ErrInvariantViolation, premisesID, *p.GeonameID)
		}

		switch {
		case g.PremisesID == nil:
			if err := tx.SetGeonamePremises(ctx, g.ID, premisesID); err != nil {
				return err
			}
		case *g.PremisesID != premisesID:
			// TODO: decide whether a county may back-reference several premises; the schema holds only one.
			s.log.Warn().
				Int64("premises_id", premisesID).
				Int64("geoname_id", g.GeonameID).
				Int64("held_by", *g.PremisesID).
				Msg("geoname already refers to another premises")
		}

		return tx.SetPremisesGeoname(ctx, premisesID, g.ID)
	})
}

// storeGeoname reuses the stored geoname with the candidate's external id or
// creates one. Fuzziness is recorded only for relaxed matches.
func (s *GeonameService) storeGeoname(ctx context.Context, tx repository.GeonameTx, c models.GeonameCandidate, level int) (*models.Geoname, error) {
	g, err := tx.FindGeonameByExternalID(ctx, c.GeonameID)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("service: failed to look up geoname %d: %w", c.GeonameID, err)
	}

	g = &models.Geoname{
		GeonameID:  c.GeonameID,
		AdminCode1: c.AdminCode1,
		AdminCode2: c.AdminCode2,
	}
	if level > 0 {
		fuzzy := geocoder.Fuzziness(level)
		g.Fuzzy = &fuzzy
	}
	if err := tx.CreateGeoname(ctx, g); err != nil {
		return nil, fmt.Errorf("service: failed to store geoname %d: %w", c.GeonameID, err)
	}
	return g, nil
}
