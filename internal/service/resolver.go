package service

import (
	"context"
	"strings"

	"premises-geocoder/internal/geocoder"
	"premises-geocoder/internal/models"

	"github.com/rs/zerolog"
)

// Resolution is the outcome of geocoding one location. Level is the
// fuzziness level of the name search that produced the candidates; it is
// zero for exact name matches and coordinate lookups.
type Resolution struct {
	Candidates []models.GeonameCandidate
	Level      int
}

// Resolve runs the geocode cascade for one location. Each strategy runs only
// while no candidate has been found:
//
//  1. street geocode with a single hit, reverse looked up by coordinate
//  2. city back-filled from the geocoder when missing
//  3. exact name search at fuzziness 0 through MaxFuzzy
//  4. one exact retry with city abbreviations spelled out
//  5. state-wide search at ZipFuzzy confirmed through the zip code
//
// Several candidates are narrowed down by cross-checking counties with the
// geocoder. Provider errors are returned as is.
func (s *GeonameService) Resolve(ctx context.Context, premisesID int64, loc models.Location) (Resolution, error) {
	logger := s.log.With().Int64("premises_id", premisesID).Logger()
	var res Resolution

	if loc.Address != "" {
		results, err := s.geocoder.Geocode(ctx, streetOf(loc, true), geocoder.StreetQualities...)
		if err != nil {
			return res, err
		}
		if len(results) == 1 {
			if res.Candidates, err = s.places.Reverse(ctx, results[0].LatLng); err != nil {
				return res, err
			}
		}
	}

	if len(res.Candidates) == 0 && loc.City == "" {
		city, err := s.backfillCity(ctx, loc, logger)
		if err != nil {
			return res, err
		}
		loc.City = city
	}

	if len(res.Candidates) == 0 && loc.City != "" {
		for level := 0; level <= s.opts.MaxFuzzy; level++ {
			candidates, err := s.places.Search(ctx, geocoder.PlaceQuery{Name: loc.City, State: loc.State, Level: level})
			if err != nil {
				return res, err
			}
			if len(candidates) > 0 {
				res = Resolution{Candidates: candidates, Level: level}
				break
			}
		}
	}

	if len(res.Candidates) == 0 && loc.City != "" {
		if city, changed := ExpandCityAbbreviations(loc.City); changed {
			loc.City = city
			candidates, err := s.places.Search(ctx, geocoder.PlaceQuery{Name: city, State: loc.State})
			if err != nil {
				return res, err
			}
			res = Resolution{Candidates: candidates}
		}
	}

	if len(res.Candidates) == 0 && loc.Zip != "" {
		var err error
		if res, err = s.zipFallback(ctx, loc); err != nil {
			return res, err
		}
	}

	if len(res.Candidates) > 1 {
		match, err := s.disambiguate(ctx, loc, res.Candidates)
		if err != nil {
			return res, err
		}
		if match != nil {
			res.Candidates = []models.GeonameCandidate{*match}
		} else {
			logger.Warn().Int("candidates", len(res.Candidates)).Msg("no match between place names and geocoder")
		}
	}

	return res, nil
}

// backfillCity asks the geocoder for the city of a location that has none.
// It returns "" unless the geocoder answers with exactly one location.
func (s *GeonameService) backfillCity(ctx context.Context, loc models.Location, logger zerolog.Logger) (string, error) {
	var results []models.GeocodeResult
	var err error
	switch {
	case loc.Zip != "":
		results, err = s.geocoder.Geocode(ctx, models.Location{Zip: loc.Zip, State: loc.State}, geocoder.QualityZip)
	case loc.Address != "":
		results, err = s.geocoder.Geocode(ctx, streetOf(loc, true), geocoder.StreetQualities...)
	default:
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if len(results) != 1 {
		logger.Warn().Int("results", len(results)).Msg("geocoder did not return a single location; city unknown")
		return "", nil
	}
	return results[0].City, nil
}

// zipFallback searches the whole state at the loosest level and keeps the
// place whose county the geocoder confirms for the zip code. Failing that, a
// single unrelated geocoder location is reverse looked up instead.
func (s *GeonameService) zipFallback(ctx context.Context, loc models.Location) (Resolution, error) {
	candidates, err := s.places.Search(ctx, geocoder.PlaceQuery{State: loc.State, Level: s.opts.ZipFuzzy})
	if err != nil {
		return Resolution{}, err
	}
	results, err := s.geocoder.Geocode(ctx, models.Location{Zip: loc.Zip}, geocoder.QualityZip)
	if err != nil {
		return Resolution{}, err
	}

	if match := crossCheck(results, candidates); match != nil {
		return Resolution{Candidates: []models.GeonameCandidate{*match}, Level: s.opts.ZipFuzzy}, nil
	}
	if len(results) == 1 {
		reversed, err := s.places.Reverse(ctx, results[0].LatLng)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Candidates: reversed}, nil
	}
	return Resolution{}, nil
}

// disambiguate cross-checks candidates against the geocoder by zip, then by
// full street address, then by street and state only.
func (s *GeonameService) disambiguate(ctx context.Context, loc models.Location, candidates []models.GeonameCandidate) (*models.GeonameCandidate, error) {
	type check struct {
		loc       models.Location
		qualities []string
	}
	var checks []check
	if loc.Zip != "" {
		checks = append(checks, check{models.Location{Zip: loc.Zip}, []string{geocoder.QualityZip}})
	}
	if loc.Address != "" {
		checks = append(checks,
			check{streetOf(loc, true), geocoder.StreetQualities},
			check{streetOf(loc, false), geocoder.StreetQualities},
		)
	}

	for _, c := range checks {
		results, err := s.geocoder.Geocode(ctx, c.loc, c.qualities...)
		if err != nil {
			return nil, err
		}
		if match := crossCheck(results, candidates); match != nil {
			return match, nil
		}
	}
	return nil, nil
}

// crossCheck returns the candidate lying in the county of a geocoder result,
// trying results in order. Several places in one county all resolve to the
// same stored geoname, so a result isolates a candidate when every candidate
// named after its county shares the same state and county codes, not only
// when exactly one candidate matches. The first of them is returned.
func crossCheck(results []models.GeocodeResult, candidates []models.GeonameCandidate) *models.GeonameCandidate {
	for _, r := range results {
		county := strings.ToLower(strings.TrimSpace(r.County))
		if county == "" {
			continue
		}

		var match *models.GeonameCandidate
		isolated := true
		for i := range candidates {
			if !strings.Contains(strings.ToLower(candidates[i].AdminName2), county) {
				continue
			}
			if match == nil {
				match = &candidates[i]
				continue
			}
			if match.AdminCode1 != candidates[i].AdminCode1 || match.AdminCode2 != candidates[i].AdminCode2 {
				isolated = false
				break
			}
		}
		if match != nil && isolated {
			c := *match
			return &c
		}
	}
	return nil
}

func streetOf(loc models.Location, withCity bool) models.Location {
	street := models.Location{Address: loc.Address, State: loc.State}
	if withCity {
		street.City = loc.City
	}
	return street
}
