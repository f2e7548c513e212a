package service

import "errors"

var (
	// ErrAmbiguousMatch means several geonames survived disambiguation.
	ErrAmbiguousMatch = errors.New("service: multiple geonames for premises")
	// ErrNoCandidate means the geocode cascade found no geoname at all.
	ErrNoCandidate = errors.New("service: no geoname for premises")
	// ErrInvariantViolation means a premises that already has a geoname was about to be bound again.
	ErrInvariantViolation = errors.New("service: premises has already been located")
)
