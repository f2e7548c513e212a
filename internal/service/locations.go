package service

import (
	"cmp"
	"slices"

	"premises-geocoder/internal/models"
)

// Locations returns the geocodable tuples of a premises' markets, street
// addresses first: markets without a box address come before those with one
// (box addresses ascending), then markets with an address before those without
// (addresses descending).
func Locations(markets []models.Market) []models.Location {
	var usable []models.Market
	for _, m := range markets {
		if m.Address != "" || m.City != "" || m.Zip != "" {
			usable = append(usable, m)
		}
	}

	slices.SortStableFunc(usable, func(a, b models.Market) int {
		if c := boolCompare(a.PO != "", b.PO != ""); c != 0 {
			return c
		}
		if c := cmp.Compare(a.PO, b.PO); c != 0 {
			return c
		}
		if c := boolCompare(b.Address != "", a.Address != ""); c != 0 {
			return c
		}
		return cmp.Compare(b.Address, a.Address)
	})

	locations := make([]models.Location, len(usable))
	for i, m := range usable {
		locations[i] = m.Location()
	}
	return locations
}

// boolCompare orders false before true.
func boolCompare(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}
