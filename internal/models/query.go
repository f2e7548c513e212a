package models

// Presence constrains whether a market field is filled in.
type Presence int

const (
	Any Presence = iota
	Present
	Absent
)

// Matches reports whether value satisfies p.
func (p Presence) Matches(value string) bool {
	switch p {
	case Present:
		return value != ""
	case Absent:
		return value == ""
	}
	return true
}

// MarketQuery selects duplicate candidates for a market. State always filters;
// City filters only when ByCity is set. Results come back in id order.
type MarketQuery struct {
	State   string
	City    string
	ByCity  bool
	Exclude []int64
	Address Presence
	PO      Presence
}

// Match reports whether m satisfies q.
func (q MarketQuery) Match(m Market) bool {
	if m.State != q.State {
		return false
	}
	if q.ByCity && m.City != q.City {
		return false
	}
	for _, id := range q.Exclude {
		if id == m.ID {
			return false
		}
	}
	return q.Address.Matches(m.Address) && q.PO.Matches(m.PO)
}

// Stats summarizes outstanding resolution work.
type Stats struct {
	Markets                int `json:"markets"`
	MarketsWithoutPremises int `json:"markets_without_premises"`
	Premises               int `json:"premises"`
	PremisesWithoutGeoname int `json:"premises_without_geoname"`
	Geonames               int `json:"geonames"`
}
