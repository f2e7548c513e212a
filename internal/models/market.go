package models

// SourceType names the dataset a market record was imported from.
type SourceType string

const (
	SourceAMS   SourceType = "ams"
	SourceAPHIS SourceType = "aphis"
	SourceGIPSA SourceType = "gipsa"
	SourceLMA   SourceType = "lma"
)

// HasRowGroup reports whether imports from this source split one logical row into several records.
func (s SourceType) HasRowGroup() bool {
	switch s {
	case SourceAMS, SourceAPHIS, SourceGIPSA:
		return true
	}
	return false
}

// Valid reports whether s is one of the known market sources.
func (s SourceType) Valid() bool {
	return s.HasRowGroup() || s == SourceLMA
}

// Market is one observation of a livestock market's location from one source.
// Empty strings stand for missing values.
type Market struct {
	ID         int64      `json:"id"`
	Source     SourceType `json:"source"`
	SourceID   string     `json:"source_id,omitempty"`
	Row        int64      `json:"row,omitempty"`
	Name       string     `json:"name,omitempty"`
	Address    string     `json:"address,omitempty"`
	PO         string     `json:"po,omitempty"`
	City       string     `json:"city,omitempty"`
	State      string     `json:"state,omitempty"`
	Zip        string     `json:"zip,omitempty"`
	ZipExt     string     `json:"zip_ext,omitempty"`
	PremisesID *int64     `json:"premises_id,omitempty"`
}

// RowGroup returns the import row group of the market, if its source has one.
func (m Market) RowGroup() (int64, bool) {
	if !m.Source.HasRowGroup() || m.Row == 0 {
		return 0, false
	}
	return m.Row, true
}

// Location returns the geocodable part of the market.
func (m Market) Location() Location {
	return Location{Address: m.Address, City: m.City, State: m.State, Zip: m.Zip}
}

// Premises is the canonical physical location shared by duplicate markets.
type Premises struct {
	ID        int64    `json:"id"`
	GeonameID *int64   `json:"geoname_id,omitempty"`
	Geoname   *Geoname `json:"geoname,omitempty"`
	Markets   []Market `json:"markets,omitempty"`
}

// Geoname is a county-level place a premises resolved to.
type Geoname struct {
	ID         int64    `json:"id"`
	GeonameID  int64    `json:"geoname_id"`
	AdminCode1 string   `json:"admin_code1"`
	AdminCode2 string   `json:"admin_code2"`
	Fuzzy      *float64 `json:"fuzzy,omitempty"`
	PremisesID *int64   `json:"premises_id,omitempty"`
}
