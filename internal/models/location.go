package models

// Location is one (address, city, state, zip) tuple taken from a market and fed to the geocode cascade.
type Location struct {
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`
}

// LatLng is a coordinate pair returned by the address geocoder.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GeocodeResult is a single location returned by the address geocoder.
type GeocodeResult struct {
	Quality    string `json:"geocodeQuality"`
	City       string `json:"adminArea5"`
	County     string `json:"adminArea4"`
	State      string `json:"adminArea3"`
	PostalCode string `json:"postalCode"`
	LatLng     LatLng `json:"latLng"`
}

// GeonameCandidate is a populated place returned by the place name service.
type GeonameCandidate struct {
	GeonameID  int64  `json:"geonameId"`
	Name       string `json:"name"`
	AdminCode1 string `json:"adminCode1"`
	AdminCode2 string `json:"adminCode2"`
	AdminName2 string `json:"adminName2"`
}
