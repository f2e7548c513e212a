package geocoder

import (
	"context"
	"fmt"
	"slices"
	"time"

	"premises-geocoder/internal/models"

	"github.com/go-resty/resty/v2"
)

// Geocode quality tiers reported by MapQuest.
const (
	QualityAddress = "ADDRESS"
	QualityStreet  = "STREET"
	QualityZip     = "ZIP"
)

// StreetQualities are the tiers accepted for street-level lookups.
var StreetQualities = []string{QualityAddress, QualityStreet}

// MapQuestClient is the address geocoder.
type MapQuestClient struct {
	http *resty.Client
	key  string
}

type mapQuestResponse struct {
	Info struct {
		StatusCode int      `json:"statuscode"`
		Messages   []string `json:"messages"`
	} `json:"info"`
	Results []struct {
		Locations []models.GeocodeResult `json:"locations"`
	} `json:"results"`
}

// NewMapQuestClient creates a client for the MapQuest geocoding API at baseURL.
func NewMapQuestClient(baseURL, key string, timeout time.Duration) *MapQuestClient {
	httpClient := resty.New()
	httpClient.SetBaseURL(baseURL)
	httpClient.SetTimeout(timeout)
	httpClient.SetHeader("Accept", "application/json")

	return &MapQuestClient{http: httpClient, key: key}
}

// Geocode looks up loc and returns the locations of the first result whose
// quality is one of qualities, in provider order.
func (c *MapQuestClient) Geocode(ctx context.Context, loc models.Location, qualities ...string) ([]models.GeocodeResult, error) {
	params := map[string]string{
		"key":     c.key,
		"country": "US",
	}
	setIfPresent(params, "street", loc.Address)
	setIfPresent(params, "city", loc.City)
	setIfPresent(params, "state", loc.State)
	setIfPresent(params, "postalCode", loc.Zip)

	var out mapQuestResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		ForceContentType("application/json").
		SetResult(&out).
		Get("/geocoding/v1/address")
	if err != nil {
		return nil, fmt.Errorf("geocoder: mapquest request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("geocoder: mapquest returned status %d", resp.StatusCode())
	}
	if out.Info.StatusCode != 0 {
		return nil, fmt.Errorf("geocoder: mapquest status %d: %v", out.Info.StatusCode, out.Info.Messages)
	}
	if len(out.Results) == 0 {
		return nil, fmt.Errorf("geocoder: mapquest response has no results")
	}

	var results []models.GeocodeResult
	for _, loc := range out.Results[0].Locations {
		if slices.Contains(qualities, loc.Quality) {
			results = append(results, loc)
		}
	}
	return results, nil
}

func setIfPresent(params map[string]string, key, value string) {
	if value != "" {
		params[key] = value
	}
}
