package geocoder

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"premises-geocoder/internal/models"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// PlaceQuery is a forward search against the place name service.
// An empty Name searches the whole state.
type PlaceQuery struct {
	Name  string
	State string
	Level int
}

// Fuzziness converts a relaxation level (0 is exact) into the GeoNames fuzzy parameter.
func Fuzziness(level int) float64 {
	return float64(10-level) / 10
}

// GeoNamesClient is the place name service. Calls are spaced by a minimum interval.
type GeoNamesClient struct {
	http *resty.Client
	user string
}

type geoNamesResponse struct {
	Geonames []models.GeonameCandidate `json:"geonames"`
	Status   *struct {
		Message string `json:"message"`
		Value   int    `json:"value"`
	} `json:"status"`
}

// NewGeoNamesClient creates a client for the GeoNames web services at baseURL.
func NewGeoNamesClient(baseURL, user string, minInterval, timeout time.Duration) *GeoNamesClient {
	httpClient := resty.New()
	httpClient.SetBaseURL(baseURL)
	httpClient.SetTimeout(timeout)
	httpClient.SetHeader("Accept", "application/json")

	// burst of one keeps consecutive calls at least minInterval apart
	limiter := rate.NewLimiter(rate.Every(minInterval), 1)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})

	return &GeoNamesClient{http: httpClient, user: user}
}

// Search finds populated places in North America by exact name and state.
func (c *GeoNamesClient) Search(ctx context.Context, q PlaceQuery) ([]models.GeonameCandidate, error) {
	params := map[string]string{
		"adminCode1":    q.State,
		"fuzzy":         strconv.FormatFloat(Fuzziness(q.Level), 'f', 1, 64),
		"style":         "full",
		"username":      c.user,
		"featureClass":  "P",
		"continentCode": "NA",
	}
	setIfPresent(params, "name_equals", q.Name)

	return c.get(ctx, "/searchJSON", params)
}

// Reverse finds the populated place nearest to a coordinate.
func (c *GeoNamesClient) Reverse(ctx context.Context, at models.LatLng) ([]models.GeonameCandidate, error) {
	params := map[string]string{
		"lat":      strconv.FormatFloat(at.Lat, 'f', -1, 64),
		"lng":      strconv.FormatFloat(at.Lng, 'f', -1, 64),
		"style":    "full",
		"username": c.user,
	}

	return c.get(ctx, "/findNearbyPlaceNameJSON", params)
}

func (c *GeoNamesClient) get(ctx context.Context, path string, params map[string]string) ([]models.GeonameCandidate, error) {
	var out geoNamesResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		ForceContentType("application/json").
		SetResult(&out).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("geocoder: geonames request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("geocoder: geonames returned status %d", resp.StatusCode())
	}
	if out.Status != nil {
		return nil, fmt.Errorf("geocoder: geonames error %d: %s", out.Status.Value, out.Status.Message)
	}

	// only places inside a US county
	var candidates []models.GeonameCandidate
	for _, g := range out.Geonames {
		if g.AdminCode2 != "" && models.IsStateCode(g.AdminCode1) {
			candidates = append(candidates, g)
		}
	}
	return candidates, nil
}
