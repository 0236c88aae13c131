// Package geocode is the thin client for the external geocoding endpoint
// (Google-geocoding-shaped JSON). Address building, caching, bounding-box
// validation and fallback live in internal/geocode.
package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/blaulichtkarte/blaulicht-cli/internal/resilience"
)

// Result is one geocoding hit.
type Result struct {
	Lat       float64
	Lon       float64
	Precision string // rooftop | range | center | approximate
	Matched   bool
}

// Client resolves a one-line address to coordinates.
type Client interface {
	Geocode(ctx context.Context, address string) (*Result, error)
}

// HTTPClient calls the provider endpoint with an API key.
type HTTPClient struct {
	baseURL string
	key     string
	http    *http.Client
}

// NewHTTPClient creates a provider client.
func NewHTTPClient(baseURL, key string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		key:     key,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type providerResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
			LocationType string `json:"location_type"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves address. A clean "no result" answer returns
// Matched=false without error; HTTP-level failures return a StatusError so
// the caller's retry ladder can classify them.
func (c *HTTPClient) Geocode(ctx context.Context, address string) (*Result, error) {
	if c.key == "" {
		return nil, eris.New("geocode: api key not configured")
	}

	params := url.Values{
		"address": {address},
		"key":     {c.key},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.NewStatusError(
			eris.Errorf("geocode: provider returned status %d", resp.StatusCode),
			resp.StatusCode,
		)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read body")
	}

	var parsed providerResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "geocode: parse response")
	}

	switch parsed.Status {
	case "OK":
	case "ZERO_RESULTS":
		return &Result{Matched: false}, nil
	case "OVER_QUERY_LIMIT":
		return nil, resilience.NewStatusError(eris.New("geocode: over query limit"), http.StatusTooManyRequests)
	default:
		return nil, eris.Errorf("geocode: provider status %q", parsed.Status)
	}
	if len(parsed.Results) == 0 {
		return &Result{Matched: false}, nil
	}

	top := parsed.Results[0]
	return &Result{
		Lat:       top.Geometry.Location.Lat,
		Lon:       top.Geometry.Location.Lng,
		Precision: mapLocationType(top.Geometry.LocationType),
		Matched:   true,
	}, nil
}

// mapLocationType maps the provider's precision to the internal enum.
func mapLocationType(locType string) string {
	switch strings.ToUpper(locType) {
	case "ROOFTOP":
		return "rooftop"
	case "RANGE_INTERPOLATED":
		return "range"
	case "GEOMETRIC_CENTER":
		return "center"
	default:
		return "approximate"
	}
}
