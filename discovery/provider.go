// Package discovery finds businesses to call. It wraps the Google Geocoding
// and Places APIs: a free-text location is geocoded, nearby businesses are
// listed, and each phone number is resolved from place details.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Error is a business discovery failure.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("discovery %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Business is one discovered business.
type Business struct {
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Phone   string  `json:"phone"`
}

// DefaultRadius is the default search radius in meters.
const DefaultRadius = 2000

// Provider queries the Google Maps Platform.
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option configures the Provider.
type Option func(*options)

type options struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// WithAPIKey sets the Google Maps Platform key.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.apiKey = key
	}
}

// WithBaseURL overrides the API base URL (tests).
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// New creates a discovery provider.
func New(opts ...Option) (*Provider, error) {
	cfg := &options{
		baseURL: "https://maps.googleapis.com/maps/api",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	apiKey := cfg.apiKey
	if apiKey == "" {
		apiKey = os.Getenv("PLACES_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("PLACES_API_KEY is required")
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &Provider{
		apiKey:     apiKey,
		baseURL:    cfg.baseURL,
		httpClient: httpClient,
	}, nil
}

// Geocode resolves a free-text location into coordinates.
func (p *Provider) Geocode(ctx context.Context, location string) (lat, lng float64, err error) {
	params := url.Values{}
	params.Set("address", location)
	params.Set("key", p.apiKey)

	var result struct {
		Results []struct {
			Geometry struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
		} `json:"results"`
		Status string `json:"status"`
	}
	if err := p.get(ctx, "/geocode/json", params, &result); err != nil {
		return 0, 0, &Error{Op: "geocode", Err: err}
	}
	if len(result.Results) == 0 {
		return 0, 0, &Error{Op: "geocode", Err: fmt.Errorf("location %q not found", location)}
	}

	loc := result.Results[0].Geometry.Location
	return loc.Lat, loc.Lng, nil
}

// Nearby lists businesses around a coordinate, optionally filtered by a
// keyword like "restaurant".
func (p *Provider) Nearby(ctx context.Context, lat, lng float64, radius int, keyword string) ([]Business, error) {
	if radius <= 0 {
		radius = DefaultRadius
	}

	params := url.Values{}
	params.Set("location", fmt.Sprintf("%f,%f", lat, lng))
	params.Set("radius", strconv.Itoa(radius))
	params.Set("type", "establishment")
	params.Set("key", p.apiKey)
	if keyword != "" {
		params.Set("keyword", keyword)
	}

	var result struct {
		Results []struct {
			Name     string `json:"name"`
			Vicinity string `json:"vicinity"`
			PlaceID  string `json:"place_id"`
			Geometry struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
		} `json:"results"`
		Status string `json:"status"`
	}
	if err := p.get(ctx, "/place/nearbysearch/json", params, &result); err != nil {
		return nil, &Error{Op: "nearby search", Err: err}
	}

	businesses := make([]Business, 0, len(result.Results))
	for _, r := range result.Results {
		phone, err := p.PhoneNumber(ctx, r.PlaceID)
		if err != nil {
			// A business without a resolvable number is still listed.
			phone = ""
		}
		businesses = append(businesses, Business{
			Name:    r.Name,
			Address: r.Vicinity,
			Lat:     r.Geometry.Location.Lat,
			Lng:     r.Geometry.Location.Lng,
			Phone:   phone,
		})
	}
	return businesses, nil
}

// PhoneNumber resolves a place's phone number from place details.
func (p *Provider) PhoneNumber(ctx context.Context, placeID string) (string, error) {
	if placeID == "" {
		return "", &Error{Op: "place details", Err: fmt.Errorf("empty place id")}
	}

	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", "formatted_phone_number")
	params.Set("key", p.apiKey)

	var result struct {
		Result struct {
			FormattedPhoneNumber string `json:"formatted_phone_number"`
		} `json:"result"`
		Status string `json:"status"`
	}
	if err := p.get(ctx, "/place/details/json", params, &result); err != nil {
		return "", &Error{Op: "place details", Err: err}
	}

	return result.Result.FormattedPhoneNumber, nil
}

// FindBusinesses geocodes a location and lists nearby businesses with phone
// numbers.
func (p *Provider) FindBusinesses(ctx context.Context, location string, radius int, keyword string) ([]Business, error) {
	lat, lng, err := p.Geocode(ctx, location)
	if err != nil {
		return nil, err
	}
	return p.Nearby(ctx, lat, lng, radius, keyword)
}

// get performs a GET request against the Maps API.
func (p *Provider) get(ctx context.Context, path string, params url.Values, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
