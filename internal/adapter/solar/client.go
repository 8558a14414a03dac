// Package solar looks up sunrise/sunset times for the user's coordinates.
// It is auxiliary to the seismic pipeline but follows the same
// fetch-with-timeout discipline.
package solar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/seismoguard/quake-ingest/internal/observability"
)

// SunTimes is the result of one lookup.
type SunTimes struct {
	Sunrise time.Time `json:"sunrise"`
	Sunset  time.Time `json:"sunset"`
}

// Client queries the sunrise-sunset API with a short timeout and caches
// results per coordinate for an hour; sun times do not move fast enough to
// justify a request per page load.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      *gocache.Cache
	metrics    *observability.Metrics
}

func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		cache:      gocache.New(time.Hour, 10*time.Minute),
		metrics:    metrics,
	}
}

// Lookup returns sunrise/sunset for the given coordinates, from cache when
// possible.
func (c *Client) Lookup(ctx context.Context, lat, lon float64) (SunTimes, error) {
	key := fmt.Sprintf("%.3f,%.3f", lat, lon)
	if v, ok := c.cache.Get(key); ok {
		c.metrics.SolarCache.WithLabelValues("hit").Inc()
		return v.(SunTimes), nil
	}
	c.metrics.SolarCache.WithLabelValues("miss").Inc()

	st, err := c.fetch(ctx, lat, lon)
	if err != nil {
		c.metrics.SolarRequests.WithLabelValues("error").Inc()
		return SunTimes{}, err
	}
	c.metrics.SolarRequests.WithLabelValues("success").Inc()
	c.cache.SetDefault(key, st)
	return st, nil
}

func (c *Client) fetch(ctx context.Context, lat, lon float64) (SunTimes, error) {
	params := url.Values{
		"lat":       {fmt.Sprintf("%f", lat)},
		"lng":       {fmt.Sprintf("%f", lon)},
		"formatted": {"0"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return SunTimes{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SunTimes{}, fmt.Errorf("solar request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return SunTimes{}, fmt.Errorf("solar API error: status %d: %s", resp.StatusCode, body)
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return SunTimes{}, fmt.Errorf("decode response: %w", err)
	}
	if payload.Status != "OK" {
		return SunTimes{}, fmt.Errorf("solar API status %q", payload.Status)
	}

	sunrise, err := time.Parse(time.RFC3339, payload.Results.Sunrise)
	if err != nil {
		return SunTimes{}, fmt.Errorf("parse sunrise: %w", err)
	}
	sunset, err := time.Parse(time.RFC3339, payload.Results.Sunset)
	if err != nil {
		return SunTimes{}, fmt.Errorf("parse sunset: %w", err)
	}
	return SunTimes{Sunrise: sunrise, Sunset: sunset}, nil
}

// sunrise-sunset.org response types.

type response struct {
	Status  string `json:"status"`
	Results struct {
		Sunrise string `json:"sunrise"`
		Sunset  string `json:"sunset"`
	} `json:"results"`
}
