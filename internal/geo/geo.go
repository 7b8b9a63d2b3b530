// Package geo resolves coordinates to human-readable place names through a
// Nominatim-compatible reverse geocoding endpoint.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// requestTimeout bounds one reverse geocoding call. Geocoding only
// enriches a location item, so it fails fast.
const requestTimeout = 5 * time.Second

// maxResponseBytes caps the geocoder response body.
const maxResponseBytes = 64 * 1024

// Geocoder resolves latitude/longitude pairs to display names.
type Geocoder struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// New creates a Geocoder against a Nominatim-compatible base URL,
// e.g. https://nominatim.openstreetmap.org.
func New(baseURL string, logger *slog.Logger) (*Geocoder, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("base URL is empty")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	return &Geocoder{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: requestTimeout},
		logger:  logger,
	}, nil
}

// Reverse returns the display name for the coordinates. Callers treat a
// failure as non-fatal: a location item degrades to bare coordinates.
func (g *Geocoder) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return "", fmt.Errorf("coordinates out of range: %f, %f", lat, lon)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	// Nominatim's usage policy requires an identifying User-Agent.
	req.Header.Set("User-Agent", "recall/1.0")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse geocoding: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reverse geocoding: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var out struct {
		DisplayName string `json:"display_name"`
		Error       string `json:"error"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("reverse geocoding: %s", out.Error)
	}
	if strings.TrimSpace(out.DisplayName) == "" {
		return "", fmt.Errorf("reverse geocoding: empty display name")
	}
	return strings.TrimSpace(out.DisplayName), nil
}
