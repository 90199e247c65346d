// Package geocode implements the Geocoder port against the OSM Nominatim
// API. Results come back in the display space of whatever map the user is
// matching against; the caller decides how to interpret them.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nlzhang/geopin/internal/core/domain"
)

const defaultEndpoint = "https://nominatim.openstreetmap.org/search"

// Nominatim is a Geocoder backed by the public Nominatim instance or a
// self-hosted one.
type Nominatim struct {
	endpoint  string
	userAgent string
	client    *http.Client
}

// New creates a Nominatim geocoder. endpoint may be empty for the public
// instance.
func New(endpoint string) *Nominatim {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Nominatim{
		endpoint:  endpoint,
		userAgent: "geopin/0.1 (location pin tool)",
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
}

// Search returns up to limit matches for the query.
func (n *Nominatim) Search(ctx context.Context, query string, limit int) ([]domain.PlaceMatch, error) {
	u := n.endpoint + "?" + url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {strconv.Itoa(limit)},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding returned status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decoding geocoding response: %w", err)
	}

	matches := make([]domain.PlaceMatch, 0, len(results))
	for _, r := range results {
		lat, err := strconv.ParseFloat(r.Lat, 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(r.Lon, 64)
		if err != nil {
			continue
		}
		matches = append(matches, domain.PlaceMatch{
			Label: r.DisplayName,
			Lat:   lat,
			Lon:   lon,
			Kind:  r.Type,
		})
	}
	return matches, nil
}
