package location

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"amenity/pkg/geo"
)

const (
	DefaultNominatimURL = "https://nominatim.openstreetmap.org/search"
	defaultUserAgent    = "amenity-finder/1.0"
)

// NominatimResponse is shaped for the search API response
type NominatimResponse []struct {
	PlaceID     int64  `json:"place_id"`
	OsmType     string `json:"osm_type"`
	OsmID       int64  `json:"osm_id"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Class       string `json:"class"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// Nominatim geocodes free-text place names.
type Nominatim struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// NewNominatim returns a geocoder. Empty baseURL or userAgent fall back to
// the public endpoint and a default agent; a nil client gets a timeout.
func NewNominatim(baseURL, userAgent string, httpClient *http.Client) *Nominatim {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultNominatimURL
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Nominatim{httpClient: httpClient, baseURL: baseURL, userAgent: userAgent}
}

// Geocode looks up a place name and returns the best match.
func (n *Nominatim) Geocode(ctx context.Context, query string) (Fix, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Fix{}, fmt.Errorf("%w: empty place name", ErrUnavailable)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("accept-language", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s?%s", n.baseURL, params.Encode()), nil)
	if err != nil {
		return Fix{}, err
	}
	req.Header.Set("User-Agent", n.userAgent)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return Fix{}, fmt.Errorf("nominatim request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Fix{}, fmt.Errorf("nominatim returned status %s", resp.Status)
	}

	var results NominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Fix{}, fmt.Errorf("decode nominatim response: %w", err)
	}
	if len(results) == 0 {
		return Fix{}, fmt.Errorf("%w: no results for %s", ErrUnavailable, query)
	}

	first := results[0]
	lat, err := strconv.ParseFloat(first.Lat, 64)
	if err != nil {
		return Fix{}, fmt.Errorf("nominatim latitude %q: %w", first.Lat, err)
	}
	lon, err := strconv.ParseFloat(first.Lon, 64)
	if err != nil {
		return Fix{}, fmt.Errorf("nominatim longitude %q: %w", first.Lon, err)
	}

	return Fix{
		Coordinates: geo.Coordinates{Lat: lat, Lon: lon},
		Source:      "nominatim",
	}, nil
}

// Place returns a Locator that geocodes query on each call.
func (n *Nominatim) Place(query string) Locator {
	return LocatorFunc(func(ctx context.Context) (Fix, error) {
		return n.Geocode(ctx, query)
	})
}
