package workflow

import (
	"math"
	"strconv"
	"strings"

	"amenity/internal/models"
	apperrors "amenity/pkg/errors"
	"amenity/pkg/geo"
	"amenity/pkg/overpass"
)

// DefaultRadiusMeters is used when the radius input is empty, zero or unparseable.
const DefaultRadiusMeters = 5000.0

// User-visible messages.
const (
	MsgInvalidCoordinates = "Please enter valid latitude and longitude."
	MsgNoResults          = "No information found. Please change parameters."
	MsgNoData             = "No data available to download."
	MsgSearchFailed       = "Could not fetch amenities. Please try again."
	MsgDocumentFailed     = "The document is not available right now."
	msgLocationPrefix     = "Error getting location: "
	msgPlaceNotFound      = "place not found."
	msgLocationService    = "the location service is unavailable."
)

// ParseSearchQuery validates the raw inputs. Latitude and longitude must be
// numbers inside WGS84 bounds; the radius falls back to defaultRadius.
func ParseSearchQuery(in models.Inputs, defaultRadius float64) (models.SearchQuery, error) {
	lat, latErr := geo.ParseCoordinate(in.Latitude)
	lon, lonErr := geo.ParseCoordinate(in.Longitude)
	if latErr != nil || lonErr != nil || geo.ValidateCoords(lat, lon) != nil {
		return models.SearchQuery{}, apperrors.NewValidationError(MsgInvalidCoordinates)
	}

	return models.SearchQuery{
		Category:     overpass.NormalizeCategory(in.Category),
		Latitude:     lat,
		Longitude:    lon,
		RadiusMeters: parseRadius(in.Radius, defaultRadius),
	}, nil
}

func parseRadius(s string, defaultRadius float64) float64 {
	if defaultRadius <= 0 {
		defaultRadius = DefaultRadiusMeters
	}
	r, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || r <= 0 || math.IsInf(r, 0) || math.IsNaN(r) {
		return defaultRadius
	}
	return r
}
