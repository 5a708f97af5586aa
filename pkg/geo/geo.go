// Package geo holds the small amount of coordinate arithmetic the amenity
// finder needs: parsing user input, range checks and great-circle distance.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EarthRadius is the mean Earth radius in metres.
const EarthRadius = 6371000.0

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%f,%f", c.Lat, c.Lon)
}

// ParseCoordinate parses a single latitude or longitude typed by a user.
// Surrounding whitespace is ignored; NaN and infinities are rejected.
func ParseCoordinate(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %q", s)
	}
	return v, nil
}

// ValidateCoords returns an error if the coordinates are outside WGS84 bounds.
func ValidateCoords(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("invalid latitude: %f (must be between -90 and 90)", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("invalid longitude: %f (must be between -180 and 180)", lon)
	}
	return nil
}

// HaversineDistance returns the great-circle distance in metres between two points.
func HaversineDistance(from, to Coordinates) float64 {
	φ1 := from.Lat * math.Pi / 180
	φ2 := to.Lat * math.Pi / 180
	Δφ := (to.Lat - from.Lat) * math.Pi / 180
	Δλ := (to.Lon - from.Lon) * math.Pi / 180
	a := math.Sin(Δφ/2)*math.Sin(Δφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	return EarthRadius * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
