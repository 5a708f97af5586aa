// Package location provides the sources the finder can obtain a user
// position from: fixes reported by the browser and place-name geocoding.
package location

import (
	"context"
	"errors"

	"amenity/pkg/geo"
)

// Fix is a single position reading.
type Fix struct {
	Coordinates    geo.Coordinates `json:"coordinates"`
	AccuracyMeters float64         `json:"accuracy,omitempty"`
	Source         string          `json:"source,omitempty"`
}

// Locator obtains the current position. Implementations may block on I/O and
// must honor ctx.
type Locator interface {
	Locate(ctx context.Context) (Fix, error)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(ctx context.Context) (Fix, error)

func (f LocatorFunc) Locate(ctx context.Context) (Fix, error) { return f(ctx) }

// ErrUnavailable is returned when no position could be determined.
var ErrUnavailable = errors.New("location unavailable")

// BrowserFix is a reading taken by the browser's geolocation API and posted
// to the server. A non-empty Failure carries the browser's error message.
type BrowserFix struct {
	Lat      float64
	Lon      float64
	Accuracy float64
	Failure  string
}

// Locate returns the posted reading, or ErrUnavailable wrapped with the
// browser's message.
func (b BrowserFix) Locate(context.Context) (Fix, error) {
	if b.Failure != "" {
		return Fix{}, &BrowserError{Message: b.Failure}
	}
	if err := geo.ValidateCoords(b.Lat, b.Lon); err != nil {
		return Fix{}, &BrowserError{Message: err.Error()}
	}
	return Fix{
		Coordinates:    geo.Coordinates{Lat: b.Lat, Lon: b.Lon},
		AccuracyMeters: b.Accuracy,
		Source:         "browser",
	}, nil
}

// BrowserError is a geolocation failure reported by the browser.
type BrowserError struct {
	Message string
}

func (e *BrowserError) Error() string { return e.Message }

func (e *BrowserError) Unwrap() error { return ErrUnavailable }
