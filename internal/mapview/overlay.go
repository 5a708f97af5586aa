// Package mapview models what the browser map is showing: a view and a set
// of tagged overlays. The browser only draws what this state describes.
package mapview

import "amenity/pkg/geo"

// Kind tags an overlay so removal rules switch on it explicitly.
type Kind string

const (
	UserMarker      Kind = "user_marker"
	AccuracyOverlay Kind = "accuracy_overlay"
	RadiusOverlay   Kind = "radius_overlay"
	ResultMarker    Kind = "result_marker"
)

// Singleton reports whether at most one overlay of k may exist at a time.
func (k Kind) Singleton() bool {
	switch k {
	case UserMarker, AccuracyOverlay, RadiusOverlay:
		return true
	}
	return false
}

// Circle reports whether overlays of k are drawn as circles.
func (k Kind) Circle() bool {
	return k == AccuracyOverlay || k == RadiusOverlay
}

// Overlay is a single map layer.
type Overlay struct {
	ID           uint64
	Kind         Kind
	Center       geo.Coordinates
	Label        string
	RadiusMeters float64
}

// Marker returns a point overlay with a popup label.
func Marker(kind Kind, at geo.Coordinates, label string) Overlay {
	return Overlay{Kind: kind, Center: at, Label: label}
}

// Circle returns a circle overlay.
func Circle(kind Kind, at geo.Coordinates, radius float64) Overlay {
	return Overlay{Kind: kind, Center: at, RadiusMeters: radius}
}

// View is the map capability the search workflow drives.
type View interface {
	// Add draws o. A singleton kind replaces any existing overlay of that kind.
	Add(o Overlay) Overlay
	// Remove deletes every overlay of kind k and reports how many were removed.
	Remove(k Kind) int
	// RemoveWhere deletes every overlay for which match returns true.
	RemoveWhere(match func(Overlay) bool) int
	// Overlays returns the overlays in drawing order.
	Overlays() []Overlay
	// SetView pans and zooms to center.
	SetView(center geo.Coordinates, zoom int)
}
