package mapview

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"amenity/pkg/geo"
)

// Default view, matching the page's initial state over central London.
var (
	DefaultCenter = geo.Coordinates{Lat: 51.505, Lon: -0.09}
	DefaultZoom   = 13
)

// Canvas is an in-memory View. It is not safe for concurrent use; callers
// serialise access (the workflow session holds a lock around it).
type Canvas struct {
	overlays []Overlay
	nextID   uint64
	center   geo.Coordinates
	zoom     int
}

var _ View = (*Canvas)(nil)

func NewCanvas() *Canvas {
	return &Canvas{center: DefaultCenter, zoom: DefaultZoom}
}

func (c *Canvas) Add(o Overlay) Overlay {
	if o.Kind.Singleton() {
		c.Remove(o.Kind)
	}
	c.nextID++
	o.ID = c.nextID
	c.overlays = append(c.overlays, o)
	return o
}

func (c *Canvas) Remove(k Kind) int {
	return c.RemoveWhere(func(o Overlay) bool { return o.Kind == k })
}

func (c *Canvas) RemoveWhere(match func(Overlay) bool) int {
	kept := c.overlays[:0]
	removed := 0
	for _, o := range c.overlays {
		if match(o) {
			removed++
			continue
		}
		kept = append(kept, o)
	}
	// drop references held past the new length
	for i := len(kept); i < len(c.overlays); i++ {
		c.overlays[i] = Overlay{}
	}
	c.overlays = kept
	return removed
}

func (c *Canvas) Overlays() []Overlay {
	out := make([]Overlay, len(c.overlays))
	copy(out, c.overlays)
	return out
}

// Count returns the number of overlays of kind k.
func (c *Canvas) Count(k Kind) int {
	n := 0
	for _, o := range c.overlays {
		if o.Kind == k {
			n++
		}
	}
	return n
}

func (c *Canvas) SetView(center geo.Coordinates, zoom int) {
	c.center = center
	c.zoom = zoom
}

// Center returns the current view centre and zoom.
func (c *Canvas) Center() (geo.Coordinates, int) {
	return c.center, c.zoom
}

// FeatureCollection renders the overlays as GeoJSON points. Circles carry a
// radius property; the view travels as a foreign member.
func (c *Canvas) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, o := range c.overlays {
		f := geojson.NewFeature(orb.Point{o.Center.Lon, o.Center.Lat})
		f.ID = o.ID
		f.Properties["kind"] = string(o.Kind)
		if o.Label != "" {
			f.Properties["label"] = o.Label
		}
		if o.Kind.Circle() {
			f.Properties["radius"] = o.RadiusMeters
		}
		fc.Append(f)
	}
	fc.ExtraMembers = geojson.Properties{
		"view": map[string]any{
			"center": []float64{c.center.Lat, c.center.Lon},
			"zoom":   c.zoom,
		},
	}
	return fc
}
