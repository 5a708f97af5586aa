package overpass

// Response is the subset of an Overpass `[out:json]` document the finder reads.
type Response struct {
	Elements []Element `json:"elements"`
}

// Element is a single OSM object returned by a query. Lat and Lon are
// pointers so that a missing coordinate is distinguishable from zero.
type Element struct {
	Type string            `json:"type"`
	ID   int64             `json:"id"`
	Lat  *float64          `json:"lat"`
	Lon  *float64          `json:"lon"`
	Tags map[string]string `json:"tags"`
}

// HasPosition reports whether the element carries both coordinates.
func (e Element) HasPosition() bool {
	return e.Lat != nil && e.Lon != nil
}

// Name returns the element's name tag, or "" when absent.
func (e Element) Name() string {
	return e.Tags["name"]
}
