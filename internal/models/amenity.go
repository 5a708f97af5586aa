package models

import "amenity/pkg/geo"

// UnknownName labels results that carry no name tag.
const UnknownName = "Unknown"

// SearchQuery is a validated search built from the page inputs.
type SearchQuery struct {
	Category     string
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
}

// Center returns the point the search is made around.
func (q SearchQuery) Center() geo.Coordinates {
	return geo.Coordinates{Lat: q.Latitude, Lon: q.Longitude}
}

// AmenityRecord is a single rendered search result.
type AmenityRecord struct {
	Name           string  `json:"name"`
	Latitude       float64 `json:"lat"`
	Longitude      float64 `json:"lon"`
	DistanceMeters float64 `json:"distance,omitempty"`
}

// Coordinates returns the record position.
func (r AmenityRecord) Coordinates() geo.Coordinates {
	return geo.Coordinates{Lat: r.Latitude, Lon: r.Longitude}
}

// Inputs mirrors the page's input fields as the user typed them.
type Inputs struct {
	Category  string `json:"category"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	Radius    string `json:"radius"`
}
