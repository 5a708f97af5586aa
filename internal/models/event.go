package models

import "time"

// SearchEvent describes a search whose results were applied to a session.
type SearchEvent struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	Sequence     uint64    `json:"sequence"`
	Category     string    `json:"category"`
	Latitude     float64   `json:"lat"`
	Longitude    float64   `json:"lon"`
	RadiusMeters float64   `json:"radius"`
	ResultCount  int       `json:"result_count"`
	OccurredAt   time.Time `json:"occurred_at"`
}
