package enrich

import (
	"context"

	"amenity/internal/models"
	"amenity/pkg/geo"
)

// DistanceFrom sets each record's distance in metres from center.
func DistanceFrom(center geo.Coordinates) Step[models.AmenityRecord] {
	return func(_ context.Context, r *models.AmenityRecord) error {
		r.DistanceMeters = geo.HaversineDistance(center, r.Coordinates())
		return nil
	}
}

// Records builds the pipeline applied to search results around center.
// Names are left exactly as returned by the query service.
func Records(center geo.Coordinates) *Pipeline[models.AmenityRecord] {
	return NewPipeline(NewStage(DistanceFrom(center)))
}
