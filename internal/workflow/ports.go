package workflow

import (
	"context"

	"amenity/internal/models"
	"amenity/pkg/overpass"
)

// PlaceSearcher runs a point-of-interest query. *overpass.Client satisfies it.
type PlaceSearcher interface {
	Around(ctx context.Context, q overpass.Query) (*overpass.Response, error)
}

// File is a named payload handed to a Saver.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Saver delivers a file to the user, e.g. as an HTTP attachment.
type Saver interface {
	Save(ctx context.Context, f File) error
}

// SaverFunc adapts a function to the Saver interface.
type SaverFunc func(ctx context.Context, f File) error

func (fn SaverFunc) Save(ctx context.Context, f File) error { return fn(ctx, f) }

// DocumentSource provides the static document offered for download.
type DocumentSource interface {
	Document(ctx context.Context) (File, error)
}

// Archive keeps a server-side copy of exported files.
type Archive interface {
	PutExport(ctx context.Context, key, contentType string, data []byte) error
}

// SearchRecorder is notified of every applied search.
type SearchRecorder interface {
	RecordSearch(ctx context.Context, ev models.SearchEvent) error
}
