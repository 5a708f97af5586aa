// Package workflow implements the amenity search workflow: locating the
// user, searching for amenities around a point, exporting the results and
// clearing the map. Every operation acts on an explicit Session.
package workflow

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"amenity/internal/enrich"
	"amenity/internal/export"
	"amenity/internal/keys"
	"amenity/internal/mapview"
	"amenity/internal/models"
	apperrors "amenity/pkg/errors"
	"amenity/pkg/location"
	"amenity/pkg/overpass"
)

const (
	locateZoom       = 13
	userMarkerLabel  = "Your Location"
	recorderDeadline = 5 * time.Second
)

// Options are the tunable parts of the workflow.
type Options struct {
	DefaultRadiusMeters float64
	// AccuracyCircle draws a fixed-radius circle around the located user.
	AccuracyCircle       bool
	AccuracyRadiusMeters float64
}

// Controller runs workflow operations against sessions.
type Controller struct {
	places    PlaceSearcher
	docs      DocumentSource
	opts      Options
	archive   Archive
	recorders []SearchRecorder
	now       func() time.Time
}

// Option configures optional collaborators of a Controller.
type Option func(*Controller)

// WithArchive keeps a copy of every CSV export.
func WithArchive(a Archive) Option {
	return func(c *Controller) { c.archive = a }
}

// WithRecorders registers recorders notified after each applied search.
func WithRecorders(rs ...SearchRecorder) Option {
	return func(c *Controller) { c.recorders = append(c.recorders, rs...) }
}

// WithClock overrides time.Now (used for tests).
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func NewController(places PlaceSearcher, docs DocumentSource, opts Options, options ...Option) *Controller {
	if opts.DefaultRadiusMeters <= 0 {
		opts.DefaultRadiusMeters = DefaultRadiusMeters
	}
	c := &Controller{places: places, docs: docs, opts: opts, now: time.Now}
	for _, o := range options {
		o(c)
	}
	return c
}

// LocateResult reports the outcome of Locate.
type LocateResult struct {
	Sequence uint64
	// Applied is false when a newer Locate was issued before this one completed.
	Applied bool
	Fix     location.Fix
}

// Locate obtains a position from loc and moves the user marker there.
// Failures return a geolocation error and leave the map untouched.
func (c *Controller) Locate(ctx context.Context, s *Session, loc location.Locator) (*LocateResult, error) {
	s.mu.Lock()
	s.locateSeq++
	seq := s.locateSeq
	s.mu.Unlock()

	fix, err := loc.Locate(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.locateSeq {
		log.Debug().Err(err).Str("session", s.ID).Uint64("seq", seq).Uint64("latest", s.locateSeq).Msg("discarding stale location fix")
		return &LocateResult{Sequence: seq, Fix: fix}, nil
	}
	if err != nil {
		log.Warn().Err(err).Str("session", s.ID).Msg("locate failed")
		return nil, apperrors.NewGeolocationError(locationMessage(err), err)
	}

	s.canvas.Add(mapview.Marker(mapview.UserMarker, fix.Coordinates, userMarkerLabel))
	if c.opts.AccuracyCircle {
		s.canvas.Add(mapview.Circle(mapview.AccuracyOverlay, fix.Coordinates, c.opts.AccuracyRadiusMeters))
	}
	s.canvas.SetView(fix.Coordinates, locateZoom)
	s.inputs.Latitude = strconv.FormatFloat(fix.Coordinates.Lat, 'f', -1, 64)
	s.inputs.Longitude = strconv.FormatFloat(fix.Coordinates.Lon, 'f', -1, 64)

	return &LocateResult{Sequence: seq, Applied: true, Fix: fix}, nil
}

// locationMessage keeps the browser's own wording and hides geocoder
// transport details.
func locationMessage(err error) string {
	var browserErr *location.BrowserError
	switch {
	case errors.As(err, &browserErr):
		return msgLocationPrefix + browserErr.Message
	case errors.Is(err, location.ErrUnavailable):
		return msgLocationPrefix + msgPlaceNotFound
	default:
		return msgLocationPrefix + msgLocationService
	}
}

// SearchResult reports the outcome of Search.
type SearchResult struct {
	Sequence uint64
	// Applied is false when a newer Search was issued before this one completed.
	Applied bool
	Query   models.SearchQuery
	Records []models.AmenityRecord
	// Notice is an advisory message for the user, e.g. when nothing was found.
	Notice string
}

// Search queries amenities around the point in the inputs and renders them.
// Invalid coordinates fail before any state changes or network call.
func (c *Controller) Search(ctx context.Context, s *Session, in models.Inputs) (*SearchResult, error) {
	q, err := ParseSearchQuery(in, c.opts.DefaultRadiusMeters)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.inputs = in
	s.searchSeq++
	seq := s.searchSeq
	s.canvas.Add(mapview.Circle(mapview.RadiusOverlay, q.Center(), q.RadiusMeters))
	s.mu.Unlock()

	logger := log.With().Str("session", s.ID).Uint64("seq", seq).Str("category", q.Category).Logger()

	resp, err := c.places.Around(ctx, overpass.Query{
		Category:     q.Category,
		RadiusMeters: q.RadiusMeters,
		Lat:          q.Latitude,
		Lon:          q.Longitude,
	})
	if err != nil {
		s.mu.Lock()
		stale := seq != s.searchSeq
		s.mu.Unlock()
		if stale {
			logger.Debug().Err(err).Msg("discarding stale search failure")
			return &SearchResult{Sequence: seq, Query: q}, nil
		}
		logger.Error().Err(err).Msg("amenity search failed")
		return nil, apperrors.NewExternalError(MsgSearchFailed, err)
	}

	records := recordsFrom(resp.Elements)
	enrichRecords(ctx, q, records)

	s.mu.Lock()
	if seq != s.searchSeq {
		latest := s.searchSeq
		s.mu.Unlock()
		logger.Debug().Uint64("latest", latest).Msg("discarding stale search response")
		return &SearchResult{Sequence: seq, Query: q}, nil
	}
	s.canvas.Remove(mapview.ResultMarker)
	for _, r := range records {
		s.canvas.Add(mapview.Marker(mapview.ResultMarker, r.Coordinates(), r.Name))
	}
	s.results = records
	markers := s.canvas.Count(mapview.ResultMarker)
	s.mu.Unlock()

	logger.Info().Int("elements", len(resp.Elements)).Int("markers", markers).Msg("search applied")

	result := &SearchResult{Sequence: seq, Applied: true, Query: q, Records: cloneRecords(records)}
	if len(records) == 0 {
		result.Notice = MsgNoResults
	}
	c.record(ctx, s.ID, seq, q, len(records))
	return result, nil
}

// recordsFrom keeps elements that carry both coordinates, in response order.
func recordsFrom(elements []overpass.Element) []models.AmenityRecord {
	records := make([]models.AmenityRecord, 0, len(elements))
	for _, el := range elements {
		if !el.HasPosition() {
			continue
		}
		name := el.Name()
		if name == "" {
			name = models.UnknownName
		}
		records = append(records, models.AmenityRecord{Name: name, Latitude: *el.Lat, Longitude: *el.Lon})
	}
	return records
}

func enrichRecords(ctx context.Context, q models.SearchQuery, records []models.AmenityRecord) {
	ptrs := make([]*models.AmenityRecord, len(records))
	for i := range records {
		ptrs[i] = &records[i]
	}
	enrich.Records(q.Center()).ProcessAll(ctx, ptrs)
}

func (c *Controller) record(ctx context.Context, sessionID string, seq uint64, q models.SearchQuery, count int) {
	if len(c.recorders) == 0 {
		return
	}
	ev := models.SearchEvent{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		Sequence:     seq,
		Category:     q.Category,
		Latitude:     q.Latitude,
		Longitude:    q.Longitude,
		RadiusMeters: q.RadiusMeters,
		ResultCount:  count,
		OccurredAt:   c.now().UTC(),
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recorderDeadline)
	defer cancel()
	var failed atomic.Int32
	var g errgroup.Group
	for _, r := range c.recorders {
		g.Go(func() error {
			if err := r.RecordSearch(ctx, ev); err != nil {
				failed.Add(1)
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).
			Str("session", sessionID).
			Int32("failed", failed.Load()).
			Int("recorders", len(c.recorders)).
			Msg("failed to record search")
	}
}

// ExportCSV saves the last applied result set as buildings.csv. With no
// stored results nothing is saved and a not-found error carries the notice.
func (c *Controller) ExportCSV(ctx context.Context, s *Session, saver Saver) error {
	records := s.Results()
	if len(records) == 0 {
		return apperrors.NewNotFoundError(MsgNoData)
	}

	data, err := export.EncodeCSV(records)
	if err != nil {
		return apperrors.NewInternalError("Could not prepare the download.", err)
	}

	f := File{Name: export.CSVFilename, ContentType: export.CSVContentType, Data: data}
	if err := saver.Save(ctx, f); err != nil {
		return apperrors.NewInternalError("Could not save the download.", err)
	}

	if c.archive != nil {
		key := keys.Export(s.ID, f.Name, c.now())
		if err := c.archive.PutExport(ctx, key, f.ContentType, f.Data); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to archive export")
		}
	}
	return nil
}

// ExportDocument saves the bundled static document.
func (c *Controller) ExportDocument(ctx context.Context, saver Saver) error {
	doc, err := c.docs.Document(ctx)
	if err != nil {
		return apperrors.NewExternalError(MsgDocumentFailed, err)
	}
	if err := saver.Save(ctx, doc); err != nil {
		return apperrors.NewInternalError("Could not save the download.", err)
	}
	return nil
}

// Clear removes the result markers and the search radius and empties the
// inputs. The user marker, the accuracy circle and the stored results stay.
func (c *Controller) Clear(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.canvas.RemoveWhere(func(o mapview.Overlay) bool {
		return o.Kind == mapview.ResultMarker || o.Kind == mapview.RadiusOverlay
	})
	s.inputs = models.Inputs{}
	log.Debug().Str("session", s.ID).Int("removed", removed).Msg("map cleared")
}
