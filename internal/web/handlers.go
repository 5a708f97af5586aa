// Package web serves the amenity finder page and its JSON API.
package web

import (
	"context"
	"encoding/json"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"

	"amenity/internal/models"
	"amenity/internal/workflow"
	apperrors "amenity/pkg/errors"
	"amenity/pkg/location"
)

// SessionCookie carries the session ID.
const SessionCookie = "amenity_session"

const (
	maxBodyBytes = 1 << 16
	historyLimit = 20
)

// Geocoder resolves a free-text place into a Locator.
type Geocoder interface {
	Place(query string) location.Locator
}

// History lists recent searches of a session.
type History interface {
	Recent(ctx context.Context, sessionID string, limit int) ([]models.SearchEvent, error)
}

// Handler serves the page and the workflow API.
type Handler struct {
	ctrl          *workflow.Controller
	sessions      *workflow.SessionStore
	page          *template.Template
	static        http.FileSystem
	geocoder      Geocoder
	history       History
	defaultRadius float64
	secureCookie  bool
}

// Config holds the collaborators of a Handler. Geocoder and History are optional.
type Config struct {
	Controller    *workflow.Controller
	Sessions      *workflow.SessionStore
	Templates     *template.Template
	Static        fs.FS
	Geocoder      Geocoder
	History       History
	DefaultRadius float64
	SecureCookie  bool
}

func NewHandler(cfg Config) *Handler {
	return &Handler{
		ctrl:          cfg.Controller,
		sessions:      cfg.Sessions,
		page:          cfg.Templates,
		static:        http.FS(cfg.Static),
		geocoder:      cfg.Geocoder,
		history:       cfg.History,
		defaultRadius: cfg.DefaultRadius,
		secureCookie:  cfg.SecureCookie,
	}
}

// Routes registers every endpoint and wraps them in request logging.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	mux.HandleFunc("GET /{$}", h.Index)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(h.static)))

	mux.HandleFunc("POST /api/locate", h.Locate)
	mux.HandleFunc("POST /api/search", h.Search)
	mux.HandleFunc("POST /api/clear", h.Clear)
	mux.HandleFunc("GET /api/overlays", h.Overlays)
	mux.HandleFunc("GET /api/export.csv", h.ExportCSV)
	mux.HandleFunc("GET /api/export.pdf", h.ExportDocument)
	if h.history != nil {
		mux.HandleFunc("GET /api/history", h.History)
	}

	return LoggingMiddleware(mux)
}

// apiResponse is the body of every workflow API response.
type apiResponse struct {
	Notice   string                     `json:"notice,omitempty"`
	Error    string                     `json:"error,omitempty"`
	Applied  *bool                      `json:"applied,omitempty"`
	Results  []models.AmenityRecord     `json:"results,omitempty"`
	Inputs   models.Inputs              `json:"inputs"`
	Overlays *geojson.FeatureCollection `json:"overlays"`
}

func snapshotResponse(s *workflow.Session) apiResponse {
	snap := s.Snapshot()
	return apiResponse{Inputs: snap.Inputs, Results: snap.Results, Overlays: snap.Overlays}
}

func (h *Handler) respondError(w http.ResponseWriter, s *workflow.Session, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("session", s.ID).Msg("request failed")
	}
	resp := snapshotResponse(s)
	resp.Error = apperrors.UserMessage(err)
	respondWithJSON(w, status, resp)
}

// session returns the caller's session, issuing a cookie for new ones.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) *workflow.Session {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	s, created := h.sessions.GetOrCreate(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    s.ID,
			Path:     "/",
			HttpOnly: true,
			Secure:   h.secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return s
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.NewValidationError("Malformed request body.")
	}
	return nil
}

// Index renders the page with the session's current state.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	snap := s.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := h.page.ExecuteTemplate(w, "index.html", map[string]any{
		"Title":         "Amenity Finder",
		"Inputs":        snap.Inputs,
		"Overlays":      snap.Overlays,
		"DefaultRadius": strconv.FormatFloat(h.defaultRadius, 'f', -1, 64),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to render page")
	}
}

type locateRequest struct {
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	Accuracy float64  `json:"accuracy"`
	Error    string   `json:"error"`
	Query    string   `json:"query"`
}

func (h *Handler) locator(req locateRequest) (location.Locator, error) {
	switch {
	case req.Error != "":
		return location.BrowserFix{Failure: req.Error}, nil
	case req.Query != "":
		if h.geocoder == nil {
			return nil, apperrors.NewValidationError("Place search is not available.")
		}
		return h.geocoder.Place(req.Query), nil
	case req.Lat != nil && req.Lon != nil:
		return location.BrowserFix{Lat: *req.Lat, Lon: *req.Lon, Accuracy: req.Accuracy}, nil
	default:
		return nil, apperrors.NewValidationError("A position, an error or a place is required.")
	}
}

// Locate handles POST /api/locate.
func (h *Handler) Locate(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)

	var req locateRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.respondError(w, s, err)
		return
	}
	loc, err := h.locator(req)
	if err != nil {
		h.respondError(w, s, err)
		return
	}

	res, err := h.ctrl.Locate(r.Context(), s, loc)
	if err != nil {
		h.respondError(w, s, err)
		return
	}

	resp := snapshotResponse(s)
	resp.Applied = &res.Applied
	respondWithJSON(w, http.StatusOK, resp)
}

// Search handles POST /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)

	var in models.Inputs
	if err := decodeBody(w, r, &in); err != nil {
		h.respondError(w, s, err)
		return
	}

	res, err := h.ctrl.Search(r.Context(), s, in)
	if err != nil {
		h.respondError(w, s, err)
		return
	}

	resp := snapshotResponse(s)
	resp.Applied = &res.Applied
	resp.Notice = res.Notice
	respondWithJSON(w, http.StatusOK, resp)
}

// Clear handles POST /api/clear.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	h.ctrl.Clear(s)
	respondWithJSON(w, http.StatusOK, snapshotResponse(s))
}

// Overlays handles GET /api/overlays.
func (h *Handler) Overlays(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	respondWithJSON(w, http.StatusOK, s.Snapshot().Overlays)
}

// ExportCSV handles GET /api/export.csv.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if err := h.ctrl.ExportCSV(r.Context(), s, attachment{w: w}); err != nil {
		h.respondExportError(w, s, err)
	}
}

// ExportDocument handles GET /api/export.pdf.
func (h *Handler) ExportDocument(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if err := h.ctrl.ExportDocument(r.Context(), attachment{w: w}); err != nil {
		h.respondExportError(w, s, err)
	}
}

// respondExportError reports a failed download unless the body was already
// being written.
func (h *Handler) respondExportError(w http.ResponseWriter, s *workflow.Session, err error) {
	if w.Header().Get("Content-Disposition") != "" {
		log.Warn().Err(err).Str("session", s.ID).Msg("download interrupted")
		return
	}
	h.respondError(w, s, err)
}

// History handles GET /api/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	events, err := h.history.Recent(ctx, s.ID, historyLimit)
	if err != nil {
		h.respondError(w, s, apperrors.NewExternalError("Search history is not available.", err))
		return
	}
	if events == nil {
		events = []models.SearchEvent{}
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"searches": events,
		"count":    len(events),
	})
}
