package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amenity/internal/assets"
	"amenity/internal/models"
	"amenity/internal/workflow"
	"amenity/pkg/geo"
	"amenity/pkg/location"
	"amenity/pkg/overpass"
)

type stubSearcher struct {
	resp  *overpass.Response
	err   error
	calls atomic.Int32
}

func (s *stubSearcher) Around(context.Context, overpass.Query) (*overpass.Response, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

type stubGeocoder struct{}

func (stubGeocoder) Place(query string) location.Locator {
	return location.LocatorFunc(func(context.Context) (location.Fix, error) {
		if query == "nowhere" {
			return location.Fix{}, location.ErrUnavailable
		}
		return location.Fix{Coordinates: geo.Coordinates{Lat: 48.8566, Lon: 2.3522}}, nil
	})
}

type stubHistory struct {
	mu         sync.Mutex
	sessionIDs []string
}

func (h *stubHistory) Recent(_ context.Context, sessionID string, _ int) ([]models.SearchEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessionIDs = append(h.sessionIDs, sessionID)
	return []models.SearchEvent{{ID: "e1", SessionID: sessionID, Category: "cafe", OccurredAt: time.Unix(0, 0).UTC()}}, nil
}

func f64(v float64) *float64 { return &v }

type testServer struct {
	*httptest.Server
	client   *http.Client
	searcher *stubSearcher
	history  *stubHistory
	sessions *workflow.SessionStore
}

func newTestServer(t *testing.T, searcher *stubSearcher) *testServer {
	t.Helper()
	tmpl, err := assets.Templates()
	require.NoError(t, err)

	sessions := workflow.NewSessionStore(time.Hour)
	history := &stubHistory{}
	ctrl := workflow.NewController(searcher, assets.EmbeddedDocument{}, workflow.Options{
		DefaultRadiusMeters:  5000,
		AccuracyCircle:       true,
		AccuracyRadiusMeters: 100,
	})
	h := NewHandler(Config{
		Controller:    ctrl,
		Sessions:      sessions,
		Templates:     tmpl,
		Static:        assets.Static(),
		Geocoder:      stubGeocoder{},
		History:       history,
		DefaultRadius: 5000,
	})

	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testServer{
		Server:   srv,
		client:   &http.Client{Jar: jar},
		searcher: searcher,
		history:  history,
		sessions: sessions,
	}
}

type apiBody struct {
	Notice   string                 `json:"notice"`
	Error    string                 `json:"error"`
	Applied  *bool                  `json:"applied"`
	Results  []models.AmenityRecord `json:"results"`
	Inputs   models.Inputs          `json:"inputs"`
	Overlays struct {
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
		View struct {
			Center []float64 `json:"center"`
			Zoom   int       `json:"zoom"`
		} `json:"view"`
	} `json:"overlays"`
}

func (b apiBody) kinds() map[string]int {
	out := map[string]int{}
	for _, f := range b.Overlays.Features {
		out[f.Properties["kind"].(string)]++
	}
	return out
}

func (ts *testServer) post(t *testing.T, path string, body any) (int, apiBody) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := ts.client.Post(ts.URL+path, "application/json", strings.NewReader(string(payload)))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out apiBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (ts *testServer) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := ts.client.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func cafes() *overpass.Response {
	return &overpass.Response{Elements: []overpass.Element{
		{ID: 1, Lat: f64(51.501), Lon: f64(-0.091), Tags: map[string]string{"name": "Bean There"}},
		{ID: 2, Lat: f64(51.502), Lon: f64(-0.092)},
		{ID: 3, Lat: f64(51.503)},
	}}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, &stubSearcher{})
	resp, body := ts.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestIndex_IssuesSessionCookie(t *testing.T) {
	ts := newTestServer(t, &stubSearcher{})

	resp, body := ts.get(t, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `id="category"`)
	assert.Contains(t, string(body), `/static/app.js`)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	// the jar sends the cookie back, so no new session is created
	ts.get(t, "/")
	assert.Equal(t, 1, ts.sessions.Len())
}

func TestStatic(t *testing.T) {
	ts := newTestServer(t, &stubSearcher{})
	resp, body := ts.get(t, "/static/app.js")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "/api/search")
}

func TestLocateThenSearch(t *testing.T) {
	ts := newTestServer(t, &stubSearcher{resp: cafes()})

	status, body := ts.post(t, "/api/locate", map[string]any{"lat": 51.5, "lon": -0.09, "accuracy": 12})
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, body.Applied)
	assert.True(t, *body.Applied)
	assert.Equal(t, "51.5", body.Inputs.Latitude)
	assert.Equal(t, "-0.09", body.Inputs.Longitude)
	assert.Equal(t, map[string]int{"user_marker": 1, "accuracy_overlay": 1}, body.kinds())
	assert.Equal(t, []float64{51.5, -0.09}, body.Overlays.View.Center)
	assert.Equal(t, 13, body.Overlays.View.Zoom)

	status, body = ts.post(t, "/api/search", models.Inputs{Category: "Cafe", Latitude: "51.5", Longitude: "-0.09"})
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body.Notice)
	require.Len(t, body.Results, 2)
	assert.Equal(t, "Unknown", body.Results[1].Name)
	assert.Equal(t, map[string]int{"user_marker": 1, "accuracy_overlay": 1, "radius_overlay": 1, "result_marker": 2}, body.kinds())

	status, body = ts.post(t, "/api/clear", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]int{"user_marker": 1, "accuracy_overlay": 1}, body.kinds())
	assert.Equal(t, models.Inputs{}, body.Inputs)
}

func TestLocate_Errors(t *testing.T) {
	ts := newTestServer(t, &stubSearcher{})

	status, body := ts.post(t, "/api/locate", map[string]any{"error": "User denied Geolocation"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "Error getting location: User denied Geolocation", body.Error)
	assert.Empty(t, body.Overlays.Features)

	status, body = ts.post(t, "/api/locate", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, body.Error)

	status, _ = ts.post(t, "/api/locate", map[string]any{"query": "nowhere"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestLocate_PlaceQuery(t *testing.T) {
	ts := newTestServer(t, &stubSearcher{})

	status, body := ts.post(t, "/api/locate", map[string]any{"query": "Paris"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "48.8566", body.Inputs.Latitude)
	assert.Equal(t, "2.3522", body.Inputs.Longitude)
}

func TestSearch_Errors(t *testing.T) {
	t.Run("invalid coordinates", func(t *testing.T) {
		searcher := &stubSearcher{}
		ts := newTestServer(t, searcher)

		status, body := ts.post(t, "/api/search", models.Inputs{Category: "cafe", Latitude: "abc"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, workflow.MsgInvalidCoordinates, body.Error)
		assert.Zero(t, searcher.calls.Load())
	})

	t.Run("upstream failure", func(t *testing.T) {
		ts := newTestServer(t, &stubSearcher{err: errors.New("overpass returned status 429")})

		status, body := ts.post(t, "/api/search", models.Inputs{Category: "cafe", Latitude: "1", Longitude: "2"})
		assert.Equal(t, http.StatusBadGateway, status)
		assert.Equal(t, workflow.MsgSearchFailed, body.Error)
	})

	t.Run("malformed body", func(t *testing.T) {
		ts := newTestServer(t, &stubSearcher{})
		resp, err := ts.client.Post(ts.URL+"/api/search", "application/json", strings.NewReader("{"))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestSearch_NoResults(t *testing.T) {
	ts := newTestServer(t, &stubSearcher{resp: &overpass.Response{}})

	status, body := ts.post(t, "/api/search", models.Inputs{Category: "cafe", Latitude: "51.5", Longitude: "-0.09"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, workflow.MsgNoResults, body.Notice)
	assert.Empty(t, body.Results)
}

func TestExportCSV(t *testing.T) {
	ts := newTestServer(t, &stubSearcher{resp: cafes()})

	resp, data := ts.get(t, "/api/export.csv")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var body apiBody
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, workflow.MsgNoData, body.Error)

	status, _ := ts.post(t, "/api/search", models.Inputs{Category: "cafe", Latitude: "51.5", Longitude: "-0.09"})
	require.Equal(t, http.StatusOK, status)

	resp, data = ts.get(t, "/api/export.csv")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv;charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="buildings.csv"`, resp.Header.Get("Content-Disposition"))
	assert.Equal(t, "name,lat,lon\nBean There,51.501,-0.091\nUnknown,51.502,-0.092\n", string(data))
}

func TestExportDocument(t *testing.T) {
	ts := newTestServer(t, &stubSearcher{})

	resp, data := ts.get(t, "/api/export.pdf")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="amenities.pdf"`, resp.Header.Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(string(data), "%PDF-"))
}

func TestOverlays(t *testing.T) {
	ts := newTestServer(t, &stubSearcher{})
	resp, data := ts.get(t, "/api/overlays")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fc map[string]any
	require.NoError(t, json.Unmarshal(data, &fc))
	assert.Equal(t, "FeatureCollection", fc["type"])
}

func TestHistory(t *testing.T) {
	ts := newTestServer(t, &stubSearcher{})

	resp, data := ts.get(t, "/api/history")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Searches []models.SearchEvent `json:"searches"`
		Count    int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, 1, body.Count)
	ts.history.mu.Lock()
	defer ts.history.mu.Unlock()
	require.Len(t, ts.history.sessionIDs, 1)
	assert.Equal(t, ts.history.sessionIDs[0], body.Searches[0].SessionID)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("plain")))
}
