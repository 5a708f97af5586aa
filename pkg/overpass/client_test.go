package overpass

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_String(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{
			name:  "cafe around london",
			query: Query{Category: "cafe", RadiusMeters: 5000, Lat: 51.5, Lon: -0.09},
			want:  `[out:json];node["amenity"="cafe"](around:5000,51.5,-0.09);out;`,
		},
		{
			name:  "category lower-cased and trimmed",
			query: Query{Category: "  Pharmacy ", RadiusMeters: 250.5, Lat: 1, Lon: 2},
			want:  `[out:json];node["amenity"="pharmacy"](around:250.5,1,2);out;`,
		},
		{
			name:  "quotes stripped",
			query: Query{Category: `bar"];out;`, RadiusMeters: 10, Lat: 0, Lon: 0},
			want:  `[out:json];node["amenity"="bar];out;"](around:10,0,0);out;`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.query.String())
		})
	}
}

func TestClient_Around(t *testing.T) {
	var gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("data")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"elements":[
			{"type":"node","id":1,"lat":51.51,"lon":-0.1,"tags":{"name":"Bean There"}},
			{"type":"node","id":2,"lat":51.52,"lon":-0.11},
			{"type":"node","id":3,"lat":51.53,"tags":{"name":"No Lon"}}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(WithEndpoint(srv.URL), WithUserAgent("test-agent"))
	resp, err := c.Around(context.Background(), Query{Category: "Cafe", RadiusMeters: 5000, Lat: 51.5, Lon: -0.09})
	require.NoError(t, err)

	assert.Equal(t, `[out:json];node["amenity"="cafe"](around:5000,51.5,-0.09);out;`, gotQuery)
	assert.Equal(t, "test-agent", gotUA)
	require.Len(t, resp.Elements, 3)
	assert.True(t, resp.Elements[0].HasPosition())
	assert.Equal(t, "Bean There", resp.Elements[0].Name())
	assert.True(t, resp.Elements[1].HasPosition())
	assert.Equal(t, "", resp.Elements[1].Name())
	assert.False(t, resp.Elements[2].HasPosition())
}

func TestClient_Around_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"non-2xx status", http.StatusTooManyRequests, `{}`, "overpass returned status 429"},
		{"malformed body", http.StatusOK, `<html>`, "decode overpass response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(WithEndpoint(srv.URL)).Around(context.Background(), Query{Category: "cafe", RadiusMeters: 1})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

type memCache struct {
	data map[string][]byte
	ttl  time.Duration
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("miss")
	}
	return v, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.data[key] = value
	m.ttl = ttl
	return nil
}

func TestClient_Around_UsesCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"elements":[{"id":7,"lat":1,"lon":2}]}`))
	}))
	defer srv.Close()

	cache := &memCache{data: map[string][]byte{}}
	c := NewClient(WithEndpoint(srv.URL), WithCache(cache, 5*time.Minute))
	q := Query{Category: "cafe", RadiusMeters: 100, Lat: 1, Lon: 2}

	for i := 0; i < 3; i++ {
		resp, err := c.Around(context.Background(), q)
		require.NoError(t, err)
		require.Len(t, resp.Elements, 1)
	}
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 5*time.Minute, cache.ttl)
}

func TestClient_Around_MaxConcurrent(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-release
		_, _ = w.Write([]byte(`{"elements":[]}`))
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(WithEndpoint(srv.URL), WithMaxConcurrent(1))
	q := Query{Category: "cafe", RadiusMeters: 100, Lat: 1, Lon: 2}

	done := make(chan error, 1)
	go func() {
		_, err := c.Around(context.Background(), q)
		done <- err
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Around(ctx, q)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wait for overpass slot")
	assert.Len(t, entered, 0)
}
