package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"

	"amenity/internal/mapview"
	"amenity/internal/models"
)

// Session is the state of one open page: its map, its inputs and the last
// applied result set. All fields are guarded by mu.
type Session struct {
	ID string

	mu        sync.Mutex
	canvas    *mapview.Canvas
	inputs    models.Inputs
	results   []models.AmenityRecord
	locateSeq uint64
	searchSeq uint64
	lastSeen  time.Time
}

// NewSession returns an empty session with a fresh map.
func NewSession(id string) *Session {
	return &Session{ID: id, canvas: mapview.NewCanvas(), lastSeen: time.Now()}
}

// Snapshot is a consistent copy of a session for rendering.
type Snapshot struct {
	Inputs   models.Inputs
	Results  []models.AmenityRecord
	Overlays *geojson.FeatureCollection
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Inputs:   s.inputs,
		Results:  cloneRecords(s.results),
		Overlays: s.canvas.FeatureCollection(),
	}
}

// Results returns a copy of the last applied result set.
func (s *Session) Results() []models.AmenityRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRecords(s.results)
}

// Overlays returns a copy of the overlays currently on the map.
func (s *Session) Overlays() []mapview.Overlay {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canvas.Overlays()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func cloneRecords(in []models.AmenityRecord) []models.AmenityRecord {
	if in == nil {
		return nil
	}
	out := make([]models.AmenityRecord, len(in))
	copy(out, in)
	return out
}

// SessionStore keeps sessions in memory and evicts idle ones.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the session for id and marks it as used.
func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	st.mu.Unlock()
	if ok {
		s.touch(st.now())
	}
	return s, ok
}

// Create starts a new session with a random ID.
func (st *SessionStore) Create() *Session {
	s := NewSession(uuid.NewString())
	s.lastSeen = st.now()
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// GetOrCreate returns the session for id, creating a new one when id is
// unknown. created reports whether a new session was made.
func (st *SessionStore) GetOrCreate(id string) (s *Session, created bool) {
	if id != "" {
		if s, ok := st.Get(id); ok {
			return s, false
		}
	}
	return st.Create(), true
}

func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed. A non-positive TTL disables eviction.
func (st *SessionStore) Sweep() int {
	if st.ttl <= 0 {
		return 0
	}
	cutoff := st.now().Add(-st.ttl)

	st.mu.Lock()
	defer st.mu.Unlock()
	removed := 0
	for id, s := range st.sessions {
		if s.idleSince().Before(cutoff) {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every period until ctx is done.
func (st *SessionStore) Run(ctx context.Context, period time.Duration) {
	if period <= 0 {
		return
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := st.Sweep(); n > 0 {
				log.Debug().Int("evicted", n).Int("remaining", st.Len()).Msg("swept idle sessions")
			}
		}
	}
}
