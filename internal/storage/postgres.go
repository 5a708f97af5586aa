package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"amenity/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS search_log (
	id            UUID PRIMARY KEY,
	session_id    TEXT NOT NULL,
	sequence      BIGINT NOT NULL,
	category      TEXT NOT NULL,
	lat           DOUBLE PRECISION NOT NULL,
	lon           DOUBLE PRECISION NOT NULL,
	radius_m      DOUBLE PRECISION NOT NULL,
	result_count  INTEGER NOT NULL,
	occurred_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS search_log_session_idx ON search_log (session_id, occurred_at DESC);`

// dbtx is the subset of pgxpool.Pool used here.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// SearchLog is an append-only Postgres log of applied searches.
type SearchLog struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewSearchLog connects to Postgres and makes sure the schema exists.
func NewSearchLog(ctx context.Context, dsn string) (*SearchLog, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	s := &SearchLog{db: pool, pool: pool}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *SearchLog) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create search_log schema: %w", err)
	}
	return nil
}

// RecordSearch appends ev to the log.
func (s *SearchLog) RecordSearch(ctx context.Context, ev models.SearchEvent) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO search_log (id, session_id, sequence, category, lat, lon, radius_m, result_count, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ev.ID, ev.SessionID, int64(ev.Sequence), ev.Category, ev.Latitude, ev.Longitude, ev.RadiusMeters, ev.ResultCount, ev.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert search_log row: %w", err)
	}
	return nil
}

// Recent returns up to limit searches for a session, newest first.
func (s *SearchLog) Recent(ctx context.Context, sessionID string, limit int) ([]models.SearchEvent, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, session_id, sequence, category, lat, lon, radius_m, result_count, occurred_at
		 FROM search_log WHERE session_id = $1 ORDER BY occurred_at DESC LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query search_log: %w", err)
	}
	defer rows.Close()

	var events []models.SearchEvent
	for rows.Next() {
		var ev models.SearchEvent
		var seq int64
		if err := rows.Scan(&ev.ID, &ev.SessionID, &seq, &ev.Category, &ev.Latitude, &ev.Longitude, &ev.RadiusMeters, &ev.ResultCount, &ev.OccurredAt); err != nil {
			return nil, err
		}
		ev.Sequence = uint64(seq)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *SearchLog) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
