// Package events publishes workflow events to Kafka.
package events

import (
	"context"

	"amenity/internal/models"
)

// Publisher writes a JSON value under a partition key.
type Publisher interface {
	PublishJSON(ctx context.Context, key string, value any) error
}

// SearchPublisher publishes every applied search, keyed by session so a
// session's searches stay ordered on one partition.
type SearchPublisher struct {
	pub Publisher
}

func NewSearchPublisher(pub Publisher) *SearchPublisher {
	return &SearchPublisher{pub: pub}
}

func (p *SearchPublisher) RecordSearch(ctx context.Context, ev models.SearchEvent) error {
	return p.pub.PublishJSON(ctx, ev.SessionID, ev)
}
