// Package service consumes storage notifications for archived exports. Its
// Iterator reads MinIO bucket events from a message source (Kafka via
// pkg/kafkaclient) and loads each referenced object with a LoaderFunc.
package service

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7/pkg/notification"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Iterator turns notification messages into loaded objects. It does not own
// the message source; callers start and stop their consumer themselves.
type Iterator[T any] struct {
	msgIterator MessageIterator
	loader      LoaderFunc[T]
	filter      func(key string) bool
	attempts    int
	backoff     time.Duration
}

const (
	defaultLoadAttempts = 3
	defaultLoadBackoff  = time.Second
)

// IteratorOption configures an Iterator.
type IteratorOption[T any] func(*Iterator[T])

// WithKeyFilter skips objects whose key does not satisfy keep. Skipped
// messages are still committed.
func WithKeyFilter[T any](keep func(key string) bool) IteratorOption[T] {
	return func(it *Iterator[T]) { it.filter = keep }
}

// WithLoadRetry sets how many times a load is attempted and the initial
// delay between attempts, which doubles after each failure.
func WithLoadRetry[T any](attempts int, backoff time.Duration) IteratorOption[T] {
	return func(it *Iterator[T]) {
		if attempts > 0 {
			it.attempts = attempts
		}
		if backoff >= 0 {
			it.backoff = backoff
		}
	}
}

func NewIterator[T any](iterator MessageIterator, loader LoaderFunc[T], opts ...IteratorOption[T]) *Iterator[T] {
	it := &Iterator[T]{
		msgIterator: iterator,
		loader:      loader,
		attempts:    defaultLoadAttempts,
		backoff:     defaultLoadBackoff,
	}
	for _, o := range opts {
		o(it)
	}
	return it
}

// Objects streams one FetchedObject per loaded record until the message
// channel closes or ctx is done. A message is committed once all of its
// records were handled. Kafka commits are cumulative per partition, so a
// message is never left behind uncommitted: a failed load is retried with
// backoff and, once the attempts are used up, logged and skipped like a
// malformed message.
func (it *Iterator[T]) Objects(ctx context.Context) <-chan *FetchedObject[T] {
	out := make(chan *FetchedObject[T])
	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-it.msgIterator.Messages():
				if !ok {
					return
				}
				if !it.handle(ctx, msg, out) {
					return
				}
				if err := it.msgIterator.CommitOffset(ctx, msg); err != nil {
					log.Error().Err(err).Int64("offset", msg.Offset).Msg("failed to commit offset")
				}
			}
		}
	}()
	return out
}

// handle emits the objects referenced by msg. It returns false only when
// ctx ended before the message was fully handled.
func (it *Iterator[T]) handle(ctx context.Context, msg kafka.Message, out chan<- *FetchedObject[T]) bool {
	var info notification.Info
	if err := json.Unmarshal(msg.Value, &info); err != nil {
		log.Warn().Err(err).Int64("offset", msg.Offset).Msg("skipping malformed notification")
		return true
	}

	for _, event := range info.Records {
		key, err := url.QueryUnescape(event.S3.Object.Key)
		if err != nil {
			log.Warn().Err(err).Str("key", event.S3.Object.Key).Msg("skipping undecodable object key")
			continue
		}
		if it.filter != nil && !it.filter(key) {
			log.Debug().Str("key", key).Msg("ignoring object")
			continue
		}

		data, err := it.load(ctx, event.S3.Bucket.Name, key)
		if ctx.Err() != nil {
			return false
		}
		if err != nil {
			log.Error().Err(err).
				Str("bucket", event.S3.Bucket.Name).
				Str("key", key).
				Int("attempts", it.attempts).
				Msg("giving up on object")
			continue
		}

		select {
		case out <- &FetchedObject[T]{Key: key, Data: data, Event: event}:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (it *Iterator[T]) load(ctx context.Context, bucket, key string) (T, error) {
	wait := it.backoff
	var (
		data T
		err  error
	)
	for attempt := 1; ; attempt++ {
		data, err = it.loader(ctx, bucket, key)
		if err == nil || attempt >= it.attempts {
			return data, err
		}
		log.Warn().Err(err).Str("key", key).Int("attempt", attempt).Dur("retry_in", wait).Msg("failed to load object")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return data, ctx.Err()
		}
		wait *= 2
	}
}
