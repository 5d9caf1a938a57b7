package broker

import (
	"context"
	"errors"
)

var (
	// ErrNoMessage signals an empty poll; the caller just polls again.
	ErrNoMessage = errors.New("no message")

	// ErrClosed signals the consumer (or its context) is shutting down.
	ErrClosed = errors.New("consumer closed")
)

// Message is one record pulled from a stream. Raw carries the underlying
// client record so Commit can acknowledge the exact offset.
type Message struct {
	Topic string
	Key   []byte
	Value []byte
	Raw   any
}

// Producer publishes to a named, partitioned stream. Records with the same
// key land on the same partition, so per-key ordering is preserved.
// Whether Publish waits for a broker acknowledgment is fixed per instance
// at construction time.
type Producer interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
	Close() error
}

// Consumer pulls events with manual offset commit. Commit must only be
// called after the corresponding side effect finished, or when the event
// is malformed and would poison the partition otherwise.
type Consumer interface {
	Fetch(ctx context.Context) (Message, error)
	Commit(ctx context.Context, msg Message) error
	Close() error
}
