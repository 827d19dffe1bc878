// Package eventstore journals the lifecycle of generation runs. Only run
// metadata is recorded; document content is never persisted.
package eventstore

import (
	"context"
	"time"
)

// Store defines the interface for persisting and retrieving events.
type Store interface {
	// Append adds a new event to the store.
	Append(ctx context.Context, runID, eventType string, payload []byte, metadata map[string]string) error

	// GetByRunID retrieves all events of a run in append order.
	GetByRunID(ctx context.Context, runID string) ([]Event, error)

	// GetRange retrieves events within a time range.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// Close closes the store and releases resources.
	Close() error
}

// Record appends a typed event.
func Record(ctx context.Context, s Store, e Event) error {
	return s.Append(ctx, e.RunID(), e.Type(), e.Payload(), e.Metadata())
}

// NoopStore discards events; it is the default when no journal is configured.
type NoopStore struct{}

func (NoopStore) Append(context.Context, string, string, []byte, map[string]string) error { return nil }
func (NoopStore) GetByRunID(context.Context, string) ([]Event, error)                     { return nil, nil }
func (NoopStore) GetRange(context.Context, time.Time, time.Time) ([]Event, error)         { return nil, nil }
func (NoopStore) Close() error                                                            { return nil }
