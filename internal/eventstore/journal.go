package eventstore

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/docstream/internal/logfields"
)

// Journal records run events into a Store and keeps a projection current.
// Journal failures are logged and never fail a run. A nil *Journal discards
// everything.
type Journal struct {
	store      Store
	projection *RunHistoryProjection
	logger     *slog.Logger
}

// NewJournal wraps store; a nil store journals nothing.
func NewJournal(store Store, historySize int, logger *slog.Logger) *Journal {
	if store == nil {
		store = NoopStore{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{store: store, projection: NewRunHistoryProjection(store, historySize), logger: logger}
}

// Record appends e and applies it to the projection.
func (j *Journal) Record(ctx context.Context, e Event) {
	if j == nil || e == nil {
		return
	}
	if aerr := Record(ctx, j.store, e); aerr != nil {
		j.logger.Warn("Failed to journal event", logfields.RunID(e.RunID()), logfields.Event(e.Type()), logfields.Error(aerr))
	}
	j.projection.Apply(e)
}

// Projection exposes the run history view.
func (j *Journal) Projection() *RunHistoryProjection {
	if j == nil {
		return nil
	}
	return j.projection
}

// Rebuild reloads the projection from the store.
func (j *Journal) Rebuild(ctx context.Context) error {
	if j == nil {
		return nil
	}
	return j.projection.Rebuild(ctx)
}

// Close closes the underlying store.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.store.Close()
}
