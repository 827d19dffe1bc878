package eventstore

import (
	"context"
	"slices"
	"sync"
	"time"
)

const (
	runStatusRunning   = "running"
	runStatusCompleted = "completed"
	runStatusFailed    = "failed"
)

// RunSummary is a read model summarizing a finished or in-progress run.
type RunSummary struct {
	RunID        string            `json:"run_id"`
	Title        string            `json:"title,omitempty"`
	Status       string            `json:"status"` // "running", "completed", "failed"
	StartedAt    time.Time         `json:"started_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
	Duration     time.Duration     `json:"duration,omitempty"`
	Sections     int               `json:"sections"`
	Pages        int               `json:"pages,omitempty"`
	StreamID     string            `json:"stream_id,omitempty"`
	AI           *RunEnhancedData  `json:"ai,omitempty"`
	ErrorPhase   string            `json:"error_phase,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Exports      map[string]string `json:"exports,omitempty"`
	ExportErrors map[string]string `json:"export_errors,omitempty"`
}

// RunHistoryProjection maintains an in-memory view of recent runs,
// reconstructed from the journal.
type RunHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	runs     map[string]*RunSummary
	history  []*RunSummary // finished runs, newest first
	maxSize  int
	lastSync time.Time
}

// NewRunHistoryProjection creates a projection backed by store.
func NewRunHistoryProjection(store Store, maxHistorySize int) *RunHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &RunHistoryProjection{
		store:   store,
		runs:    make(map[string]*RunSummary),
		history: make([]*RunSummary, 0, maxHistorySize),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from all events in the store.
func (p *RunHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.UnixMilli(0), time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.runs = make(map[string]*RunSummary)
	p.history = make([]*RunSummary, 0, p.maxSize)
	for _, event := range events {
		p.applyEventLocked(event)
	}
	slices.SortStableFunc(p.history, func(a, b *RunSummary) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneRunsLocked()
	p.lastSync = time.Now()
	return nil
}

// Apply processes a single event as it is recorded.
func (p *RunHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(event)
}

func (p *RunHistoryProjection) applyEventLocked(event Event) {
	runID := event.RunID()
	if runID == "" {
		return
	}

	summary, exists := p.runs[runID]
	if !exists {
		summary = &RunSummary{RunID: runID, Status: runStatusRunning, StartedAt: event.Timestamp()}
		p.runs[runID] = summary
	}
	// the first terminal event fixes the outcome
	if Terminal(event.Type()) && summary.Status != runStatusRunning {
		return
	}

	switch event.Type() {
	case TypeRunStarted:
		var d RunStartedData
		if err := Decode(event, &d); err == nil {
			summary.Title = d.Title
			summary.StreamID = d.StreamID
		}
		summary.StartedAt = event.Timestamp()

	case TypeRunEnhanced:
		var d RunEnhancedData
		if err := Decode(event, &d); err == nil {
			summary.AI = &d
		}

	case TypeRunCompleted:
		var d RunCompletedData
		if err := Decode(event, &d); err == nil {
			summary.Sections = d.Sections
			summary.Pages = d.Pages
		}
		p.finishLocked(summary, event.Timestamp(), runStatusCompleted)

	case TypeRunFailed:
		var d RunFailedData
		if err := Decode(event, &d); err == nil {
			summary.ErrorPhase = d.Phase
			summary.ErrorMessage = d.Message
		}
		p.finishLocked(summary, event.Timestamp(), runStatusFailed)

	case TypeRunExported:
		var d RunExportedData
		if err := Decode(event, &d); err == nil {
			if summary.Exports == nil {
				summary.Exports = make(map[string]string)
			}
			summary.Exports[d.Format] = d.Path
		}

	case TypeExportFailed:
		var d ExportFailedData
		if err := Decode(event, &d); err == nil {
			if summary.ExportErrors == nil {
				summary.ExportErrors = make(map[string]string)
			}
			summary.ExportErrors[d.Format] = d.Message
		}
	}
}

func (p *RunHistoryProjection) finishLocked(summary *RunSummary, at time.Time, status string) {
	summary.CompletedAt = &at
	summary.Duration = at.Sub(summary.StartedAt)
	summary.Status = status

	if slices.ContainsFunc(p.history, func(h *RunSummary) bool { return h.RunID == summary.RunID }) {
		return
	}
	p.history = append([]*RunSummary{summary}, p.history...)
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneRunsLocked()
}

// pruneRunsLocked drops finished runs that fell out of the bounded history.
func (p *RunHistoryProjection) pruneRunsLocked() {
	keep := make(map[string]struct{}, len(p.history))
	for _, h := range p.history {
		keep[h.RunID] = struct{}{}
	}
	for id, summary := range p.runs {
		if summary.Status == runStatusRunning {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(p.runs, id)
		}
	}
}

// History returns finished runs, newest first.
func (p *RunHistoryProjection) History() []RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]RunSummary, len(p.history))
	for i, h := range p.history {
		out[i] = *h
	}
	return out
}

// Run returns the summary of one run.
func (p *RunHistoryProjection) Run(runID string) (RunSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.runs[runID]
	if !ok {
		return RunSummary{}, false
	}
	return *s, true
}

// Active returns the runs that have started but not finished.
func (p *RunHistoryProjection) Active() []RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []RunSummary
	for _, s := range p.runs {
		if s.Status == runStatusRunning {
			out = append(out, *s)
		}
	}
	slices.SortFunc(out, func(a, b RunSummary) int { return a.StartedAt.Compare(b.StartedAt) })
	return out
}

// LastSyncTime returns when the projection was last rebuilt.
func (p *RunHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
