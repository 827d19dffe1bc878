package eventstore

import (
	"encoding/json"
	"fmt"
	"time"
)

func newEvent(runID, eventType string, payload any) (Entry, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal %s payload for run %s: %w", eventType, runID, err)
	}
	return Entry{Run: runID, Kind: eventType, At: time.Now(), Data: data}, nil
}

// RunStartedData describes a run as it begins.
type RunStartedData struct {
	Title    string `json:"title"`
	Sections int    `json:"sections"`
	Theme    string `json:"theme"`
	StreamID string `json:"stream_id,omitempty"`
}

// RunStarted is emitted when generation begins.
type RunStarted struct {
	Entry
	Data RunStartedData
}

// NewRunStarted creates a RunStarted event.
func NewRunStarted(runID string, data RunStartedData) (*RunStarted, error) {
	base, err := newEvent(runID, TypeRunStarted, data)
	if err != nil {
		return nil, err
	}
	return &RunStarted{Entry: base, Data: data}, nil
}

// RunEnhancedData records the outcome of AI enhancement.
type RunEnhancedData struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Attempts   int    `json:"attempts"`
	Cached     bool   `json:"cached"`
	TokensUsed int    `json:"tokens_used"`
	DurationMS int64  `json:"duration_ms"`
}

// RunEnhanced is emitted when the AI service returned a document.
type RunEnhanced struct {
	Entry
	Data RunEnhancedData
}

// NewRunEnhanced creates a RunEnhanced event.
func NewRunEnhanced(runID string, data RunEnhancedData) (*RunEnhanced, error) {
	base, err := newEvent(runID, TypeRunEnhanced, data)
	if err != nil {
		return nil, err
	}
	return &RunEnhanced{Entry: base, Data: data}, nil
}

// RunCompletedData carries the final generation statistics.
type RunCompletedData struct {
	Sections   int   `json:"sections"`
	Characters int   `json:"characters"`
	Pages      int   `json:"pages"`
	DurationMS int64 `json:"duration_ms"`
}

// RunCompleted is emitted when every section was rendered.
type RunCompleted struct {
	Entry
	Data RunCompletedData
}

// NewRunCompleted creates a RunCompleted event.
func NewRunCompleted(runID string, data RunCompletedData) (*RunCompleted, error) {
	base, err := newEvent(runID, TypeRunCompleted, data)
	if err != nil {
		return nil, err
	}
	return &RunCompleted{Entry: base, Data: data}, nil
}

// RunFailedData identifies where and why a run stopped.
type RunFailedData struct {
	Phase   string `json:"phase"`
	Kind    string `json:"kind,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"error"`
}

// RunFailed is emitted when a run terminates with an error.
type RunFailed struct {
	Entry
	Data RunFailedData
}

// NewRunFailed creates a RunFailed event.
func NewRunFailed(runID string, data RunFailedData) (*RunFailed, error) {
	base, err := newEvent(runID, TypeRunFailed, data)
	if err != nil {
		return nil, err
	}
	return &RunFailed{Entry: base, Data: data}, nil
}

// RunExportedData describes one exported file.
type RunExportedData struct {
	Format   string `json:"format"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum,omitempty"`
	Pages    int    `json:"pages,omitempty"`
}

// RunExported is emitted for every successfully exported format.
type RunExported struct {
	Entry
	Data RunExportedData
}

// NewRunExported creates a RunExported event.
func NewRunExported(runID string, data RunExportedData) (*RunExported, error) {
	base, err := newEvent(runID, TypeRunExported, data)
	if err != nil {
		return nil, err
	}
	return &RunExported{Entry: base, Data: data}, nil
}

// ExportFailedData describes a format that could not be exported.
type ExportFailedData struct {
	Format  string `json:"format"`
	Message string `json:"error"`
}

// ExportFailed is emitted for every failed format.
type ExportFailed struct {
	Entry
	Data ExportFailedData
}

// NewExportFailed creates an ExportFailed event.
func NewExportFailed(runID string, data ExportFailedData) (*ExportFailed, error) {
	base, err := newEvent(runID, TypeExportFailed, data)
	if err != nil {
		return nil, err
	}
	return &ExportFailed{Entry: base, Data: data}, nil
}
