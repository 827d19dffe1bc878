package eventstore

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event type names. A run journal opens with RunStarted and closes with
// exactly one of RunCompleted or RunFailed; export events follow the
// terminal event because export runs after generation is frozen.
const (
	TypeRunStarted   = "RunStarted"
	TypeRunEnhanced  = "RunEnhanced"
	TypeRunCompleted = "RunCompleted"
	TypeRunFailed    = "RunFailed"
	TypeRunExported  = "RunExported"
	TypeExportFailed = "ExportFailed"
)

// Terminal reports whether eventType ends the generation part of a run.
func Terminal(eventType string) bool {
	return eventType == TypeRunCompleted || eventType == TypeRunFailed
}

// Event is one entry of the run journal.
type Event interface {
	// ID is the store-assigned sequence number; zero before the event is stored.
	ID() int64
	RunID() string
	Type() string
	Timestamp() time.Time
	// Payload is the JSON encoding of the typed run data.
	Payload() []byte
	Metadata() map[string]string
}

// Entry is the stored form of an event, as read back from a store.
// The typed events embed it.
type Entry struct {
	Seq  int64
	Run  string
	Kind string
	At   time.Time
	Data []byte
	Meta map[string]string
}

func (e *Entry) ID() int64                   { return e.Seq }
func (e *Entry) RunID() string               { return e.Run }
func (e *Entry) Type() string                { return e.Kind }
func (e *Entry) Timestamp() time.Time        { return e.At }
func (e *Entry) Payload() []byte             { return e.Data }
func (e *Entry) Metadata() map[string]string { return e.Meta }

// Decode unmarshals the payload of e into v, naming the run and event type
// on failure.
func Decode(e Event, v any) error {
	if err := json.Unmarshal(e.Payload(), v); err != nil {
		return fmt.Errorf("decode %s payload for run %s: %w", e.Type(), e.RunID(), err)
	}
	return nil
}
