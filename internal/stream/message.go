package stream

import (
	"time"

	"github.com/google/uuid"
)

// Event names the kind of a stream message.
type Event string

const (
	EventStart     Event = "start"
	EventData      Event = "data"
	EventSection   Event = "section"
	EventProgress  Event = "progress"
	EventComplete  Event = "complete"
	EventError     Event = "error"
	EventHeartbeat Event = "heartbeat"
)

// Critical reports whether messages of this kind must never be dropped under backpressure.
func (e Event) Critical() bool {
	return e == EventComplete || e == EventError
}

// Terminal reports whether the event ends a stream.
func (e Event) Terminal() bool {
	return e.Critical()
}

// Message is one unit of live output delivered to viewers.
type Message struct {
	ID        string `json:"id"`
	Event     Event  `json:"event"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
	StreamID  string `json:"streamId,omitempty"`
}

// NewMessage stamps a fresh id and the current time in milliseconds.
func NewMessage(event Event, streamID string, data any) Message {
	return Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
		StreamID:  streamID,
	}
}

// Critical reports whether the message must survive backpressure.
func (m Message) Critical() bool {
	return m.Event.Critical()
}

// StartData opens a stream.
type StartData struct {
	RunID    string `json:"runId"`
	Title    string `json:"title,omitempty"`
	Sections int    `json:"sections"`
	Theme    string `json:"theme,omitempty"`
}

// SectionData carries one rendered fragment.
type SectionData struct {
	Index      int    `json:"index"`
	Total      int    `json:"total"`
	Type       string `json:"type"`
	ID         string `json:"id,omitempty"`
	HTML       string `json:"html"`
	Characters int    `json:"characters"`
	Animation  string `json:"animation,omitempty"`
	Speed      int    `json:"speed,omitempty"`
}

// ProgressData reports generation progress.
type ProgressData struct {
	Current int     `json:"current"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// CompleteData closes a stream successfully.
type CompleteData struct {
	RunID      string `json:"runId"`
	Sections   int    `json:"sections"`
	Characters int    `json:"characters"`
	Pages      int    `json:"pages"`
	DurationMS int64  `json:"durationMs"`
}

// ErrorData closes a stream with a failure.
type ErrorData struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Phase   string `json:"phase,omitempty"`
}

// ClientInfo describes a connected viewer.
type ClientInfo struct {
	ID            string    `json:"id"`
	Transport     string    `json:"transport"`
	Address       string    `json:"address,omitempty"`
	UserAgent     string    `json:"userAgent,omitempty"`
	ConnectedAt   time.Time `json:"connectedAt"`
	Subscriptions []string  `json:"subscriptions"`
}
