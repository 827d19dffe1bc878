package metrics

import "time"

// ResultLabel enumerates result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultTimeout  ResultLabel = "timeout"
	ResultCached   ResultLabel = "cached"
	ResultCanceled ResultLabel = "canceled"
	ResultRejected ResultLabel = "rejected"
)

// DisconnectReason labels why the hub dropped a client.
type DisconnectReason string

const (
	DisconnectDelivery  DisconnectReason = "delivery"
	DisconnectHeartbeat DisconnectReason = "heartbeat"
	DisconnectClosed    DisconnectReason = "closed"
	DisconnectRejected  DisconnectReason = "rejected"
)

// Recorder defines observability hooks for generation, streaming, AI and export metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc.
type Recorder interface {
	ObservePhaseDuration(phase string, d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(result ResultLabel)
	IncSectionRendered(sectionType string)
	SetStreamClients(n int)
	IncStreamMessage(event string)
	IncDroppedMessage()
	IncDisconnect(reason DisconnectReason)
	IncAIRequest(provider string, result ResultLabel)
	ObserveAIDuration(provider string, d time.Duration)
	ObserveExportDuration(format string, d time.Duration)
	IncExportResult(format string, result ResultLabel)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObservePhaseDuration(string, time.Duration)  {}
func (NoopRecorder) ObserveRunDuration(time.Duration)            {}
func (NoopRecorder) IncRunOutcome(ResultLabel)                   {}
func (NoopRecorder) IncSectionRendered(string)                   {}
func (NoopRecorder) SetStreamClients(int)                        {}
func (NoopRecorder) IncStreamMessage(string)                     {}
func (NoopRecorder) IncDroppedMessage()                          {}
func (NoopRecorder) IncDisconnect(DisconnectReason)              {}
func (NoopRecorder) IncAIRequest(string, ResultLabel)            {}
func (NoopRecorder) ObserveAIDuration(string, time.Duration)     {}
func (NoopRecorder) ObserveExportDuration(string, time.Duration) {}
func (NoopRecorder) IncExportResult(string, ResultLabel)         {}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
