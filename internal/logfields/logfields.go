package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID        = "run_id"
	KeyStreamID     = "stream_id"
	KeyClientID     = "client_id"
	KeyTransport    = "transport"
	KeyEvent        = "event"
	KeyPhase        = "phase"
	KeySectionIndex = "section_index"
	KeySectionType  = "section_type"
	KeyFormat       = "format"
	KeyProvider     = "provider"
	KeyModel        = "model"
	KeyAttempt      = "attempt"
	KeyPlugin       = "plugin"
	KeyTheme        = "theme"
	KeyPath         = "path"
	KeyURL          = "url"
	KeyMethod       = "method"
	KeyRemoteAddr   = "remote_addr"
	KeyRequestID    = "request_id"
	KeyStatus       = "status"
	KeyUserAgent    = "user_agent"
	KeyDurationMS   = "duration_ms"
	KeyCount        = "count"
	KeyJob          = "job"
	KeyService      = "service"
	KeyError        = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func StreamID(id string) slog.Attr    { return slog.String(KeyStreamID, id) }
func ClientID(id string) slog.Attr    { return slog.String(KeyClientID, id) }
func Transport(t string) slog.Attr    { return slog.String(KeyTransport, t) }
func Event(e string) slog.Attr        { return slog.String(KeyEvent, e) }
func Phase(p string) slog.Attr        { return slog.String(KeyPhase, p) }
func SectionIndex(i int) slog.Attr    { return slog.Int(KeySectionIndex, i) }
func SectionType(t string) slog.Attr  { return slog.String(KeySectionType, t) }
func Format(f string) slog.Attr       { return slog.String(KeyFormat, f) }
func Provider(p string) slog.Attr     { return slog.String(KeyProvider, p) }
func Model(m string) slog.Attr        { return slog.String(KeyModel, m) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func Plugin(name string) slog.Attr    { return slog.String(KeyPlugin, name) }
func Theme(name string) slog.Attr     { return slog.String(KeyTheme, name) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func RemoteAddr(a string) slog.Attr   { return slog.String(KeyRemoteAddr, a) }
func RequestID(id string) slog.Attr   { return slog.String(KeyRequestID, id) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func UserAgent(ua string) slog.Attr   { return slog.String(KeyUserAgent, ua) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Job(name string) slog.Attr       { return slog.String(KeyJob, name) }
func Service(name string) slog.Attr   { return slog.String(KeyService, name) }
func Since(start time.Time) slog.Attr { return DurationMS(float64(time.Since(start).Milliseconds())) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
