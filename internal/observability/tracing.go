package observability

import (
	"context"
	"log/slog"
	"time"
)

// Span times a single pipeline phase.
type Span interface {
	SetAttribute(key string, value any)
	RecordError(err error)
	End() time.Duration
}

// LocalSpan is a lightweight span implementation that reports through slog.
type LocalSpan struct {
	name       string
	startTime  time.Time
	attributes []slog.Attr
	err        error
	ctx        context.Context
	logger     *slog.Logger
}

// SetAttribute sets an attribute on the span.
func (s *LocalSpan) SetAttribute(key string, value any) {
	s.attributes = append(s.attributes, slog.Any(key, value))
}

// RecordError records an error in the span.
func (s *LocalSpan) RecordError(err error) {
	if err != nil {
		s.err = err
	}
}

// End ends the span, logs it at debug level and returns its duration.
func (s *LocalSpan) End() time.Duration {
	duration := time.Since(s.startTime)
	attrs := append([]slog.Attr{
		slog.String("span", s.name),
		slog.Int64("duration_ms", duration.Milliseconds()),
	}, s.attributes...)
	if s.err != nil {
		attrs = append(attrs, slog.String("error", s.err.Error()))
	}
	Log(s.ctx, s.logger, slog.LevelDebug, "Span ended", attrs...)
	return duration
}

// StartPhase opens a span for a pipeline phase and records the phase in the returned context.
func StartPhase(ctx context.Context, logger *slog.Logger, phase string) (context.Context, Span) {
	ctx = WithPhase(ctx, phase)
	span := &LocalSpan{name: "phase." + phase, startTime: time.Now(), ctx: ctx, logger: logger}
	return context.WithValue(ctx, spanContextKey, span), span
}

// EndSpan ends a span, recording err first when non-nil.
func EndSpan(span Span, err error) time.Duration {
	if span == nil {
		return 0
	}
	span.RecordError(err)
	return span.End()
}

type contextKey string

const spanContextKey contextKey = "span"

// SpanFromContext extracts span from context.
func SpanFromContext(ctx context.Context) (Span, bool) {
	span, ok := ctx.Value(spanContextKey).(Span)
	return span, ok
}
