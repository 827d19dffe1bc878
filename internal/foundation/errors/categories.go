package errors

import (
	"log/slog"
	"maps"
	"net/http"
)

// ErrorCategory groups errors by the part of docstream that raised them.
type ErrorCategory string

const (
	// Caller input.
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryAuth       ErrorCategory = "auth"
	CategoryNotFound   ErrorCategory = "not_found"

	// Upstream services.
	CategoryAI      ErrorCategory = "ai"
	CategoryNetwork ErrorCategory = "network"

	// Rendering and delivery of output files.
	CategoryGeneration ErrorCategory = "generation"
	CategoryExport     ErrorCategory = "export"
	CategoryPlugin     ErrorCategory = "plugin"
	CategoryFileSystem ErrorCategory = "filesystem"

	// Live streaming and run admission.
	CategoryStream      ErrorCategory = "stream"
	CategoryConcurrency ErrorCategory = "concurrency"
	CategoryCapacity    ErrorCategory = "capacity"

	CategoryRuntime  ErrorCategory = "runtime"
	CategoryInternal ErrorCategory = "internal"
)

// categoryTraits is how each category surfaces at the process and HTTP
// boundaries.
var categoryTraits = map[ErrorCategory]struct {
	exit   int
	status int
}{
	CategoryValidation:  {exit: 2, status: http.StatusBadRequest},
	CategoryConfig:      {exit: 7, status: http.StatusBadRequest},
	CategoryAuth:        {exit: 5, status: http.StatusUnauthorized},
	CategoryNotFound:    {exit: 4, status: http.StatusNotFound},
	CategoryAI:          {exit: 8, status: http.StatusBadGateway},
	CategoryNetwork:     {exit: 8, status: http.StatusBadGateway},
	CategoryGeneration:  {exit: 11, status: http.StatusUnprocessableEntity},
	CategoryExport:      {exit: 11, status: http.StatusUnprocessableEntity},
	CategoryPlugin:      {exit: 11, status: http.StatusUnprocessableEntity},
	CategoryFileSystem:  {exit: 11, status: http.StatusInternalServerError},
	CategoryStream:      {exit: 12, status: http.StatusInternalServerError},
	CategoryConcurrency: {exit: 12, status: http.StatusConflict},
	CategoryCapacity:    {exit: 12, status: http.StatusServiceUnavailable},
	CategoryRuntime:     {exit: 12, status: http.StatusServiceUnavailable},
	CategoryInternal:    {exit: 10, status: http.StatusInternalServerError},
}

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"
	SeverityError   ErrorSeverity = "error"
	SeverityWarning ErrorSeverity = "warning" // the run continues degraded
	SeverityInfo    ErrorSeverity = "info"
)

// Level maps the severity onto a slog level.
func (s ErrorSeverity) Level() slog.Level {
	switch s {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// RetryStrategy tells callers whether and how to retry.
type RetryStrategy string

const (
	RetryNever      RetryStrategy = "never"
	RetryImmediate  RetryStrategy = "immediate"
	RetryBackoff    RetryStrategy = "backoff"
	RetryRateLimit  RetryStrategy = "rate_limit" // wait for the window reported with the error
	RetryUserAction RetryStrategy = "user"
)

// ErrorContext carries structured details such as the offending config field
// or section index.
type ErrorContext map[string]any

// Set returns c with key set, allocating when c is nil.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

func (c ErrorContext) Get(key string) (any, bool) {
	v, ok := c[key]
	return v, ok
}

func (c ErrorContext) GetString(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok
}

// Merge returns a new context holding both; other wins on conflicts.
func (c ErrorContext) Merge(other ErrorContext) ErrorContext {
	switch {
	case c == nil:
		return other
	case other == nil:
		return c
	}
	out := maps.Clone(c)
	maps.Copy(out, other)
	return out
}
