// Package errors provides foundational, type-safe error primitives used across docstream.
//
// It contains the ClassifiedError type, a fluent builder, the docstream error
// taxonomy (Kind) with stable codes, and adapters that turn classified errors
// into CLI exit codes and HTTP responses.
//
// Example usage:
//
//	err := errors.AIRequestFailedError("provider call failed").
//		WithCause(lastErr).
//		WithPhase("ai").
//		WithContext("attempts", 3).
//		Build()
//
//	if errors.IsKind(err, errors.KindAIRequestFailed) { ... }
package errors
