package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "docstream.yaml").
			Build()

		if err.Category() != CategoryConfig {
			t.Errorf("expected category %s, got %s", CategoryConfig, err.Category())
		}
		if err.Severity() != SeverityFatal {
			t.Errorf("expected severity %s, got %s", SeverityFatal, err.Severity())
		}
		file, exists := err.Context().GetString("file")
		if !exists || file != "docstream.yaml" {
			t.Errorf("expected context file=docstream.yaml, got %v", file)
		}
	})

	t.Run("Kinds carry codes", func(t *testing.T) {
		err := ConcurrentRunError("generator busy").Build()
		if err.Kind() != KindConcurrentRun {
			t.Fatalf("expected kind %s, got %s", KindConcurrentRun, err.Kind())
		}
		if err.Code() != "DS_013" {
			t.Fatalf("expected DS_013, got %q", err.Code())
		}
		if KindNone.Code() != "" {
			t.Fatalf("KindNone must not carry a code")
		}
	})

	t.Run("Phase is rendered", func(t *testing.T) {
		err := DataValidationError("bad section").WithPhase("section:2").Build()
		if err.Phase() != "section:2" {
			t.Fatalf("expected phase section:2, got %q", err.Phase())
		}
		want := "[DataValidationError@section:2:fatal] bad section"
		if err.Error() != want {
			t.Fatalf("Error() = %q, want %q", err.Error(), want)
		}
	})
}

func TestIsKind(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := AIRequestFailedError("provider failed").WithCause(cause).Build()
	wrapped := fmt.Errorf("enhance: %w", err)

	if !IsKind(wrapped, KindAIRequestFailed) {
		t.Fatal("expected wrapped error to match its kind")
	}
	if IsKind(wrapped, KindAITimeout) {
		t.Fatal("unexpected kind match")
	}
	if !errors.Is(wrapped, cause) {
		t.Fatal("expected cause to be reachable")
	}
	if KindOf(wrapped) != KindAIRequestFailed {
		t.Fatalf("KindOf = %s", KindOf(wrapped))
	}
	if KindOf(cause) != KindNone {
		t.Fatalf("plain errors have no kind")
	}

	joined := errors.Join(errors.New("x"), ExportFailedError("pdf").Build())
	if !IsKind(joined, KindExportFailed) {
		t.Fatal("expected joined error to match")
	}
	if IsKind(nil, KindExportFailed) {
		t.Fatal("nil never matches")
	}
}

func TestWithContextDoesNotMutate(t *testing.T) {
	base := StreamError("send failed").WithContext(ContextClientID, "c1").Build()
	next := base.WithContext(ContextStreamID, "s1")

	if _, ok := base.Context().Get(ContextStreamID); ok {
		t.Fatal("original context was mutated")
	}
	if v, _ := next.Context().GetString(ContextStreamID); v != "s1" {
		t.Fatalf("expected stream_id on copy, got %q", v)
	}
}

func TestRetrySemantics(t *testing.T) {
	tests := []struct {
		name      string
		err       *ClassifiedError
		canRetry  bool
		transient bool
	}{
		{"timeout", AITimeoutError("t").Build(), true, true},
		{"capacity", CapacityExceededError("full").Build(), true, true},
		{"auth", AuthenticationError("token").Build(), false, false},
		{"config", ConfigValidationError("bad").Build(), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.CanRetry() != tt.canRetry {
				t.Errorf("CanRetry() = %v, want %v", tt.err.CanRetry(), tt.canRetry)
			}
			if tt.err.IsTransient() != tt.transient {
				t.Errorf("IsTransient() = %v, want %v", tt.err.IsTransient(), tt.transient)
			}
		})
	}
}

func TestHTTPErrorAdapter(t *testing.T) {
	adapter := NewHTTPErrorAdapter(slog.Default())

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"auth", AuthenticationError("missing token").Build(), http.StatusUnauthorized, "DS_012"},
		{"capacity", CapacityExceededError("too many clients").Build(), http.StatusServiceUnavailable, "DS_014"},
		{"concurrent", ConcurrentRunError("busy").Build(), http.StatusConflict, "DS_013"},
		{"data", DataValidationError("bad doc").Build(), http.StatusBadRequest, "DS_002"},
		{"plain classified", NewError(CategoryNotFound, "missing").Build(), http.StatusNotFound, "not_found"},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/stream", nil)
			adapter.WriteErrorResponse(rec, req, tt.err)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			var body HTTPErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Code != tt.code {
				t.Fatalf("code = %q, want %q", body.Code, tt.code)
			}
		})
	}
}

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, 0},
		{"data validation", DataValidationError("bad").Build(), 2},
		{"config validation", ConfigValidationError("bad").Build(), 7},
		{"auth", AuthenticationError("no").Build(), 5},
		{"ai", AIRequestFailedError("down").Build(), 8},
		{"export", ExportFailedError("none").Build(), 11},
		{"concurrency", ConcurrentRunError("busy").Build(), 12},
		{"unclassified", errors.New("x"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("ExitCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, nil)
	got := quiet.FormatError(ExportFailedError("no format succeeded").Build())
	if got != "Error DS_003: no format succeeded" {
		t.Fatalf("FormatError() = %q", got)
	}
	if got := quiet.FormatError(InternalError("oops").Build()); got != "Internal error occurred (use -v for details)" {
		t.Fatalf("FormatError() = %q", got)
	}
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var out strings.Builder
	code := -1
	adapter := NewCLIErrorAdapter(false, nil)
	adapter.out = &out
	adapter.exit = func(c int) { code = c }

	adapter.HandleError(ConfigValidationError("unknown theme \"neon\"").WithContext("field", "theme.name").Build())
	if code != 7 {
		t.Fatalf("exit code = %d, want 7", code)
	}
	if !strings.Contains(out.String(), "(theme.name)") || !strings.Contains(out.String(), "config init") {
		t.Fatalf("unexpected output %q", out.String())
	}

	code = -1
	adapter.HandleError(nil)
	if code != -1 {
		t.Fatal("nil error must not exit")
	}
}
