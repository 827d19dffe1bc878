package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// CLIErrorAdapter turns an error returned by a command into a message on
// stderr and a process exit code.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	out     io.Writer
	exit    func(int)
}

// NewCLIErrorAdapter creates an adapter writing to stderr.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger, out: os.Stderr, exit: os.Exit}
}

// ExitCodeFor maps err to an exit code: 0 for nil, 1 when unclassified.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	c, ok := AsClassified(err)
	if !ok {
		return 1
	}
	if t, ok := categoryTraits[c.Category()]; ok {
		return t.exit
	}
	return 1
}

// FormatError renders err for a terminal. Without verbose, internal errors
// are reduced to a pointer at -v.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	c, ok := AsClassified(err)
	switch {
	case !ok:
		return fmt.Sprintf("Error: %v", err)
	case a.verbose:
		return c.Error()
	case c.Category() == CategoryInternal:
		return "Internal error occurred (use -v for details)"
	}
	msg := "Error: " + c.Message()
	if code := c.Code(); code != "" {
		msg = fmt.Sprintf("Error %s: %s", code, c.Message())
	}
	if field, ok := c.Context().GetString("field"); ok {
		msg += fmt.Sprintf(" (%s)", field)
	}
	if hint := hintFor(c); hint != "" {
		msg += "\n" + hint
	}
	return msg
}

func hintFor(c *ClassifiedError) string {
	switch c.Category() {
	case CategoryConfig:
		return "Hint: 'docstream config init' writes a documented starting config."
	case CategoryAI:
		if c.Kind() == KindAIRequestFailed {
			return "Hint: check the API key and base URL of the configured provider."
		}
	}
	return ""
}

// HandleError reports err and exits. Nil is a no-op.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	if a.shouldLog(err) {
		a.logError(err)
	}
	fmt.Fprintln(a.out, a.FormatError(err))
	a.exit(a.ExitCodeFor(err))
}

// shouldLog keeps plain runs quiet: only fatal or unclassified errors are
// logged unless verbose.
func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}
	c, ok := AsClassified(err)
	return !ok || c.Severity() == SeverityFatal
}

func (a *CLIErrorAdapter) logError(err error) {
	c, ok := AsClassified(err)
	if !ok {
		a.logger.Error("Unclassified error", "error", err)
		return
	}
	attrs := []slog.Attr{slog.String("category", string(c.Category()))}
	if c.Kind() != KindNone {
		attrs = append(attrs, slog.String("code", c.Code()))
	}
	if c.CanRetry() {
		attrs = append(attrs, slog.Bool("retryable", true))
	}
	a.logger.LogAttrs(context.Background(), c.Severity().Level(), c.Message(), attrs...)
}
