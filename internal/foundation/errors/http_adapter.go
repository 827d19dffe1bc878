package errors

import (
	"encoding/json"
	"log/slog"
	"maps"
	"net/http"
)

// HTTPErrorAdapter writes errors as JSON responses for the server API.
type HTTPErrorAdapter struct {
	logger *slog.Logger
}

// NewHTTPErrorAdapter creates an adapter; a nil logger means slog.Default().
func NewHTTPErrorAdapter(logger *slog.Logger) *HTTPErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPErrorAdapter{logger: logger}
}

// HTTPErrorResponse is the body of every error response.
type HTTPErrorResponse struct {
	Error     string         `json:"error"`
	Code      string         `json:"code,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Retryable bool           `json:"retryable,omitempty"`
}

// StatusCodeFor maps err to a status code; unclassified errors are 500.
func (a *HTTPErrorAdapter) StatusCodeFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if c, ok := AsClassified(err); ok {
		if t, ok := categoryTraits[c.Category()]; ok {
			return t.status
		}
	}
	return http.StatusInternalServerError
}

// WriteErrorResponse writes the JSON payload for err and logs it at the
// level its severity implies.
func (a *HTTPErrorAdapter) WriteErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	status := a.StatusCodeFor(err)
	body, jerr := json.Marshal(a.FormatErrorResponse(err))
	if jerr != nil {
		body = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)

	level := slog.LevelError
	if c, ok := AsClassified(err); ok {
		level = c.Severity().Level()
	}
	a.logger.Log(r.Context(), level, err.Error(),
		slog.String("path", r.URL.Path),
		slog.Int("status", status))
}

// FormatErrorResponse builds the payload. The code is the kind code when
// known, else the category.
func (a *HTTPErrorAdapter) FormatErrorResponse(err error) HTTPErrorResponse {
	c, ok := AsClassified(err)
	if !ok {
		if err == nil {
			return HTTPErrorResponse{}
		}
		return HTTPErrorResponse{Error: err.Error()}
	}
	resp := HTTPErrorResponse{Error: c.Message(), Code: c.Code()}
	if resp.Code == "" {
		resp.Code = string(c.Category())
	}
	if len(c.Context()) > 0 {
		resp.Details = maps.Clone(map[string]any(c.Context()))
	}
	if c.RetryStrategy() != RetryNever {
		resp.Retryable = true
	}
	return resp
}
