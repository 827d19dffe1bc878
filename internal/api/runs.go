package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docstream/internal/ai"
	"git.home.luguber.info/inful/docstream/internal/config"
	"git.home.luguber.info/inful/docstream/internal/docmodel"
	derrors "git.home.luguber.info/inful/docstream/internal/foundation/errors"
	"git.home.luguber.info/inful/docstream/internal/logfields"
	"git.home.luguber.info/inful/docstream/internal/observability"
	"git.home.luguber.info/inful/docstream/internal/pipeline"
)

const maxRunBody = 4 << 20

// RunRequest is the body of POST /runs. Config overlays the server's run
// configuration and uses the same keys as the YAML file.
type RunRequest struct {
	Document          json.RawMessage `json:"document"`
	Config            json.RawMessage `json:"config,omitempty"`
	Prompt            *ai.Prompt      `json:"prompt,omitempty"`
	Formats           []string        `json:"formats,omitempty"`
	StreamID          string          `json:"streamId,omitempty"`
	FallbackOnAIError bool            `json:"fallbackOnAIError,omitempty"`
}

// RunAccepted is returned once a run has been scheduled.
type RunAccepted struct {
	RunID    string `json:"runId"`
	StreamID string `json:"streamId"`
}

func badRequest(msg string, cause error) error {
	return derrors.ValidationError(msg).WithKind(derrors.KindDataValidation).WithCause(cause).Build()
}

// decodeRun turns a request body into a pipeline request.
func (s *Server) decodeRun(body io.Reader) (pipeline.Request, string, error) {
	var req RunRequest
	dec := json.NewDecoder(io.LimitReader(body, maxRunBody))
	if err := dec.Decode(&req); err != nil {
		return pipeline.Request{}, "", badRequest("malformed run request", err)
	}
	if len(req.Document) == 0 {
		return pipeline.Request{}, "", badRequest("document is required", nil)
	}
	doc, err := docmodel.Decode(req.Document)
	if err != nil {
		return pipeline.Request{}, "", err
	}

	cfg := s.cfg.Clone()
	if len(req.Config) > 0 {
		if err := yaml.Unmarshal(req.Config, &cfg); err != nil {
			return pipeline.Request{}, "", derrors.ConfigValidationError("malformed config").WithCause(err).Build()
		}
	}
	if !cfg.Streaming.Enabled() {
		cfg.Streaming.Mode = config.StreamModeWebSocket
	}
	cfg.Streaming.StreamID = req.StreamID
	if cfg.Streaming.StreamID == "" {
		cfg.Streaming.StreamID = uuid.Must(uuid.NewV7()).String()
	}
	cfg = cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return pipeline.Request{}, "", err
	}

	out := pipeline.Request{
		Document:          doc,
		Config:            cfg,
		Formats:           req.Formats,
		FallbackOnAIError: req.FallbackOnAIError,
		SkipExport:        len(req.Formats) == 0,
	}
	if req.Prompt != nil {
		out.Prompt = *req.Prompt
	}
	return out, cfg.Streaming.StreamID, nil
}

// handleCreateRun starts a streamed generation in the background and returns
// its ids. Viewers that must not miss the start event subscribe to a
// streamId of their choosing before posting.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	req, streamID, err := s.decodeRun(r.Body)
	if err != nil {
		s.Fail(w, r, err)
		return
	}
	runID := uuid.Must(uuid.NewV7()).String()
	ctx := observability.WithRunID(s.runCtx, runID)
	log := s.logger.With(logfields.RunID(runID), logfields.StreamID(streamID))
	req.Hooks.OnWarning = func(message, where string) {
		log.Warn("Run warning", logfields.Phase(where), slog.String("message", message))
	}

	s.runs.Add(1)
	err = s.runner.Start(ctx, req, func(_ *pipeline.Outcome, err error) {
		defer s.runs.Done()
		if err != nil {
			log.Error("Run failed", logfields.Error(err))
		}
	})
	if err != nil {
		s.runs.Done()
		s.Fail(w, r, err)
		return
	}

	s.Success(w, http.StatusAccepted, RunAccepted{RunID: runID, StreamID: streamID})
}

func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	p := s.runner.Generator().Journal().Projection()
	if p == nil {
		s.Success(w, http.StatusOK, map[string]any{"active": []any{}, "history": []any{}})
		return
	}
	s.Success(w, http.StatusOK, map[string]any{"active": p.Active(), "history": p.History()})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := s.runner.Generator().Journal().Projection()
	if p != nil {
		if summary, ok := p.Run(id); ok {
			s.Success(w, http.StatusOK, summary)
			return
		}
	}
	s.Fail(w, r, derrors.NewError(derrors.CategoryNotFound, "run not found").WithContext("run_id", id).Build())
}

// handleBroadcast publishes the posted JSON value as a data event.
func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamId")
	var payload any
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRunBody)).Decode(&payload); err != nil {
		s.Fail(w, r, badRequest("malformed broadcast payload", err))
		return
	}
	if err := s.runner.Generator().Broadcast(streamID, payload); err != nil {
		s.Fail(w, r, err)
		return
	}
	s.Success(w, http.StatusAccepted, map[string]int{"subscribers": s.hub.Subscribers(streamID)})
}
