package pipeline

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docstream/internal/ai"
	"git.home.luguber.info/inful/docstream/internal/config"
	"git.home.luguber.info/inful/docstream/internal/docmodel"
	"git.home.luguber.info/inful/docstream/internal/export"
	derrors "git.home.luguber.info/inful/docstream/internal/foundation/errors"
	"git.home.luguber.info/inful/docstream/internal/logfields"
	"git.home.luguber.info/inful/docstream/internal/observability"
	"git.home.luguber.info/inful/docstream/internal/stream"
)

// Request is one end-to-end run.
type Request struct {
	Document *docmodel.Document
	Config   config.RunConfig
	Hooks    Hooks
	// Prompt enables AI enhancement when its text is set.
	Prompt ai.Prompt
	// Formats to export; nil uses Config.Export.Formats, and an empty
	// Config.Export.Formats skips export.
	Formats []string
	// FallbackOnAIError continues with the original document when
	// enhancement fails. The failure is reported through OnWarning.
	FallbackOnAIError bool
	// SkipExport stops after generation.
	SkipExport bool
}

// Outcome gathers everything a run produced.
type Outcome struct {
	RunID       string
	Generation  *Result
	Enhancement *ai.Response
	Export      *export.Report
}

// Runner composes enhance, generate and export on one Generator. It admits
// one run at a time, enhancement included.
type Runner struct {
	gen  *Generator
	busy atomic.Bool
}

// NewRunner wraps g.
func NewRunner(g *Generator) *Runner { return &Runner{gen: g} }

// Generator returns the wrapped generator.
func (r *Runner) Generator() *Generator { return r.gen }

func errRunInProgress() error {
	return derrors.ConcurrentRunError("a generation run is already in progress").
		WithPhase(PhaseValidate).Build()
}

// Busy reports whether a run holds the runner.
func (r *Runner) Busy() bool { return r.busy.Load() }

// Run executes req. Export failures of individual formats do not fail the
// run; they are listed in Outcome.Export. A call while another run holds the
// runner fails with ConcurrentRunError.
func (r *Runner) Run(ctx context.Context, req Request) (*Outcome, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return nil, errRunInProgress()
	}
	defer r.busy.Store(false)
	return r.run(ctx, req)
}

// Start admits req synchronously and runs it in the background; done, when
// set, receives the outcome. It fails at once with ConcurrentRunError when
// the runner is busy, so a caller can reject the request before replying.
func (r *Runner) Start(ctx context.Context, req Request, done func(*Outcome, error)) error {
	if !r.busy.CompareAndSwap(false, true) {
		return errRunInProgress()
	}
	go func() {
		out, err := r.run(ctx, req)
		r.busy.Store(false)
		if done != nil {
			done(out, err)
		}
	}()
	return nil
}

func (r *Runner) run(ctx context.Context, req Request) (*Outcome, error) {
	out, err := r.execute(ctx, req)
	if err != nil {
		r.closeUnopened(req.Config, out, err)
	}
	return out, err
}

// closeUnopened ends a named stream with an error event when the run failed
// before Generate opened it, so viewers that subscribed ahead of the run are
// released.
func (r *Runner) closeUnopened(cfg config.RunConfig, out *Outcome, cause error) {
	hub := r.gen.hub
	streamID := cfg.Streaming.StreamID
	if hub == nil || streamID == "" || !cfg.Streaming.Enabled() {
		return
	}
	if out != nil && out.Generation != nil && out.Generation.StreamID != "" {
		return
	}
	// the stream may belong to the run that holds the generator
	if derrors.IsKind(cause, derrors.KindConcurrentRun) {
		return
	}
	data := stream.ErrorData{Message: cause.Error(), Phase: PhaseValidate}
	if ce, ok := derrors.AsClassified(cause); ok {
		data.Code = ce.Code()
		data.Message = ce.Message()
		if p := ce.Phase(); p != "" {
			data.Phase = p
		}
	}
	if err := hub.CloseStream(streamID, stream.NewMessage(stream.EventError, streamID, data)); err != nil {
		r.gen.logger.Warn("Stream close failed", logfields.StreamID(streamID), logfields.Error(err))
	}
}

func (r *Runner) execute(ctx context.Context, req Request) (*Outcome, error) {
	runID := observability.GetContext(ctx).RunID
	if runID == "" {
		runID = uuid.Must(uuid.NewV7()).String()
		ctx = observability.WithRunID(ctx, runID)
	}
	out := &Outcome{RunID: runID}

	cfg := req.Config.Clone().Defaults()
	doc := req.Document

	if strings.TrimSpace(req.Prompt.Text) != "" {
		resp, err := r.gen.Enhance(ctx, doc, req.Prompt, cfg.AI, req.Hooks)
		switch {
		case err == nil:
			out.Enhancement = resp
			doc = resp.Document
		case req.FallbackOnAIError:
			req.Hooks.warn("AI enhancement failed, continuing with the original document: "+err.Error(), PhaseAI)
		default:
			return out, err
		}
	}

	res, err := r.gen.Generate(ctx, doc, cfg, req.Hooks)
	out.Generation = res
	if err != nil {
		return out, err
	}

	if req.SkipExport {
		return out, nil
	}
	formats := req.Formats
	if formats == nil {
		formats = cfg.Export.Formats
	}
	if len(formats) == 0 {
		return out, nil
	}
	report, err := r.gen.Export(ctx, res.Artifact, formats, cfg.Export, req.Hooks)
	out.Export = report
	return out, err
}
