package pipeline

import (
	"context"

	"git.home.luguber.info/inful/docstream/internal/ai"
	"git.home.luguber.info/inful/docstream/internal/config"
	"git.home.luguber.info/inful/docstream/internal/docmodel"
	"git.home.luguber.info/inful/docstream/internal/eventstore"
	"git.home.luguber.info/inful/docstream/internal/export"
	derrors "git.home.luguber.info/inful/docstream/internal/foundation/errors"
	"git.home.luguber.info/inful/docstream/internal/logfields"
	"git.home.luguber.info/inful/docstream/internal/observability"
	"git.home.luguber.info/inful/docstream/internal/render"
	"git.home.luguber.info/inful/docstream/internal/stream"
)

// Exporter is the export pipeline as seen by the generator.
type Exporter interface {
	ExportAll(ctx context.Context, art *render.Artifact, formats []string, cfg config.ExportConfig, cb export.Callbacks) (*export.Report, error)
}

// Enhance rewrites doc through the AI service. Failures are reported to
// OnError with phase "ai" and returned; the original document is never
// substituted here.
func (g *Generator) Enhance(ctx context.Context, doc *docmodel.Document, prompt ai.Prompt, cfg config.AIConfig, hooks Hooks) (*ai.Response, error) {
	if g.ai == nil {
		err := derrors.ConfigValidationError("AI enhancement is not configured").WithPhase(PhaseAI).Build()
		hooks.failed(err, PhaseAI)
		return nil, err
	}
	ctx, span := observability.StartPhase(ctx, g.logger, PhaseAI)
	resp, err := g.ai.Enhance(ctx, doc, prompt, cfg)
	g.recorder.ObservePhaseDuration(PhaseAI, observability.EndSpan(span, err))
	if err != nil {
		err = classify(err, PhaseAI)
		hooks.failed(err, PhaseAI)
		return nil, err
	}

	if runID := observability.GetContext(ctx).RunID; runID != "" && g.journal != nil {
		e, jerr := eventstore.NewRunEnhanced(runID, eventstore.RunEnhancedData{
			Provider:   resp.Metadata.Provider,
			Model:      resp.Metadata.Model,
			Attempts:   resp.Metadata.Attempts,
			Cached:     resp.Metadata.Cached,
			TokensUsed: resp.Metadata.TokensUsed,
			DurationMS: resp.Metadata.GenerationTime.Milliseconds(),
		})
		if jerr == nil {
			g.journal.Record(ctx, e)
		}
	}
	return resp, nil
}

// Export writes art in every requested format. Plugin export transformers
// run around each backend, OnExportStart and OnExportComplete bracket each
// format and a failed format is reported to OnError as "export:<format>"
// without stopping the others.
func (g *Generator) Export(ctx context.Context, art *render.Artifact, formats []string, cfg config.ExportConfig, hooks Hooks) (*export.Report, error) {
	ex := g.exporter
	if ex == nil {
		ex = export.NewExporter(
			export.WithRegistry(export.DefaultRegistry(cfg.Commands)),
			export.WithLogger(g.logger),
			export.WithRecorder(g.recorder),
		)
	}
	runID := observability.GetContext(ctx).RunID

	cb := export.Callbacks{
		OnStart: hooks.exportStart,
		Prepare: func(format string, a *render.Artifact) (*render.Artifact, error) {
			return g.plugins.BeforeExport(ctx, format, a)
		},
		Transform: func(format string, data []byte) ([]byte, error) {
			return g.plugins.AfterExport(ctx, format, data)
		},
		OnComplete: func(res export.Result) error {
			if err := hooks.exportComplete(res); err != nil {
				return err
			}
			if runID != "" && g.journal != nil {
				if e, err := eventstore.NewRunExported(runID, eventstore.RunExportedData{
					Format: res.Format, Path: res.Path, Size: res.Size, Checksum: res.Checksum, Pages: res.Pages,
				}); err == nil {
					g.journal.Record(ctx, e)
				}
			}
			return nil
		},
		OnError: func(format string, err error) {
			hooks.failed(err, ExportPhase(format))
			if runID != "" && g.journal != nil {
				if e, jerr := eventstore.NewExportFailed(runID, eventstore.ExportFailedData{
					Format: format, Message: err.Error(),
				}); jerr == nil {
					g.journal.Record(ctx, e)
				}
			}
		},
	}

	ctx, span := observability.StartPhase(ctx, g.logger, "export")
	report, err := ex.ExportAll(ctx, art, formats, cfg, cb)
	g.recorder.ObservePhaseDuration("export", observability.EndSpan(span, err))
	if err != nil && (report == nil || len(report.Failures) == 0) {
		// the call failed before any format ran
		hooks.failed(err, "export")
	}
	return report, err
}

// Broadcast publishes an ad-hoc data message to streamID, outside any run.
func (g *Generator) Broadcast(streamID string, data any) error {
	if g.hub == nil {
		return derrors.StreamError("streaming is not configured").WithPhase(PhaseBroadcast).Build()
	}
	if streamID == "" {
		return derrors.StreamError("stream id is required").WithPhase(PhaseBroadcast).Build()
	}
	if err := g.hub.Publish(streamID, stream.NewMessage(stream.EventData, streamID, data)); err != nil {
		return err
	}
	g.logger.Debug("Broadcast published", logfields.StreamID(streamID))
	return nil
}
