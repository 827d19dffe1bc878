// Package pipeline orchestrates a generation run: it renders a document
// section by section, reports progress through hooks, feeds the broadcast hub
// and hands the finished artifact to AI enhancement and export.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docstream/internal/ai"
	"git.home.luguber.info/inful/docstream/internal/config"
	"git.home.luguber.info/inful/docstream/internal/docmodel"
	"git.home.luguber.info/inful/docstream/internal/eventstore"
	derrors "git.home.luguber.info/inful/docstream/internal/foundation/errors"
	"git.home.luguber.info/inful/docstream/internal/logfields"
	"git.home.luguber.info/inful/docstream/internal/metrics"
	"git.home.luguber.info/inful/docstream/internal/observability"
	"git.home.luguber.info/inful/docstream/internal/plugin"
	"git.home.luguber.info/inful/docstream/internal/render"
	"git.home.luguber.info/inful/docstream/internal/stream"
)

// Phase names reported to OnError and recorded on returned errors.
const (
	PhaseValidate       = "validate"
	PhaseBeforeGenerate = "plugin:before-generate"
	PhaseStart          = "start"
	PhaseAssemble       = "assemble"
	PhaseComplete       = "complete"
	PhaseAI             = "ai"
	PhaseBroadcast      = "broadcast"
)

// SectionPhase names the phase of rendering section i.
func SectionPhase(i int) string { return fmt.Sprintf("section:%d", i) }

// ProgressPhase names the phase of reporting progress after section i.
func ProgressPhase(i int) string { return fmt.Sprintf("progress:%d", i) }

// ExportPhase names the phase of exporting one format.
func ExportPhase(format string) string { return "export:" + format }

// Result is the outcome of Generate. On failure it still carries the
// fragments rendered so far and Stats with Complete unset.
type Result struct {
	RunID     string
	Artifact  *render.Artifact
	Fragments []render.Fragment
	Stats     Stats
	StreamID  string
}

// Generator runs one generation at a time.
type Generator struct {
	renderer render.Renderer
	hub      *stream.Hub
	plugins  *plugin.Registry
	ai       *ai.Service
	exporter Exporter
	journal  *eventstore.Journal
	recorder metrics.Recorder
	logger   *slog.Logger
	mirror   Mirror
	now      func() time.Time

	running atomic.Bool
}

// Mirror returns a transport that follows a streamed run alongside the
// viewers, or nil to skip it. The hub closes it with the stream.
type Mirror func(streamID string) stream.Transport

// Option configures a Generator.
type Option func(*Generator)

// WithRenderer replaces the HTML renderer.
func WithRenderer(r render.Renderer) Option { return func(g *Generator) { g.renderer = r } }

// WithHub sets the hub streamed runs publish to. Without a hub streaming is
// skipped even when enabled in the run config.
func WithHub(h *stream.Hub) Option { return func(g *Generator) { g.hub = h } }

// WithPlugins sets the plugin chain.
func WithPlugins(r *plugin.Registry) Option { return func(g *Generator) { g.plugins = r } }

// WithAI sets the enhancement service.
func WithAI(s *ai.Service) Option { return func(g *Generator) { g.ai = s } }

// WithExporter replaces the export pipeline.
func WithExporter(e Exporter) Option { return func(g *Generator) { g.exporter = e } }

// WithJournal records run events.
func WithJournal(j *eventstore.Journal) Option { return func(g *Generator) { g.journal = j } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option { return func(g *Generator) { g.recorder = r } }

// WithMirror subscribes an extra transport to every streamed run.
func WithMirror(m Mirror) Option { return func(g *Generator) { g.mirror = m } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(g *Generator) { g.logger = l } }

// NewGenerator creates a generator with the HTML renderer and default export backends.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{logger: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(g)
	}
	g.recorder = metrics.OrNoop(g.recorder)
	if g.renderer == nil {
		g.renderer = render.NewHTMLRenderer()
	}
	return g
}

// Running reports whether a run is in flight.
func (g *Generator) Running() bool { return g.running.Load() }

// Journal returns the run journal, which may be nil.
func (g *Generator) Journal() *eventstore.Journal { return g.journal }

// Hub returns the broadcast hub, which may be nil.
func (g *Generator) Hub() *stream.Hub { return g.hub }

// run holds the mutable state of one Generate call.
type run struct {
	g           *Generator
	id          string
	cfg         config.RunConfig
	hooks       Hooks
	log         *slog.Logger
	stats       Stats
	heapStart   uint64
	streamID    string
	streamStart time.Time
	fragments   []render.Fragment
}

// Generate renders doc under cfg. Sections are processed in order and each is
// published to the run's stream when streaming is enabled. Any hook, render or
// plugin failure, or cancellation of ctx, ends the run: OnError receives the
// phase, an open stream is closed with an error event, and the partial Result
// is returned together with the error. A second call while a run is active
// fails with ConcurrentRunError and leaves the active run untouched.
func (g *Generator) Generate(ctx context.Context, doc *docmodel.Document, cfg config.RunConfig, hooks Hooks) (*Result, error) {
	if !g.running.CompareAndSwap(false, true) {
		return nil, derrors.ConcurrentRunError("a generation run is already in progress").
			WithPhase(PhaseValidate).Build()
	}
	defer g.running.Store(false)

	runID := observability.GetContext(ctx).RunID
	if runID == "" {
		runID = uuid.Must(uuid.NewV7()).String()
		ctx = observability.WithRunID(ctx, runID)
	}
	r := &run{
		g:         g,
		id:        runID,
		hooks:     hooks,
		log:       g.logger.With(logfields.RunID(runID)),
		stats:     Stats{StartTime: g.now()},
		heapStart: heapInUse(),
	}
	return r.execute(ctx, doc, cfg)
}

func (r *run) execute(ctx context.Context, doc *docmodel.Document, cfg config.RunConfig) (*Result, error) {
	g := r.g

	cfg = cfg.Clone().Defaults()
	if err := cfg.Validate(); err != nil {
		return r.fail(ctx, err, PhaseValidate)
	}
	if doc == nil {
		return r.fail(ctx, derrors.DataValidationError("document is required").Build(), PhaseValidate)
	}
	if err := doc.Validate(); err != nil {
		return r.fail(ctx, err, PhaseValidate)
	}
	r.cfg = cfg
	doc = doc.Clone()

	next, err := g.plugins.BeforeGenerate(ctx, doc, cfg)
	if err != nil {
		return r.fail(ctx, err, PhaseBeforeGenerate)
	}
	doc = next
	total := len(doc.Sections)

	if err := r.hooks.start(); err != nil {
		return r.fail(ctx, err, PhaseStart)
	}
	if cfg.Streaming.Enabled() && g.hub != nil {
		r.streamID = cfg.Streaming.StreamID
		if r.streamID == "" {
			r.streamID = uuid.Must(uuid.NewV7()).String()
		}
		r.streamStart = g.now()
		r.log = r.log.With(logfields.StreamID(r.streamID))
		ctx = observability.WithStreamID(ctx, r.streamID)
		if err := r.hooks.streamStart(r.streamID); err != nil {
			return r.fail(ctx, err, PhaseStart)
		}
		r.attachMirror()
		r.publish(stream.EventStart, stream.StartData{
			RunID:    r.id,
			Title:    doc.Title(),
			Sections: total,
			Theme:    cfg.Theme.Name,
		})
	}
	r.journal(ctx, func() (eventstore.Event, error) {
		return eventstore.NewRunStarted(r.id, eventstore.RunStartedData{
			Title: doc.Title(), Sections: total, Theme: cfg.Theme.Name, StreamID: r.streamID,
		})
	})
	r.log.Info("Generation started", logfields.Count(total), logfields.Theme(cfg.Theme.Name))

	for i, s := range doc.Sections {
		if err := r.section(ctx, s, i, total); err != nil {
			return r.fail(ctx, err, SectionPhase(i))
		}
		if err := r.hooks.progress(i+1, total); err != nil {
			return r.fail(ctx, err, ProgressPhase(i))
		}
		if r.streamID != "" {
			r.publish(stream.EventProgress, stream.ProgressData{
				Current: i + 1,
				Total:   total,
				Percent: float64(i+1) * 100 / float64(total),
			})
		}
	}

	art, err := r.assemble(ctx, doc)
	if err != nil {
		return r.fail(ctx, err, PhaseAssemble)
	}

	r.stats.PagesGenerated = art.Pages
	r.stats.CharactersWritten += art.Cover.Characters
	r.stats.AnimationsRendered += art.Cover.Animations
	r.stats.finish(g.now(), r.heapStart, r.streamStart)
	r.stats.Complete = true
	frozen := r.stats

	if err := r.hooks.complete(frozen); err != nil {
		return r.fail(ctx, err, PhaseComplete)
	}
	if r.streamID != "" {
		r.close(stream.EventComplete, stream.CompleteData{
			RunID:      r.id,
			Sections:   frozen.SectionsProcessed,
			Characters: frozen.CharactersWritten,
			Pages:      frozen.PagesGenerated,
			DurationMS: frozen.Duration.Milliseconds(),
		})
		if err := r.hooks.streamEnd(r.streamID); err != nil {
			r.hooks.warn(err.Error(), PhaseComplete)
		}
	}

	r.journal(ctx, func() (eventstore.Event, error) {
		return eventstore.NewRunCompleted(r.id, eventstore.RunCompletedData{
			Sections:   frozen.SectionsProcessed,
			Characters: frozen.CharactersWritten,
			Pages:      frozen.PagesGenerated,
			DurationMS: frozen.Duration.Milliseconds(),
		})
	})
	g.recorder.ObserveRunDuration(frozen.Duration)
	g.recorder.IncRunOutcome(metrics.ResultSuccess)
	r.log.Info("Generation completed",
		logfields.Count(frozen.SectionsProcessed),
		slog.Int("pages", frozen.PagesGenerated),
		slog.Int("characters", frozen.CharactersWritten),
		logfields.DurationMS(float64(frozen.Duration.Milliseconds())))

	return &Result{RunID: r.id, Artifact: art, Fragments: r.fragments, Stats: frozen, StreamID: r.streamID}, nil
}

func (r *run) section(ctx context.Context, s docmodel.Section, i, total int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, span := observability.StartPhase(ctx, r.log, SectionPhase(i))
	frag, err := r.renderSection(ctx, s, i)
	d := observability.EndSpan(span, err)
	r.g.recorder.ObservePhaseDuration("section", d)
	if err != nil {
		return err
	}
	r.fragments = append(r.fragments, frag)
	r.stats.SectionsProcessed++
	r.stats.CharactersWritten += frag.Characters
	r.stats.AnimationsRendered += frag.Animations
	r.g.recorder.IncSectionRendered(string(s.Type()))

	if r.streamID == "" {
		return nil
	}
	data := stream.SectionData{
		Index:      i,
		Total:      total,
		Type:       string(frag.Type),
		ID:         frag.ID,
		HTML:       frag.HTML,
		Characters: frag.Characters,
		Animation:  string(r.cfg.Animation.Type),
		Speed:      int(r.cfg.Animation.Speed.Milliseconds()),
	}
	data, err = r.g.plugins.OnStream(ctx, data, r.streamID)
	if err != nil {
		return err
	}
	if err := r.hooks.streamData(data); err != nil {
		return err
	}
	r.publish(stream.EventSection, data)
	return nil
}

func (r *run) renderSection(ctx context.Context, s docmodel.Section, i int) (render.Fragment, error) {
	if err := r.hooks.sectionStart(s, i); err != nil {
		return render.Fragment{}, err
	}
	frag, err := r.g.renderer.RenderSection(ctx, s, i, r.cfg)
	if err != nil {
		return render.Fragment{}, err
	}
	if err := r.hooks.sectionComplete(s, i); err != nil {
		return render.Fragment{}, err
	}
	return frag, nil
}

func (r *run) assemble(ctx context.Context, doc *docmodel.Document) (*render.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, span := observability.StartPhase(ctx, r.log, PhaseAssemble)
	art, err := r.assembleArtifact(ctx, doc)
	r.g.recorder.ObservePhaseDuration(PhaseAssemble, observability.EndSpan(span, err))
	return art, err
}

func (r *run) assembleArtifact(ctx context.Context, doc *docmodel.Document) (*render.Artifact, error) {
	cover, err := r.g.renderer.RenderCover(ctx, doc, r.cfg)
	if err != nil {
		return nil, err
	}
	art, err := r.g.renderer.Assemble(ctx, doc, cover, r.fragments, r.cfg)
	if err != nil {
		return nil, err
	}
	html, err := r.g.plugins.AfterGenerate(ctx, art.HTML, r.cfg)
	if err != nil {
		return nil, err
	}
	art.HTML = html
	return art, nil
}

// publish hands a message to the hub. Hub failures degrade streaming only.
func (r *run) publish(event stream.Event, data any) {
	if err := r.g.hub.Publish(r.streamID, stream.NewMessage(event, r.streamID, data)); err != nil {
		r.log.Warn("Stream publish failed", logfields.Event(string(event)), logfields.Error(err))
		r.hooks.warn(err.Error(), "stream:"+string(event))
	}
}

func (r *run) attachMirror() {
	if r.g.mirror == nil {
		return
	}
	tr := r.g.mirror(r.streamID)
	if tr == nil {
		return
	}
	info := stream.ClientInfo{ID: uuid.Must(uuid.NewV7()).String(), Transport: "mirror"}
	if _, err := r.g.hub.Subscribe(r.streamID, info, tr); err != nil {
		r.log.Warn("Stream mirror not attached", logfields.Error(err))
		r.hooks.warn(err.Error(), "stream:mirror")
		_ = tr.Close()
	}
}

func (r *run) close(event stream.Event, data any) {
	if err := r.g.hub.CloseStream(r.streamID, stream.NewMessage(event, r.streamID, data)); err != nil {
		r.log.Warn("Stream close failed", logfields.Event(string(event)), logfields.Error(err))
		r.hooks.warn(err.Error(), "stream:"+string(event))
	}
}

func (r *run) journal(ctx context.Context, build func() (eventstore.Event, error)) {
	if r.g.journal == nil {
		return
	}
	e, err := build()
	if err != nil {
		r.log.Warn("Failed to build journal event", logfields.Error(err))
		return
	}
	r.g.journal.Record(ctx, e)
}

// fail terminates the run at phase.
func (r *run) fail(ctx context.Context, cause error, phase string) (*Result, error) {
	g := r.g
	err := classify(cause, phase)
	// stats already frozen for OnComplete keep their end time
	if r.stats.EndTime.IsZero() {
		r.stats.finish(g.now(), r.heapStart, r.streamStart)
	}
	r.stats.Complete = false

	r.hooks.failed(err, phase)

	if r.streamID != "" {
		data := stream.ErrorData{Message: err.Error(), Phase: phase}
		if ce, ok := derrors.AsClassified(err); ok {
			data.Code = ce.Code()
			data.Message = ce.Message()
		}
		r.close(stream.EventError, data)
		if herr := r.hooks.streamEnd(r.streamID); herr != nil {
			r.log.Warn("OnStreamEnd hook failed", logfields.Error(herr))
		}
	}

	r.journal(ctx, func() (eventstore.Event, error) {
		data := eventstore.RunFailedData{Phase: phase, Message: err.Error()}
		if ce, ok := derrors.AsClassified(err); ok {
			data.Kind = ce.Kind().String()
			data.Code = ce.Code()
		}
		return eventstore.NewRunFailed(r.id, data)
	})

	outcome := metrics.ResultFailed
	if errors.Is(cause, context.Canceled) {
		outcome = metrics.ResultCanceled
	} else if errors.Is(cause, context.DeadlineExceeded) {
		outcome = metrics.ResultTimeout
	}
	g.recorder.ObserveRunDuration(r.stats.Duration)
	g.recorder.IncRunOutcome(outcome)
	r.log.Error("Generation failed", logfields.Phase(phase), logfields.Error(err))

	return &Result{RunID: r.id, Fragments: r.fragments, Stats: r.stats, StreamID: r.streamID}, err
}

// classify ensures err is a ClassifiedError carrying a phase. Errors that
// already carry one keep it.
func classify(err error, phase string) error {
	if ce, ok := err.(*derrors.ClassifiedError); ok {
		if ce.Phase() != "" {
			return ce
		}
		return ce.WithContext(derrors.ContextPhase, phase)
	}
	b := derrors.WrapError(err, derrors.CategoryGeneration, "generation failed")
	switch {
	case errors.Is(err, context.Canceled):
		b = derrors.WrapError(err, derrors.CategoryRuntime, "generation canceled")
	case errors.Is(err, context.DeadlineExceeded):
		b = derrors.WrapError(err, derrors.CategoryRuntime, "generation timed out")
	}
	return b.WithPhase(phase).Build()
}
