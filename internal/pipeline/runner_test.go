package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docstream/internal/ai"
	"git.home.luguber.info/inful/docstream/internal/config"
	"git.home.luguber.info/inful/docstream/internal/docmodel"
	"git.home.luguber.info/inful/docstream/internal/eventstore"
	"git.home.luguber.info/inful/docstream/internal/export"
	derrors "git.home.luguber.info/inful/docstream/internal/foundation/errors"
	"git.home.luguber.info/inful/docstream/internal/observability"
	"git.home.luguber.info/inful/docstream/internal/plugin"
	"git.home.luguber.info/inful/docstream/internal/render"
	"git.home.luguber.info/inful/docstream/internal/storage"
	"git.home.luguber.info/inful/docstream/internal/stream"
)

func exportingConfig() config.RunConfig {
	off := false
	return config.RunConfig{
		Export: config.ExportConfig{Formats: []string{"html"}, Filename: "report", Store: config.StoreConfig{Kind: "memory"}},
		AI:     config.AIConfig{Provider: "mock", Cache: config.CacheConfig{Enabled: &off}},
	}
}

func newJournal(t *testing.T) *eventstore.Journal {
	t.Helper()
	store, err := eventstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	j := eventstore.NewJournal(store, 10, nil)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRunnerEnhanceGenerateExport(t *testing.T) {
	store := storage.NewMemoryStore()
	journal := newJournal(t)
	mock := &ai.MockProvider{}
	g := NewGenerator(
		WithAI(ai.NewService(ai.WithProvider(mock))),
		WithExporter(export.NewExporter(export.WithStore(store))),
		WithJournal(journal),
	)

	var mu sync.Mutex
	var exported []string
	hooks := Hooks{
		OnExportStart: func(f string) error {
			mu.Lock()
			defer mu.Unlock()
			exported = append(exported, "start:"+f)
			return nil
		},
		OnExportComplete: func(r export.Result) error {
			mu.Lock()
			defer mu.Unlock()
			exported = append(exported, "done:"+r.Format)
			return nil
		},
	}

	out, err := NewRunner(g).Run(t.Context(), Request{
		Document: sampleDoc(),
		Config:   exportingConfig(),
		Hooks:    hooks,
		Prompt:   ai.Prompt{Text: "add a chart"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, mock.Calls())
	require.NotNil(t, out.Enhancement)
	require.Equal(t, 4, out.Generation.Stats.SectionsProcessed)
	require.Equal(t, out.RunID, out.Generation.RunID)
	require.Len(t, out.Export.Results, 1)
	require.Equal(t, []string{"start:html", "done:html"}, exported)

	data, err := store.Get(context.Background(), "report.html")
	require.NoError(t, err)
	require.Contains(t, string(data), "Annual report")

	summary, ok := journal.Projection().Run(out.RunID)
	require.True(t, ok)
	require.Equal(t, "completed", summary.Status)
	require.Equal(t, 4, summary.Sections)
	require.NotNil(t, summary.AI)
	require.Equal(t, "mock", summary.AI.Provider)
	require.Equal(t, "mem://report.html", summary.Exports["html"])

	require.Len(t, journal.Projection().History(), 1)
}

func TestRunnerAIFailureIsSurfaced(t *testing.T) {
	var phases []string
	hooks := Hooks{OnError: func(_ error, phase string) { phases = append(phases, phase) }}
	out, err := NewRunner(NewGenerator()).Run(t.Context(), Request{
		Document: sampleDoc(),
		Config:   exportingConfig(),
		Hooks:    hooks,
		Prompt:   ai.Prompt{Text: "add a chart"},
	})
	require.True(t, derrors.IsKind(err, derrors.KindConfigValidation))
	require.Nil(t, out.Generation)
	require.Equal(t, []string{PhaseAI}, phases)
}

func TestRunnerFallbackOnAIError(t *testing.T) {
	var warnings []string
	hooks := Hooks{OnWarning: func(msg, context string) { warnings = append(warnings, context+": "+msg) }}
	g := NewGenerator(WithExporter(export.NewExporter(export.WithStore(storage.NewMemoryStore()))))
	out, err := NewRunner(g).Run(t.Context(), Request{
		Document:          sampleDoc(),
		Config:            exportingConfig(),
		Hooks:             hooks,
		Prompt:            ai.Prompt{Text: "add a chart"},
		FallbackOnAIError: true,
	})
	require.NoError(t, err)
	require.Nil(t, out.Enhancement)
	require.Equal(t, 3, out.Generation.Stats.SectionsProcessed)
	require.Len(t, warnings, 1)
	require.True(t, strings.HasPrefix(warnings[0], "ai: AI enhancement failed"))
}

func TestRunnerSkipsExportWithoutFormats(t *testing.T) {
	cfg := exportingConfig()
	out, err := NewRunner(NewGenerator()).Run(t.Context(), Request{
		Document:   sampleDoc(),
		Config:     cfg,
		SkipExport: true,
	})
	require.NoError(t, err)
	require.Nil(t, out.Export)
}

func TestRunnerUsesRunIDFromContext(t *testing.T) {
	ctx := observability.WithRunID(t.Context(), "fixed-run")
	out, err := NewRunner(NewGenerator()).Run(ctx, Request{Document: sampleDoc(), SkipExport: true})
	require.NoError(t, err)
	require.Equal(t, "fixed-run", out.RunID)
	require.Equal(t, "fixed-run", out.Generation.RunID)
}

type stamp struct{ plugin.BasePlugin }

func (stamp) Metadata() plugin.Metadata { return plugin.Metadata{Name: "stamp", Version: "v1.0.0"} }

func (stamp) BeforeExport(_ context.Context, _ string, art *render.Artifact) (*render.Artifact, error) {
	return art, nil
}

func (stamp) AfterExport(_ context.Context, format string, data []byte) ([]byte, error) {
	return append(data, []byte("\n<!-- "+format+" -->")...), nil
}

func TestExportAppliesPluginsAndReportsFailures(t *testing.T) {
	reg := plugin.NewRegistry()
	require.NoError(t, reg.Register(stamp{}))
	store := storage.NewMemoryStore()
	journal := newJournal(t)
	g := NewGenerator(
		WithPlugins(reg),
		WithJournal(journal),
		WithExporter(export.NewExporter(export.WithStore(store))),
	)
	ctx := observability.WithRunID(t.Context(), "run-x")
	res, err := g.Generate(ctx, sampleDoc(), config.RunConfig{}, Hooks{})
	require.NoError(t, err)

	var phases []string
	hooks := Hooks{OnError: func(_ error, phase string) { phases = append(phases, phase) }}
	cfg := exportingConfig().Export
	report, err := g.Export(ctx, res.Artifact, []string{"html", "docx"}, cfg, hooks)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	require.Equal(t, []string{"export:docx"}, phases)

	data, err := store.Get(context.Background(), "report.html")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(string(data), "<!-- html -->"))

	summary, ok := journal.Projection().Run("run-x")
	require.True(t, ok)
	require.Contains(t, summary.ExportErrors, "docx")
	require.Contains(t, summary.Exports, "html")
}

func TestRunnerStartRejectsWhileBusy(t *testing.T) {
	r := NewRunner(NewGenerator())
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	hooks := Hooks{OnSectionStart: func(docmodel.Section, int) error {
		once.Do(func() { close(entered) })
		<-release
		return nil
	}}

	done := make(chan error, 1)
	require.NoError(t, r.Start(context.Background(), Request{Document: sampleDoc(), Hooks: hooks, SkipExport: true},
		func(_ *Outcome, err error) { done <- err }))
	<-entered
	require.True(t, r.Busy())

	err := r.Start(t.Context(), Request{Document: sampleDoc(), SkipExport: true}, nil)
	require.True(t, derrors.IsKind(err, derrors.KindConcurrentRun), "got %v", err)
	out, err := r.Run(t.Context(), Request{Document: sampleDoc(), SkipExport: true})
	require.Nil(t, out)
	require.True(t, derrors.IsKind(err, derrors.KindConcurrentRun), "got %v", err)

	close(release)
	require.NoError(t, <-done)
	require.Eventually(t, func() bool { return !r.Busy() }, time.Second, 5*time.Millisecond)
}

func TestRunnerClosesNamedStreamWhenEnhancementFails(t *testing.T) {
	hub, tr, cfg := newStreamingSetup(t)
	_, err := NewRunner(NewGenerator(WithHub(hub))).Run(t.Context(), Request{
		Document: sampleDoc(),
		Config:   cfg,
		Prompt:   ai.Prompt{Text: "add a chart"},
	})
	require.Error(t, err)

	msgs := drain(t, tr, 1)
	require.Equal(t, stream.EventError, msgs[0].Event)
	data := msgs[0].Data.(stream.ErrorData)
	require.Equal(t, PhaseAI, data.Phase)
	require.NotEmpty(t, data.Code)
	require.Zero(t, hub.Subscribers("run-1"))
}
