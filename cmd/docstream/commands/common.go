package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/nats-io/nats.go"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docstream/internal/ai"
	"git.home.luguber.info/inful/docstream/internal/config"
	"git.home.luguber.info/inful/docstream/internal/eventstore"
	"git.home.luguber.info/inful/docstream/internal/logfields"
	"git.home.luguber.info/inful/docstream/internal/metrics"
	"git.home.luguber.info/inful/docstream/internal/pipeline"
	"git.home.luguber.info/inful/docstream/internal/plugin"
	"git.home.luguber.info/inful/docstream/internal/plugin/builtin"
	"git.home.luguber.info/inful/docstream/internal/stream"
)

const defaultConfigPath = "docstream.yaml"

// Global is passed to every command's Run.
type Global struct {
	Logger *slog.Logger
}

// CLI is the root of the command tree.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"docstream.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Journal string           `help:"SQLite run journal path (empty disables it for one-shot commands)" type:"path"`
	Plugin  []string         `short:"P" help:"Enable a built-in plugin (repeatable)" sep:","`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Generate  GenerateCmd `cmd:"" help:"Generate a document, optionally enhancing and exporting it"`
	Export    ExportCmd   `cmd:"" help:"Export a generated HTML page to other formats"`
	Serve     ServeCmd    `cmd:"" help:"Serve live viewers over WebSocket and SSE"`
	AI        AICmd       `cmd:"" name:"ai" help:"Enhance a document with AI and print the result"`
	ConfigCmd ConfigCmd   `cmd:"" name:"config" help:"Manage the configuration file"`
	Theme     ThemeCmd    `cmd:"" help:"Inspect built-in themes"`
	Info      InfoCmd     `cmd:"" help:"Show build and capability information"`
}

// AfterApply runs after flag parsing; setup logging once.
func (c *CLI) AfterApply(g *Global) error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	g.Logger = logger
	return nil
}

// LoadConfig reads the configuration file. A missing file at the default
// path yields the defaults; an explicitly named file must exist.
func (c *CLI) LoadConfig() (config.RunConfig, error) {
	if c.Config == "" {
		return config.Default(), nil
	}
	if _, err := os.Stat(c.Config); errors.Is(err, os.ErrNotExist) && c.Config == defaultConfigPath {
		slog.Debug("No configuration file, using defaults", logfields.Path(c.Config))
		return config.Default(), nil
	}
	cfg, err := config.Load(c.Config)
	if err != nil {
		return config.RunConfig{}, err
	}
	return cfg.Defaults(), nil
}

// runtime owns the long-lived components a command wires into the pipeline.
type runtime struct {
	hub      *stream.Hub
	journal  *eventstore.Journal
	ai       *ai.Service
	plugins  *plugin.Registry
	nats     *nats.Conn
	registry *prom.Registry
	runner   *pipeline.Runner
	logger   *slog.Logger
}

type runtimeOptions struct {
	journalPath string
	plugins     []string
}

func newRuntime(cfg config.RunConfig, opts runtimeOptions, logger *slog.Logger) (_ *runtime, err error) {
	rt := &runtime{registry: prom.NewRegistry(), plugins: plugin.NewRegistry(), logger: logger}
	defer func() {
		if err != nil {
			_ = rt.Close(context.Background())
		}
	}()
	recorder := metrics.NewPrometheusRecorder(rt.registry)

	for _, name := range opts.plugins {
		p, perr := builtin.New(name)
		if perr != nil {
			return nil, perr
		}
		if perr := rt.plugins.Register(p); perr != nil {
			return nil, perr
		}
	}

	hubOpts := stream.OptionsFromConfig(cfg.Streaming)
	hubOpts.Logger = logger
	hubOpts.Recorder = recorder
	rt.hub = stream.NewHub(hubOpts)

	if opts.journalPath != "" {
		store, serr := eventstore.NewSQLiteStore(opts.journalPath)
		if serr != nil {
			return nil, fmt.Errorf("open run journal: %w", serr)
		}
		rt.journal = eventstore.NewJournal(store, 100, logger)
		if rerr := rt.journal.Rebuild(context.Background()); rerr != nil {
			logger.Warn("Run journal rebuild failed", logfields.Error(rerr))
		}
	}

	cache, err := ai.OpenCache(cfg.AI.Cache)
	if err != nil {
		return nil, fmt.Errorf("open AI cache: %w", err)
	}
	aiOpts := []ai.Option{ai.WithLogger(logger), ai.WithRecorder(recorder)}
	if cache != nil {
		aiOpts = append(aiOpts, ai.WithCache(cache))
	}
	rt.ai = ai.NewService(aiOpts...)

	genOpts := []pipeline.Option{
		pipeline.WithHub(rt.hub),
		pipeline.WithPlugins(rt.plugins),
		pipeline.WithAI(rt.ai),
		pipeline.WithJournal(rt.journal),
		pipeline.WithRecorder(recorder),
		pipeline.WithLogger(logger),
	}
	if cfg.Streaming.Mode == config.StreamModeNATS || cfg.Streaming.NATS.URL != "" {
		url := cfg.Streaming.NATS.URL
		if url == "" {
			url = nats.DefaultURL
		}
		conn, nerr := stream.DialNATS(url)
		if nerr != nil {
			return nil, nerr
		}
		rt.nats = conn
		prefix := cfg.Streaming.NATS.SubjectPrefix
		genOpts = append(genOpts, pipeline.WithMirror(func(string) stream.Transport {
			return stream.NewNATSTransport(sharedConn{conn}, prefix, nil)
		}))
		logger.Info("Mirroring streams to NATS", logfields.URL(url))
	}
	rt.runner = pipeline.NewRunner(pipeline.NewGenerator(genOpts...))
	return rt, nil
}

// sharedConn hides the connection from the transport so closing one
// mirrored stream leaves the connection open for the next run.
type sharedConn struct{ conn *nats.Conn }

func (s sharedConn) Publish(subject string, data []byte) error { return s.conn.Publish(subject, data) }

// Close releases everything the runtime opened.
func (rt *runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.hub != nil {
		errs = append(errs, rt.hub.Shutdown(ctx))
	}
	if rt.plugins != nil {
		errs = append(errs, rt.plugins.Close())
	}
	if rt.ai != nil {
		errs = append(errs, rt.ai.Close())
	}
	if rt.journal != nil {
		errs = append(errs, rt.journal.Close())
	}
	if rt.nats != nil {
		errs = append(errs, rt.nats.Drain())
	}
	return errors.Join(errs...)
}

// warnLogger returns an OnWarning hook that logs through logger.
func warnLogger(logger *slog.Logger) func(message, where string) {
	return func(message, where string) {
		logger.Warn("Run warning", logfields.Phase(where), slog.String("message", message))
	}
}
