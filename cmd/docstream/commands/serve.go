package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"git.home.luguber.info/inful/docstream/internal/api"
	"git.home.luguber.info/inful/docstream/internal/config"
	"git.home.luguber.info/inful/docstream/internal/docmodel"
	derrors "git.home.luguber.info/inful/docstream/internal/foundation/errors"
	"git.home.luguber.info/inful/docstream/internal/logfields"
	"git.home.luguber.info/inful/docstream/internal/pipeline"
	"git.home.luguber.info/inful/docstream/internal/schedule"
	"git.home.luguber.info/inful/docstream/internal/services"
	"git.home.luguber.info/inful/docstream/internal/watch"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Data     string        `arg:"" optional:"" help:"Document file regenerated on start, on change (--watch) or periodically (--every)" type:"existingfile"`
	Host     string        `help:"Listen host (default: from config)"`
	Port     int           `help:"Listen port (default: from config)"`
	Watch    bool          `short:"w" help:"Regenerate when the document file changes"`
	Every    time.Duration `help:"Regenerate on a fixed interval (e.g. 5m)"`
	StreamID string        `name:"stream-id" help:"Stream id regenerations publish to (default: document file name)"`
}

func (s *ServeCmd) Run(global *Global, root *CLI) error {
	if s.Data == "" && (s.Watch || s.Every > 0) {
		return derrors.ValidationError("--watch and --every need a document file").Build()
	}
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if s.Host != "" {
		cfg.Streaming.Host = s.Host
	}
	if s.Port != 0 {
		cfg.Streaming.Port = s.Port
	}
	if !cfg.Streaming.Enabled() {
		cfg.Streaming.Mode = config.StreamModeWebSocket
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	journal := root.Journal
	if journal == "" {
		journal = ":memory:"
	}
	rt, err := newRuntime(cfg, runtimeOptions{journalPath: journal, plugins: root.Plugin}, global.Logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := api.NewServer(cfg, rt.runner, api.WithRegistry(rt.registry), api.WithLogger(global.Logger))
	errCh := make(chan error, 1)

	orch := services.NewOrchestrator(global.Logger)
	register := func(svc services.Service) {
		if err == nil {
			err = orch.Register(svc)
		}
	}
	register(services.Func{
		ServiceName: "runtime",
		OnStop:      rt.Close,
	})
	register(services.Func{
		ServiceName: "http",
		DependsOn:   []string{"runtime"},
		OnStart: func(context.Context) error {
			go func() { errCh <- srv.Start() }()
			return nil
		},
		OnStop: srv.Shutdown,
	})
	for _, svc := range s.jobs(ctx, cfg, rt.runner, global.Logger) {
		register(svc)
	}
	if err == nil {
		err = orch.StartAll(ctx)
	}
	if err == nil {
		select {
		case err = <-errCh:
		case <-ctx.Done():
			global.Logger.Info("Shutdown signal received, stopping server")
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if serr := orch.StopAll(stopCtx); serr != nil {
		global.Logger.Warn("Shutdown incomplete", logfields.Error(serr))
	}
	if info, _ := orch.Info("runtime"); info.Status == services.StatusNotStarted {
		_ = rt.Close(stopCtx)
	}
	return err
}

// jobs returns the regeneration services for the document file: one run at
// start, plus the watcher and the scheduler when requested. Runs use ctx,
// not the bounded start context.
func (s *ServeCmd) jobs(ctx context.Context, cfg config.RunConfig, runner *pipeline.Runner, logger *slog.Logger) []services.Service {
	if s.Data == "" {
		return nil
	}
	regen := s.regenerator(cfg, runner, logger)
	logged := func(ctx context.Context, _ string) {
		if err := regen(ctx); err != nil {
			logger.Error("Regeneration failed", logfields.Error(err))
		}
	}
	deps := []string{"http"}
	out := []services.Service{services.Func{
		ServiceName: "regenerate",
		DependsOn:   deps,
		OnStart: func(context.Context) error {
			go logged(ctx, s.Data)
			return nil
		},
	}}

	if s.Watch {
		var w *watch.Watcher
		out = append(out, services.Func{
			ServiceName: "watch",
			DependsOn:   deps,
			OnStart: func(context.Context) error {
				var err error
				if w, err = watch.New(s.Data, logged, watch.WithLogger(logger)); err != nil {
					return err
				}
				if err = w.Start(ctx); err != nil {
					_ = w.Stop()
				}
				return err
			},
			OnStop: func(context.Context) error { return w.Stop() },
		})
	}
	if s.Every > 0 {
		var sched *schedule.Scheduler
		out = append(out, services.Func{
			ServiceName: "schedule",
			DependsOn:   deps,
			OnStart: func(context.Context) error {
				var err error
				if sched, err = schedule.New(logger); err != nil {
					return err
				}
				if _, err = sched.Every("regenerate", s.Every, regen); err != nil {
					return err
				}
				sched.Start()
				return nil
			},
			OnStop: func(context.Context) error { return sched.Stop() },
		})
	}
	return out
}

// regenerator reloads the document and streams a run to a fixed stream id.
// A regeneration requested while one is running is skipped.
func (s *ServeCmd) regenerator(cfg config.RunConfig, runner *pipeline.Runner, logger *slog.Logger) schedule.Task {
	streamID := s.StreamID
	if streamID == "" {
		streamID = strings.TrimSuffix(filepath.Base(s.Data), filepath.Ext(s.Data))
	}
	cfg.Streaming.StreamID = streamID
	log := logger.With(logfields.StreamID(streamID), logfields.Path(s.Data))

	return func(ctx context.Context) error {
		doc, err := docmodel.LoadFile(s.Data)
		if err != nil {
			log.Error("Document reload failed", logfields.Error(err))
			return err
		}
		out, err := runner.Run(ctx, pipeline.Request{
			Document: doc,
			Config:   cfg,
			Hooks:    pipeline.Hooks{OnWarning: warnLogger(log)},
		})
		if derrors.IsKind(err, derrors.KindConcurrentRun) {
			log.Info("Regeneration skipped, a run is in progress")
			return nil
		}
		if err != nil {
			return fmt.Errorf("regenerate %s: %w", s.Data, err)
		}
		log.Info("Document regenerated", logfields.RunID(out.RunID), logfields.Count(out.Generation.Stats.SectionsProcessed))
		return nil
	}
}
