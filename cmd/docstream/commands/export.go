package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"git.home.luguber.info/inful/docstream/internal/logfields"
	"git.home.luguber.info/inful/docstream/internal/pipeline"
	"git.home.luguber.info/inful/docstream/internal/render"
)

// ExportCmd implements the 'export' command: it re-exports a page written
// by an earlier run without generating it again.
type ExportCmd struct {
	Page     string   `arg:"" help:"Generated HTML page" type:"existingfile"`
	Format   []string `short:"f" help:"Export formats (default: from config)" sep:","`
	Output   string   `short:"o" help:"Output directory for exported files"`
	Filename string   `help:"Base name of exported files"`
	Quality  string   `help:"Export quality (draft, screen, print, press)"`
}

func (e *ExportCmd) Run(global *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if e.Output != "" {
		cfg.Export.OutputDir = e.Output
	}
	if e.Filename != "" {
		cfg.Export.Filename = e.Filename
	}
	if e.Quality != "" {
		cfg.Export.Quality = e.Quality
	}

	f, err := os.Open(e.Page)
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	art, err := render.ParseHTML(f)
	_ = f.Close()
	if err != nil {
		return err
	}
	art.Config = cfg

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(cfg, runtimeOptions{plugins: root.Plugin}, global.Logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		_ = rt.Close(closeCtx)
	}()

	hooks := pipeline.Hooks{
		OnExportStart: func(format string) error {
			global.Logger.Debug("Exporting", logfields.Format(format), logfields.Path(e.Page))
			return nil
		},
		OnWarning: warnLogger(global.Logger),
	}
	report, err := rt.runner.Generator().Export(ctx, art, e.Format, cfg.Export, hooks)
	if report != nil {
		printReport(os.Stdout, art.Title, report)
	}
	if err != nil {
		return err
	}
	if len(report.Failures) > 0 {
		names := make([]string, 0, len(report.Failures))
		for _, f := range report.Failures {
			names = append(names, f.Format)
		}
		return fmt.Errorf("%d of %d export formats failed: %s",
			len(report.Failures), len(report.Failures)+len(report.Results), strings.Join(names, ", "))
	}
	return nil
}
