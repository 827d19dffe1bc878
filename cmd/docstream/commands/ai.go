package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/docstream/internal/docmodel"
	derrors "git.home.luguber.info/inful/docstream/internal/foundation/errors"
	"git.home.luguber.info/inful/docstream/internal/logfields"
	"git.home.luguber.info/inful/docstream/internal/pipeline"
)

// AICmd implements the 'ai' command: enhance only, no rendering.
type AICmd struct {
	Data   string `arg:"" help:"Document file (JSON or YAML)" type:"existingfile"`
	Output string `short:"o" help:"Write the enhanced document here instead of stdout"`

	PromptFlags `embed:""`
}

func (a *AICmd) Run(global *Global, root *CLI) error {
	if a.Prompt == "" {
		return derrors.ValidationError("--prompt is required").Build()
	}
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	a.apply(&cfg)

	doc, err := docmodel.LoadFile(a.Data)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(cfg, runtimeOptions{journalPath: root.Journal}, global.Logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		_ = rt.Close(closeCtx)
	}()

	resp, err := rt.runner.Generator().Enhance(ctx, doc, a.prompt(), cfg.AI, pipeline.Hooks{OnWarning: warnLogger(global.Logger)})
	if err != nil {
		return err
	}
	global.Logger.Info("Document enhanced",
		logfields.Provider(resp.Metadata.Provider),
		logfields.Model(resp.Metadata.Model),
		logfields.Count(len(resp.Document.Sections)),
		logfields.DurationMS(float64(resp.Metadata.GenerationTime.Milliseconds())))

	data, err := json.MarshalIndent(resp.Document, "", "  ")
	if err != nil {
		return fmt.Errorf("encode enhanced document: %w", err)
	}
	data = append(data, '\n')
	if a.Output == "" || a.Output == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(a.Output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", a.Output, err)
	}
	return nil
}
