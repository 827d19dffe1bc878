package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/docstream/internal/ai"
	"git.home.luguber.info/inful/docstream/internal/config"
	"git.home.luguber.info/inful/docstream/internal/docmodel"
	"git.home.luguber.info/inful/docstream/internal/logfields"
	"git.home.luguber.info/inful/docstream/internal/pipeline"
)

// PromptFlags describe an AI enhancement request.
type PromptFlags struct {
	Prompt   string   `short:"p" help:"Enhancement instruction sent to the AI provider"`
	Tone     string   `help:"Tone of the rewrite (professional, casual, technical, executive, academic, creative)"`
	Length   string   `help:"Length of the rewrite (brief, normal, detailed, comprehensive)"`
	Language string   `help:"Output language (BCP 47)"`
	Sections int      `help:"Minimum number of sections in the result"`
	Require  []string `help:"Section types that must appear in the result" sep:","`
	Provider string   `help:"Override the configured AI provider"`
}

func (f PromptFlags) prompt() ai.Prompt {
	p := ai.Prompt{
		Text:     f.Prompt,
		Tone:     ai.Tone(f.Tone),
		Length:   ai.Length(f.Length),
		Language: f.Language,
		Sections: f.Sections,
	}
	for _, t := range f.Require {
		p.SectionTypes = append(p.SectionTypes, docmodel.SectionType(t))
	}
	return p
}

func (f PromptFlags) apply(cfg *config.RunConfig) {
	if f.Provider != "" {
		cfg.AI.Provider = f.Provider
	}
}

// GenerateCmd implements the 'generate' command.
type GenerateCmd struct {
	Data     string   `arg:"" help:"Document file (JSON or YAML)" type:"existingfile"`
	Format   []string `short:"f" help:"Export formats (default: from config)" sep:","`
	Output   string   `short:"o" help:"Output directory for exported files"`
	Filename string   `help:"Base name of exported files"`
	Theme    string   `short:"t" help:"Override the configured theme"`
	NoExport bool     `help:"Generate without exporting"`
	Fallback bool     `help:"Continue with the original document when AI enhancement fails"`

	PromptFlags `embed:""`
}

func (g *GenerateCmd) Run(global *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if g.Output != "" {
		cfg.Export.OutputDir = g.Output
	}
	if g.Filename != "" {
		cfg.Export.Filename = g.Filename
	}
	if g.Theme != "" {
		cfg.Theme.Name = g.Theme
	}
	g.apply(&cfg)

	doc, err := docmodel.LoadFile(g.Data)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(cfg, runtimeOptions{journalPath: root.Journal, plugins: root.Plugin}, global.Logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		_ = rt.Close(closeCtx)
	}()

	req := pipeline.Request{
		Document:          doc,
		Config:            cfg,
		Prompt:            g.prompt(),
		Formats:           g.Format,
		FallbackOnAIError: g.Fallback,
		SkipExport:        g.NoExport,
		Hooks: pipeline.Hooks{
			OnSectionComplete: func(s docmodel.Section, i int) error {
				global.Logger.Debug("Section rendered", logfields.SectionIndex(i), logfields.SectionType(string(s.Type())))
				return nil
			},
			OnWarning: warnLogger(global.Logger),
		},
	}
	out, err := rt.runner.Run(ctx, req)
	if out != nil {
		printOutcome(os.Stdout, out)
	}
	if err != nil {
		return err
	}
	if out.Export != nil && len(out.Export.Failures) > 0 {
		return fmt.Errorf("%d of %d export formats failed", len(out.Export.Failures), len(out.Export.Failures)+len(out.Export.Results))
	}
	return nil
}
