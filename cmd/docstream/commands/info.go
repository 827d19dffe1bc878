package commands

import (
	"fmt"
	"os"
	"strings"

	"git.home.luguber.info/inful/docstream/internal/export"
	"git.home.luguber.info/inful/docstream/internal/plugin/builtin"
	"git.home.luguber.info/inful/docstream/internal/theme"
	"git.home.luguber.info/inful/docstream/internal/version"
)

// InfoCmd implements the 'info' command.
type InfoCmd struct{}

func (InfoCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	v := version.Get()
	w := os.Stdout
	fmt.Fprintln(w, headingStyle.Render("docstream "+v.Version))
	field(w, "Commit", v.Commit)
	field(w, "Built", v.BuildTime)
	field(w, "Go", v.GoVersion+" "+v.Platform)
	field(w, "Config", root.Config)
	field(w, "Themes", strings.Join(theme.Names(), ", "))
	field(w, "Formats", strings.Join(export.DefaultRegistry(cfg.Export.Commands).Formats(), ", "))
	field(w, "Plugins", strings.Join(builtin.Names(), ", "))
	field(w, "AI", cfg.AI.Provider)
	field(w, "Streaming", fmt.Sprintf("%s on %s:%d", cfg.Streaming.Mode, cfg.Streaming.Host, cfg.Streaming.Port))
	return nil
}
