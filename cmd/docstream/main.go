package main

import (
	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docstream/cmd/docstream/commands"
	derrors "git.home.luguber.info/inful/docstream/internal/foundation/errors"
	"git.home.luguber.info/inful/docstream/internal/version"
)

func main() {
	var cli commands.CLI
	global := &commands.Global{}
	ctx := kong.Parse(&cli,
		kong.Name("docstream"),
		kong.Description("Stream-rendered documents with AI enhancement and multi-format export."),
		kong.UsageOnError(),
		kong.Vars{"version": version.Get().Version},
		kong.Bind(global, &cli),
	)
	if err := ctx.Run(); err != nil {
		derrors.NewCLIErrorAdapter(cli.Verbose, global.Logger).HandleError(err)
	}
}
