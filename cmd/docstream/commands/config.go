package commands

import (
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/docstream/internal/config"
)

// ConfigCmd groups configuration subcommands.
type ConfigCmd struct {
	Init ConfigInitCmd `cmd:"" help:"Write a default configuration file"`
}

// ConfigInitCmd implements 'config init'.
type ConfigInitCmd struct {
	Force  bool   `help:"Overwrite existing configuration file"`
	Output string `short:"o" name:"output" help:"Directory to write docstream.yaml into (default: the --config path)"`
}

func (i *ConfigInitCmd) Run(_ *Global, root *CLI) error {
	path := root.Config
	if i.Output != "" {
		path = filepath.Join(i.Output, defaultConfigPath)
	}
	if err := config.Init(path, i.Force); err != nil {
		return err
	}
	fmt.Printf("Wrote configuration to %s\n", path)
	return nil
}
