package commands

import (
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/specbuilder/internal/config"
	sberrors "git.home.luguber.info/inful/specbuilder/internal/errors"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force  bool   `help:"Overwrite existing configuration file"`
	Output string `short:"o" name:"output" help:"Output directory for generated config file"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	cfgPath := root.Config
	if i.Output != "" {
		cfgPath = filepath.Join(i.Output, "specbuilder.yaml")
	}
	_, _ = fmt.Fprintf(g.out(), "Writing configuration to %s\n", cfgPath)
	if err := config.Init(cfgPath, i.Force); err != nil {
		return sberrors.Wrap(err, sberrors.CategoryConfig, sberrors.SeverityError, "initialization failed")
	}
	_, _ = fmt.Fprintln(g.out(), "initialized successfully")
	return nil
}
