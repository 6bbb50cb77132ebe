package commands

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"git.home.luguber.info/inful/specbuilder/internal/config"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Input   string `short:"i" help:"Override input.path (file or URL)"`
	Output  string `short:"o" help:"Override output.path"`
	Clean   bool   `help:"Remove the previous output first"`
	NoWrite bool   `name:"no-write" help:"Run every phase but do not write files"`
	List    bool   `short:"l" help:"List generated files"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config, root.Verbose)
	if err != nil {
		return err
	}
	b.apply(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(cfg, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.close()

	res, err := rt.build(ctx, cfg)
	printSummary(g, res)
	if err != nil {
		return err
	}

	if b.List {
		for _, f := range res.Files {
			rel, relErr := filepath.Rel(cfg.Root, f.Path)
			if relErr != nil {
				rel = f.Path
			}
			_, _ = fmt.Fprintln(g.out(), rel)
		}
	}
	return nil
}

func (b *BuildCmd) apply(cfg *config.Config) {
	if b.Input != "" {
		cfg.Input.Path = b.Input
		cfg.Input.Git = nil
	}
	if b.Output != "" {
		cfg.Output.Path = b.Output
	}
	if b.Clean {
		cfg.Output.Clean = true
	}
	if b.NoWrite {
		cfg.Output.Write = false
	}
}
