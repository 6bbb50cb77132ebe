package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/specbuilder/cmd/specbuilder/commands"
	sberrors "git.home.luguber.info/inful/specbuilder/internal/errors"
	"git.home.luguber.info/inful/specbuilder/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("specbuilder"),
		kong.Description("Generate source trees from API descriptions through a plugin pipeline."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	global := &commands.Global{Logger: slog.Default(), Out: os.Stdout}
	if err := parser.Run(global, cli); err != nil {
		sberrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
