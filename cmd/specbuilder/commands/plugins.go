package commands

import (
	"fmt"
	"text/tabwriter"

	"git.home.luguber.info/inful/specbuilder/internal/plugins/catalog"
)

// PluginsCmd implements the 'plugins' command.
type PluginsCmd struct{}

func (p *PluginsCmd) Run(g *Global, _ *CLI) error {
	tw := tabwriter.NewWriter(g.out(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tKEY\tDESCRIPTION")
	for _, e := range catalog.Default().Entries() {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, e.DefaultKey, e.Description)
	}
	return tw.Flush()
}
