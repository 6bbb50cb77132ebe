package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	sberrors "git.home.luguber.info/inful/specbuilder/internal/errors"
	"git.home.luguber.info/inful/specbuilder/internal/eventstore"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	BuildID string `arg:"" optional:"" help:"Show a single build"`
	Limit   int    `short:"n" help:"Number of builds to show" default:"20"`
	JSON    bool   `help:"Print JSON"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config, root.Verbose)
	if err != nil {
		return err
	}
	path := cfg.HistoryPath()
	if path == "" {
		return sberrors.ValidationFailed("history.path", "build history is not configured")
	}
	if path != ":memory:" {
		if _, err := os.Stat(path); err != nil {
			return sberrors.Wrap(err, sberrors.CategoryFileSystem, sberrors.SeverityError, "no build history recorded yet").
				WithContext("path", path)
		}
	}

	store, err := eventstore.NewSQLiteStore(path)
	if err != nil {
		return sberrors.Wrap(err, sberrors.CategoryFileSystem, sberrors.SeverityFatal, "failed to open build history")
	}
	defer func() { _ = store.Close() }()

	projection := eventstore.NewBuildHistoryProjection(store, max(h.Limit, 100))
	if err := projection.Rebuild(context.Background()); err != nil {
		return sberrors.InternalError("failed to read build history", err)
	}

	if h.BuildID != "" {
		summary, ok := projection.GetBuild(h.BuildID)
		if !ok {
			return sberrors.New(sberrors.CategoryValidation, sberrors.SeverityError, "build not found").
				WithContext("build_id", h.BuildID)
		}
		if h.JSON {
			return writeJSON(g.out(), summary)
		}
		printBuild(g.out(), summary)
		return nil
	}

	history := projection.GetHistory()
	if h.Limit > 0 && len(history) > h.Limit {
		history = history[:h.Limit]
	}
	if h.JSON {
		return writeJSON(g.out(), history)
	}
	printHistory(g.out(), history)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printHistory(w io.Writer, history []*eventstore.BuildSummary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "BUILD\tSTATUS\tSTARTED\tDURATION\tFILES\tWRITTEN\tERROR")
	for _, b := range history {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			b.BuildID, b.Status, b.StartedAt.Local().Format(time.DateTime),
			b.Duration.Round(time.Millisecond), b.FileCount, b.Written, b.ErrorMessage)
	}
	_ = tw.Flush()
}

func printBuild(w io.Writer, b *eventstore.BuildSummary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Build:\t%s\n", b.BuildID)
	_, _ = fmt.Fprintf(tw, "Status:\t%s\n", b.Status)
	_, _ = fmt.Fprintf(tw, "Started:\t%s\n", b.StartedAt.Local().Format(time.DateTime))
	_, _ = fmt.Fprintf(tw, "Duration:\t%s\n", b.Duration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(tw, "Plugins:\t%v\n", b.Plugins)
	_, _ = fmt.Fprintf(tw, "Hooks:\t%d\n", b.HookCount)
	_, _ = fmt.Fprintf(tw, "Files:\t%d (%d written)\n", b.FileCount, b.Written)
	if b.ErrorMessage != "" {
		_, _ = fmt.Fprintf(tw, "Failed in:\t%s %s\n", b.ErrorPlugin, b.ErrorHook)
		_, _ = fmt.Fprintf(tw, "Error:\t%s\n", b.ErrorMessage)
	}
	_ = tw.Flush()
}
