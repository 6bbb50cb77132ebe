package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/specbuilder/internal/build"
	"git.home.luguber.info/inful/specbuilder/internal/config"
	sberrors "git.home.luguber.info/inful/specbuilder/internal/errors"
	"git.home.luguber.info/inful/specbuilder/internal/eventstore"
	"git.home.luguber.info/inful/specbuilder/internal/input"
	"git.home.luguber.info/inful/specbuilder/internal/logfields"
	"git.home.luguber.info/inful/specbuilder/internal/metrics"
	"git.home.luguber.info/inful/specbuilder/internal/notify"
	"git.home.luguber.info/inful/specbuilder/internal/plugins/catalog"
)

// workspaceDir holds git checkouts below the build root.
const workspaceDir = ".specbuilder/checkouts"

// runtime wires the long-lived collaborators of one or more builds.
type runtime struct {
	service  *build.DefaultService
	catalog  *catalog.Catalog
	loader   *input.Loader
	registry *prom.Registry
	closers  []func() error
}

type runtimeOptions struct {
	metrics bool
}

func newRuntime(cfg *config.Config, opts runtimeOptions) (*runtime, error) {
	logger := slog.Default()
	rt := &runtime{catalog: catalog.Default()}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if opts.metrics {
		rt.registry = prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(rt.registry)
	}

	rt.service = build.NewService().WithRecorder(recorder).WithLogger(logger)
	rt.loader = input.NewLoader(filepath.Join(cfg.Root, workspaceDir), recorder)

	if path := cfg.HistoryPath(); path != "" {
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, sberrors.Wrap(err, sberrors.CategoryFileSystem, sberrors.SeverityFatal, "failed to create history directory")
			}
		}
		store, err := eventstore.NewSQLiteStore(path)
		if err != nil {
			return nil, sberrors.Wrap(err, sberrors.CategoryFileSystem, sberrors.SeverityFatal, "failed to open build history").
				WithContext("path", path)
		}
		if pruned, err := store.Prune(context.Background(), cfg.History.Keep); err != nil {
			logger.Warn("Failed to prune build history", logfields.Path(path), logfields.Error(err))
		} else if pruned > 0 {
			logger.Debug("Pruned build history", logfields.Path(path), slog.Int64("events", pruned))
		}
		rt.service.WithEventStore(store)
		rt.closers = append(rt.closers, store.Close)
	}

	if cfg.Events.NATSURL != "" {
		pub, err := notify.Connect(cfg.Events)
		if err != nil {
			// Notifications are best effort; builds proceed without them.
			logger.Warn("Build notifications disabled", logfields.URL(cfg.Events.NATSURL), logfields.Error(err))
		} else {
			rt.service.WithPublisher(pub)
			rt.closers = append(rt.closers, func() error { pub.Close(); return nil })
		}
	}

	return rt, nil
}

// build instantiates the configured plugins and runs one build.
func (rt *runtime) build(ctx context.Context, cfg *config.Config) (*build.Result, error) {
	plugins, err := rt.catalog.Plugins(cfg, catalog.Env{Loader: rt.loader})
	if err != nil {
		return nil, sberrors.ConfigInvalid(err)
	}
	return rt.service.Run(ctx, build.Request{Config: cfg, Plugins: plugins})
}

func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			slog.Warn("Failed to release resource", logfields.Error(err))
		}
	}
	rt.closers = nil
}

// printSummary writes the one-line outcome of a build.
func printSummary(g *Global, res *build.Result) {
	if res == nil {
		return
	}
	_, _ = fmt.Fprintf(g.out(), "Build %s %s: %d files (%d written) in %s\n",
		res.BuildID, res.Status, len(res.Files), res.Written, res.Duration.Round(time.Millisecond))
}
