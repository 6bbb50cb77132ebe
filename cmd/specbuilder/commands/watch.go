package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"git.home.luguber.info/inful/specbuilder/internal/config"
	"git.home.luguber.info/inful/specbuilder/internal/logfields"
	"git.home.luguber.info/inful/specbuilder/internal/metrics"
	"git.home.luguber.info/inful/specbuilder/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Interval time.Duration `help:"Also rebuild on this interval (remote inputs); overrides watch.interval"`
	Listen   string        `help:"Serve Prometheus metrics on this address; overrides metrics.listen"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config, root.Verbose)
	if err != nil {
		return err
	}
	if w.Interval > 0 {
		cfg.Watch.Interval = w.Interval
	}
	if w.Listen != "" {
		cfg.Metrics.Listen = w.Listen
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(cfg, runtimeOptions{metrics: true})
	if err != nil {
		return err
	}
	defer rt.close()

	if cfg.Metrics.Listen != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           metricsMux(rt),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", logfields.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		slog.Info("Serving metrics", slog.String("addr", cfg.Metrics.Listen))
	}

	var watcher *watch.Watcher
	watchedInput := cfg.InputPath()
	rebuild := func(ctx context.Context, reason string) error {
		next, err := loadConfig(root.Config, root.Verbose)
		if err != nil {
			return err
		}
		if watcher != nil && next.InputPath() != watchedInput {
			if err := watcher.Watch(watchedFiles(root.Config, next)); err != nil {
				slog.Warn("Failed to follow input change", logfields.Path(next.InputPath()), logfields.Error(err))
			} else {
				watchedInput = next.InputPath()
			}
		}
		next.Metrics = cfg.Metrics
		next.Watch = cfg.Watch
		res, err := rt.build(ctx, next)
		printSummary(g, res)
		return err
	}

	if err := rebuild(ctx, "initial"); err != nil {
		slog.Error("Initial build failed", logfields.Error(err))
	}

	watcher, err = watch.New(watchedFiles(root.Config, cfg), cfg.Watch.Debounce, rebuild)
	if err != nil {
		return err
	}

	if cfg.Watch.Interval > 0 {
		sched, err := watch.NewScheduler(cfg.Watch.Interval, func() { watcher.Trigger("interval") })
		if err != nil {
			return err
		}
		sched.Start()
		defer func() { _ = sched.Stop() }()
		slog.Info("Periodic rebuild enabled", slog.Duration("interval", cfg.Watch.Interval))
	}

	return watcher.Run(ctx)
}

func metricsMux(rt *runtime) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(rt.registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// watchedFiles is the config file plus a local input description.
func watchedFiles(configPath string, cfg *config.Config) []string {
	files := []string{configPath}
	if abs, err := filepath.Abs(configPath); err == nil {
		files[0] = abs
	}
	if cfg.Input.Git == nil && cfg.Input.Path != "" && !config.IsURL(cfg.Input.Path) {
		files = append(files, cfg.InputPath())
	}
	return files
}
