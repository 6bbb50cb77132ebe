// Package watch rebuilds when the configuration or the local API description
// changes, and on a fixed interval for remote inputs.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/specbuilder/internal/logfields"
)

// DefaultDebounce collapses bursts of editor writes into one rebuild.
const DefaultDebounce = 500 * time.Millisecond

// RebuildFunc runs one build. reason names what triggered it.
type RebuildFunc func(ctx context.Context, reason string) error

// Watcher serialises rebuilds triggered by file events and by Trigger.
type Watcher struct {
	files    map[string]struct{}
	dirs     []string
	debounce time.Duration
	rebuild  RebuildFunc
	fs       *fsnotify.Watcher
	triggers chan string
	logger   *slog.Logger

	mu     sync.Mutex
	next   map[string]struct{} // pending replacement for files
	reload chan struct{}
}

// New watches files (their parent directories, which survives editors that
// replace files on save).
func New(files []string, debounce time.Duration, rebuild RebuildFunc) (*Watcher, error) {
	if rebuild == nil {
		return nil, fmt.Errorf("rebuild function is required")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	watched, dirs, err := resolveFiles(files)
	if err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return &Watcher{
		files:    watched,
		dirs:     dirs,
		debounce: debounce,
		rebuild:  rebuild,
		fs:       fsw,
		triggers: make(chan string, 1),
		reload:   make(chan struct{}, 1),
		logger:   slog.Default(),
	}, nil
}

// resolveFiles returns the absolute file set and its distinct parent directories.
func resolveFiles(paths []string) (map[string]struct{}, []string, error) {
	files := make(map[string]struct{})
	seenDirs := make(map[string]struct{})
	var dirs []string
	for _, f := range paths {
		if f == "" {
			continue
		}
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve watch path %s: %w", f, err)
		}
		files[abs] = struct{}{}
		dir := filepath.Dir(abs)
		if _, ok := seenDirs[dir]; !ok {
			seenDirs[dir] = struct{}{}
			dirs = append(dirs, dir)
		}
	}
	return files, dirs, nil
}

// Watch replaces the watched file set. It never blocks and may be called
// from the rebuild function; Run applies the newest set.
func (w *Watcher) Watch(paths []string) error {
	files, _, err := resolveFiles(paths)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.next = files
	w.mu.Unlock()

	select {
	case w.reload <- struct{}{}:
	default:
	}
	return nil
}

// applyPending swaps in the set passed to Watch, adding and dropping
// directory watches as needed.
func (w *Watcher) applyPending() {
	w.mu.Lock()
	next := w.next
	w.next = nil
	w.mu.Unlock()
	if next == nil {
		return
	}

	paths := make([]string, 0, len(next))
	for f := range next {
		paths = append(paths, f)
	}
	_, dirs, _ := resolveFiles(paths)

	keep := make(map[string]struct{}, len(dirs))
	for _, dir := range dirs {
		keep[dir] = struct{}{}
	}
	current := make(map[string]struct{}, len(w.dirs))
	for _, dir := range w.dirs {
		current[dir] = struct{}{}
		if _, ok := keep[dir]; !ok {
			if err := w.fs.Remove(dir); err != nil {
				w.logger.Debug("Failed to drop directory watch", logfields.Path(dir), logfields.Error(err))
			}
		}
	}
	for _, dir := range dirs {
		if _, ok := current[dir]; ok {
			continue
		}
		if err := w.fs.Add(dir); err != nil {
			w.logger.Error("Failed to watch directory", logfields.Path(dir), logfields.Error(err))
		}
	}

	w.files = next
	w.dirs = dirs
	w.logger.Info("Watched files updated", slog.Int("files", len(w.files)))
}

// WithLogger replaces the watcher logger.
func (w *Watcher) WithLogger(logger *slog.Logger) *Watcher {
	if logger != nil {
		w.logger = logger
	}
	return w
}

// Trigger requests a debounced rebuild. It never blocks; a pending request absorbs new ones.
func (w *Watcher) Trigger(reason string) {
	select {
	case w.triggers <- reason:
	default:
	}
}

// Run blocks until ctx is done. Rebuilds never overlap.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		if err := w.fs.Close(); err != nil {
			w.logger.Error("Error closing file watcher", logfields.Error(err))
		}
	}()

	for _, dir := range w.dirs {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}
	w.logger.Info("Watching for changes", slog.Int("files", len(w.files)), slog.Duration("debounce", w.debounce))

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending string
	)
	schedule := func(reason string) {
		pending = reason
		if timer == nil {
			timer = time.NewTimer(w.debounce)
		} else {
			timer.Stop()
			timer.Reset(w.debounce)
		}
		fire = timer.C
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if _, watched := w.files[filepath.Clean(event.Name)]; !watched {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create), event.Has(fsnotify.Rename):
				w.logger.Debug("Change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
				schedule(event.Name)
			case event.Has(fsnotify.Remove):
				w.logger.Warn("Watched file removed", logfields.Path(event.Name))
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("File watcher error", logfields.Error(err))
		case reason := <-w.triggers:
			schedule(reason)
		case <-w.reload:
			w.applyPending()
		case <-fire:
			fire = nil
			w.logger.Info("Rebuilding", slog.String("reason", pending))
			if err := w.rebuild(ctx, pending); err != nil {
				w.logger.Error("Rebuild failed", logfields.Error(err))
			}
		}
	}
}
