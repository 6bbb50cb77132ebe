package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/specbuilder/internal/eventstore"
	"git.home.luguber.info/inful/specbuilder/internal/filegraph"
	"git.home.luguber.info/inful/specbuilder/internal/logfields"
	"git.home.luguber.info/inful/specbuilder/internal/metrics"
	"git.home.luguber.info/inful/specbuilder/internal/observability"
	"git.home.luguber.info/inful/specbuilder/internal/plugin"
)

// Invocation describes one hook call.
type Invocation struct {
	BuildID string
	Plugin  plugin.Plugin
	Hook    plugin.Hook
	Context *plugin.Context

	// File is set for writeFile only.
	File *filegraph.File
}

// Key returns the key of the invoked plugin.
func (inv *Invocation) Key() plugin.Key {
	return inv.Plugin.Metadata().Key
}

// HookFunc executes a hook invocation.
type HookFunc func(ctx context.Context, inv *Invocation) error

// Middleware represents a function that can wrap hook execution.
// This implements the Decorator pattern for adding cross-cutting concerns.
type Middleware func(HookFunc) HookFunc

// Chain applies multiple middleware to a hook in order; the first middleware
// is the outermost.
func Chain(h HookFunc, middlewares ...Middleware) HookFunc {
	// Apply middleware in reverse order so they execute in the correct order
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// LoggingMiddleware adds structured logging to hooks.
func LoggingMiddleware(base *slog.Logger) Middleware {
	return func(next HookFunc) HookFunc {
		return func(ctx context.Context, inv *Invocation) error {
			logger := observability.Logger(ctx, base)
			logger.DebugContext(ctx, "Hook started")

			start := time.Now()
			err := next(ctx, inv)
			elapsed := time.Since(start)

			switch {
			case err == nil:
				logger.DebugContext(ctx, "Hook completed", logfields.Elapsed(elapsed))
			case errors.Is(err, ErrVetoed):
				logger.WarnContext(ctx, "Build vetoed", logfields.Elapsed(elapsed))
			default:
				logger.ErrorContext(ctx, "Hook failed", logfields.Elapsed(elapsed), logfields.Error(err))
			}
			return err
		}
	}
}

// MetricsMiddleware records hook durations and results.
func MetricsMiddleware(recorder metrics.Recorder) Middleware {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return func(next HookFunc) HookFunc {
		return func(ctx context.Context, inv *Invocation) error {
			start := time.Now()
			err := next(ctx, inv)

			key := inv.Key().String()
			hook := inv.Hook.String()
			recorder.ObserveHookDuration(hook, key, time.Since(start))
			recorder.IncHookResult(hook, key, resultLabel(err))
			return err
		}
	}
}

func resultLabel(err error) metrics.ResultLabel {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, ErrVetoed):
		return metrics.ResultVetoed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.ResultCanceled
	default:
		return metrics.ResultFailed
	}
}

// EventMiddleware publishes a HookCompleted or HookFailed event for every
// start and end hook. Publishing failures never fail the hook.
func EventMiddleware(bus *Bus) Middleware {
	return func(next HookFunc) HookFunc {
		return func(ctx context.Context, inv *Invocation) error {
			if bus == nil || (inv.Hook != plugin.HookStart && inv.Hook != plugin.HookEnd) {
				return next(ctx, inv)
			}

			before := filesIn(inv)
			start := time.Now()
			err := next(ctx, inv)
			ms := time.Since(start).Milliseconds()

			var ev Event
			if err == nil {
				ev = NewEvent(inv.BuildID, EventHookCompleted, eventstore.HookCompleted{
					Plugin:     inv.Key().String(),
					Hook:       inv.Hook.String(),
					DurationMS: ms,
					Files:      filesIn(inv) - before,
				})
			} else {
				ev = NewEvent(inv.BuildID, EventHookFailed, eventstore.HookFailed{
					Plugin:     inv.Key().String(),
					Hook:       inv.Hook.String(),
					DurationMS: ms,
					Error:      err.Error(),
				})
			}
			if pubErr := bus.Publish(ctx, ev); pubErr != nil {
				observability.WarnContext(ctx, "Hook event handler failed", logfields.Error(pubErr))
			}
			return err
		}
	}
}

func filesIn(inv *Invocation) int {
	if inv.Context == nil || inv.Context.Files == nil {
		return 0
	}
	return inv.Context.Files.Len()
}
