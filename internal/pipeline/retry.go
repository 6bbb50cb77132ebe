package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sberrors "git.home.luguber.info/inful/specbuilder/internal/errors"
)

// RetryPolicy defines retry behavior for failed handlers.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	IsRetryable func(error) bool
}

// DefaultRetryPolicy provides sensible defaults: 3 attempts, exponential backoff starting at 1s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     time.Second,
		IsRetryable: func(err error) bool {
			if sberrors.IsRetryable(err) {
				return true
			}
			var tempErr interface{ Temporary() bool }
			if errors.As(err, &tempErr) && tempErr.Temporary() {
				return true
			}
			var timeoutErr interface{ Timeout() bool }
			return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
		},
	}
}

// WithRetry wraps a handler with retry logic according to the policy.
// Waiting between attempts stops early when ctx is canceled.
func WithRetry(h Handler, policy RetryPolicy, dlq *DeadLetterQueue) Handler {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return func(ctx context.Context, e Event) error {
		var lastErr error
		attempts := 0
	retry:
		for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
			attempts = attempt
			lastErr = h(ctx, e)
			if lastErr == nil {
				return nil
			}
			if policy.IsRetryable == nil || !policy.IsRetryable(lastErr) {
				slog.WarnContext(ctx, "Non-retryable error encountered", "event", e.Name(), "error", lastErr)
				break retry
			}
			if attempt < policy.MaxAttempts {
				backoff := policy.Backoff * time.Duration(1<<uint(attempt-1)) // exponential
				slog.InfoContext(ctx, "Retrying after failure", "event", e.Name(), "attempt", attempt, "backoff", backoff, "error", lastErr)
				timer := time.NewTimer(backoff)
				select {
				case <-ctx.Done():
					timer.Stop()
					lastErr = errors.Join(lastErr, ctx.Err())
					break retry
				case <-timer.C:
				}
			}
		}
		slog.ErrorContext(ctx, "Handler failed after retries", "event", e.Name(), "attempts", attempts, "error", lastErr)
		if dlq != nil {
			dlq.Enqueue(FailedEvent{Event: e, Error: lastErr, Attempts: attempts, Timestamp: time.Now()})
		}
		return fmt.Errorf("handler failed after %d attempts: %w", attempts, lastErr)
	}
}
