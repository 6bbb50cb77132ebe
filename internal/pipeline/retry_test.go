package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	sberrors "git.home.luguber.info/inful/specbuilder/internal/errors"
)

var errPermanent = errors.New("permanent error")

type tempError struct{ error }

func (t tempError) Temporary() bool { return true }

func fastPolicy(attempts int) RetryPolicy {
	p := DefaultRetryPolicy()
	p.MaxAttempts = attempts
	p.Backoff = time.Millisecond
	return p
}

// TestRetrySuccess validates that retries succeed after transient failure.
func TestRetrySuccess(t *testing.T) {
	attempts := 0
	handler := func(context.Context, Event) error {
		attempts++
		if attempts < 2 {
			return tempError{errors.New("retryable")}
		}
		return nil
	}
	dlq := NewDeadLetterQueue(0)
	wrapped := WithRetry(handler, fastPolicy(3), dlq)

	if err := wrapped(context.Background(), NewEvent("b", "test", nil)); err != nil {
		t.Fatalf("expected success after retry, got: %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
	if dlq.Count() != 0 {
		t.Errorf("expected DLQ to be empty, got %d", dlq.Count())
	}
}

// TestRetryExhaustion validates that persistent failures go to DLQ after max attempts.
func TestRetryExhaustion(t *testing.T) {
	attempts := 0
	handler := func(context.Context, Event) error {
		attempts++
		return sberrors.NetworkTimeout("nats://localhost", errors.New("timeout"))
	}
	dlq := NewDeadLetterQueue(0)
	wrapped := WithRetry(handler, fastPolicy(3), dlq)

	if err := wrapped(context.Background(), NewEvent("b", "test", nil)); err == nil {
		t.Fatal("expected error after exhaustion")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	failed := dlq.GetAll()
	if len(failed) != 1 || failed[0].Attempts != 3 {
		t.Errorf("DLQ = %+v", failed)
	}
}

// TestRetryNonRetryable validates that permanent errors skip retries.
func TestRetryNonRetryable(t *testing.T) {
	attempts := 0
	handler := func(context.Context, Event) error {
		attempts++
		return errPermanent
	}
	dlq := NewDeadLetterQueue(0)
	err := WithRetry(handler, fastPolicy(3), dlq)(context.Background(), NewEvent("b", "test", nil))

	if !errors.Is(err, errPermanent) {
		t.Errorf("err = %v, want errPermanent", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
	if dlq.Count() != 1 {
		t.Errorf("expected 1 DLQ entry, got %d", dlq.Count())
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	handler := func(context.Context, Event) error {
		attempts++
		cancel()
		return tempError{errors.New("retryable")}
	}
	policy := fastPolicy(5)
	policy.Backoff = time.Hour

	err := WithRetry(handler, policy, nil)(ctx, NewEvent("b", "test", nil))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestDeadLetterQueueLimit(t *testing.T) {
	dlq := NewDeadLetterQueue(2)
	for i, name := range []string{"a", "b", "c"} {
		buildID := "b1"
		if i == 2 {
			buildID = "b2"
		}
		dlq.Enqueue(FailedEvent{Event: NewEvent(buildID, name, nil)})
	}
	all := dlq.GetAll()
	if len(all) != 2 || all[0].Event.Type != "b" || all[1].Event.Type != "c" {
		t.Errorf("DLQ = %+v", all)
	}
	if all[0].Timestamp.IsZero() {
		t.Error("Enqueue should stamp a timestamp")
	}
	if got := dlq.ForBuild("b2"); len(got) != 1 || got[0].Event.Type != "c" {
		t.Errorf("ForBuild(b2) = %+v", got)
	}
	if drained := dlq.Drain(); len(drained) != 2 {
		t.Errorf("Drain returned %d entries, want 2", len(drained))
	}
	if dlq.Count() != 0 {
		t.Error("Drain should empty the queue")
	}
}
