package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/specbuilder/internal/eventstore"
	"git.home.luguber.info/inful/specbuilder/internal/logfields"
)

// Handler processes an Event; return error to signal failure.
type Handler func(ctx context.Context, e Event) error

// Bus is a simple synchronous pub/sub event bus.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler
	eventStore  eventstore.Appender // optional event store for persistence
	logger      *slog.Logger
}

// NewBus creates a bus that only delivers events.
func NewBus() *Bus { return &Bus{subscribers: map[string][]Handler{}, logger: slog.Default()} }

// NewBusWithEventStore creates a bus that persists events to the store.
func NewBusWithEventStore(store eventstore.Appender) *Bus {
	b := NewBus()
	b.eventStore = store
	return b
}

// WithLogger sets the logger used for persistence failures.
func (b *Bus) WithLogger(logger *slog.Logger) *Bus {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// Subscribe registers a handler for a given event name.
func (b *Bus) Subscribe(event string, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.subscribers[event] = append(b.subscribers[event], h)
	b.mu.Unlock()
}

// Publish delivers an event to all handlers synchronously.
// If an event store is configured, the event is persisted before being
// delivered to handlers. Persistence failures are logged, not returned.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	if b.eventStore != nil {
		payload := e.Payload
		if payload == nil {
			payload = struct{}{}
		}
		if err := eventstore.Record(ctx, b.eventStore, e.BuildID, e.Type, payload); err != nil {
			b.logger.WarnContext(ctx, "Failed to persist build event",
				logfields.BuildID(e.BuildID),
				logfields.Name(e.Type),
				logfields.Error(err))
		}
	}

	b.mu.RLock()
	hs := append([]Handler(nil), b.subscribers[e.Name()]...)
	b.mu.RUnlock()
	for _, h := range hs {
		if err := h(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
