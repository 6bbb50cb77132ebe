package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"git.home.luguber.info/inful/specbuilder/internal/eventstore"
)

// memStore implements eventstore.Appender for testing.
type memStore struct {
	mu       sync.Mutex
	builds   []string
	events   []string
	payloads [][]byte
	fail     error
}

func (m *memStore) Append(_ context.Context, buildID, eventType string, payload []byte, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.builds = append(m.builds, buildID)
	m.events = append(m.events, eventType)
	m.payloads = append(m.payloads, payload)
	return nil
}

func (m *memStore) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

func TestBusWithoutEventStore(t *testing.T) {
	bus := NewBus()

	called := false
	bus.Subscribe(EventBuildCompleted, func(context.Context, Event) error {
		called = true
		return nil
	})

	if err := bus.Publish(context.Background(), NewEvent("b1", EventBuildCompleted, nil)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
}

func TestBusPersistsBeforeDelivery(t *testing.T) {
	store := &memStore{}
	bus := NewBusWithEventStore(store)

	var seenPersisted int
	bus.Subscribe(EventBuildCompleted, func(context.Context, Event) error {
		seenPersisted = len(store.types())
		return nil
	})

	payload := eventstore.BuildCompleted{Status: "succeeded", Files: 3}
	if err := bus.Publish(context.Background(), NewEvent("b1", EventBuildCompleted, payload)); err != nil {
		t.Fatal(err)
	}
	if seenPersisted != 1 {
		t.Errorf("handler saw %d persisted events, want 1", seenPersisted)
	}

	var decoded eventstore.BuildCompleted
	if err := json.Unmarshal(store.payloads[0], &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Files != 3 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestBusStoreFailureDoesNotBlockHandlers(t *testing.T) {
	bus := NewBusWithEventStore(&memStore{fail: errors.New("disk")})

	called := false
	bus.Subscribe(EventBuildFailed, func(context.Context, Event) error {
		called = true
		return nil
	})
	if err := bus.Publish(context.Background(), NewEvent("b1", EventBuildFailed, nil)); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Error("handler should run even when persistence fails")
	}
}

func TestBusHandlerError(t *testing.T) {
	bus := NewBus()
	boom := errors.New("boom")
	second := false
	bus.Subscribe("x", func(context.Context, Event) error { return boom })
	bus.Subscribe("x", func(context.Context, Event) error {
		second = true
		return nil
	})

	if err := bus.Publish(context.Background(), NewEvent("b", "x", nil)); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if second {
		t.Error("handlers after a failure must not run")
	}
}
