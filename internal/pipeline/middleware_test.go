package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"git.home.luguber.info/inful/specbuilder/internal/metrics"
	"git.home.luguber.info/inful/specbuilder/internal/plugin"
)

type fakeRecorder struct {
	metrics.NoopRecorder
	mu      sync.Mutex
	results map[string]metrics.ResultLabel
}

func (f *fakeRecorder) IncHookResult(hook, plugin string, result metrics.ResultLabel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.results == nil {
		f.results = map[string]metrics.ResultLabel{}
	}
	f.results[plugin+":"+hook] = result
}

func TestChainOrder(t *testing.T) {
	var calls []string
	mw := func(name string) Middleware {
		return func(next HookFunc) HookFunc {
			return func(ctx context.Context, inv *Invocation) error {
				calls = append(calls, name+">")
				err := next(ctx, inv)
				calls = append(calls, "<"+name)
				return err
			}
		}
	}
	h := Chain(func(context.Context, *Invocation) error {
		calls = append(calls, "hook")
		return nil
	}, mw("a"), mw("b"))

	if err := h(context.Background(), &Invocation{}); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(calls, " "); got != "a> b> hook <b <a" {
		t.Errorf("calls = %q", got)
	}
}

func TestMetricsMiddlewareLabels(t *testing.T) {
	var trace []string
	ok := newHookPlugin(&trace, "ok")
	guard := newHookPlugin(&trace, "guard").declare(plugin.HookValidate)
	guard.validate = func(*plugin.Context, []plugin.Plugin) (bool, error) { return false, nil }

	rec := &fakeRecorder{}
	r, _ := newTestRunner(t, ok, guard)
	r.middleware = []Middleware{MetricsMiddleware(rec)}

	_, _ = r.Run(context.Background())
	if rec.results["guard:validate"] != metrics.ResultVetoed {
		t.Errorf("results = %v, want guard:validate vetoed", rec.results)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var trace []string
	p := newHookPlugin(&trace, "failing")
	p.start = func(context.Context, *plugin.Context) error { return errors.New("bad template") }
	r, _ := newTestRunner(t, p)
	r.middleware = []Middleware{LoggingMiddleware(logger)}

	_, _ = r.Run(context.Background())
	out := buf.String()
	for _, want := range []string{"Hook failed", "plugin=failing", "hook=start", "bad template", "build_id=test-build"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestEventMiddlewarePublishesHookEvents(t *testing.T) {
	store := &memStore{}
	bus := NewBusWithEventStore(store)

	var trace []string
	p := newHookPlugin(&trace, "gen")
	r, _ := newTestRunner(t, p)
	r.middleware = []Middleware{EventMiddleware(bus)}

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	types := store.types()
	if len(types) != 2 || types[0] != EventHookCompleted {
		t.Errorf("persisted = %v, want two HookCompleted", types)
	}
	if store.builds[0] != "test-build" {
		t.Errorf("build id = %q", store.builds[0])
	}
}

func TestResultLabel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	cases := map[metrics.ResultLabel]error{
		metrics.ResultSuccess:  nil,
		metrics.ResultVetoed:   ErrVetoed,
		metrics.ResultCanceled: ctx.Err(),
		metrics.ResultFailed:   errors.New("x"),
	}
	for want, err := range cases {
		if got := resultLabel(err); got != want {
			t.Errorf("resultLabel(%v) = %s, want %s", err, got, want)
		}
	}
}
