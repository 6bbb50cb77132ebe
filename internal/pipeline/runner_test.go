package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"git.home.luguber.info/inful/specbuilder/internal/config"
	"git.home.luguber.info/inful/specbuilder/internal/filegraph"
	"git.home.luguber.info/inful/specbuilder/internal/plugin"
)

// hookPlugin implements every lifecycle hook through optional funcs and
// appends "<key>:<hook>" to a shared trace.
type hookPlugin struct {
	plugin.BasePlugin
	trace    *[]string
	validate func(*plugin.Context, []plugin.Plugin) (bool, error)
	start    func(context.Context, *plugin.Context) error
	end      func(context.Context, *plugin.Context) error
	write    func(*filegraph.File) error
}

func newHookPlugin(trace *[]string, key string, deps ...string) *hookPlugin {
	meta := plugin.Metadata{
		Name:  key,
		Key:   plugin.Key{key},
		Hooks: []plugin.Hook{plugin.HookStart, plugin.HookEnd},
	}
	for _, d := range deps {
		meta.Dependencies = append(meta.Dependencies, plugin.Dependency{Kind: plugin.Key{d}})
	}
	return &hookPlugin{BasePlugin: plugin.BasePlugin{Meta: meta}, trace: trace}
}

func (h *hookPlugin) declare(hooks ...plugin.Hook) *hookPlugin {
	h.Meta.Hooks = append(h.Meta.Hooks, hooks...)
	return h
}

func (h *hookPlugin) record(hook plugin.Hook) {
	*h.trace = append(*h.trace, h.Meta.Key.String()+":"+hook.String())
}

func (h *hookPlugin) Validate(pctx *plugin.Context, all []plugin.Plugin) (bool, error) {
	h.record(plugin.HookValidate)
	if h.validate != nil {
		return h.validate(pctx, all)
	}
	return true, nil
}

func (h *hookPlugin) Start(ctx context.Context, pctx *plugin.Context) error {
	h.record(plugin.HookStart)
	if h.start != nil {
		return h.start(ctx, pctx)
	}
	return nil
}

func (h *hookPlugin) End(ctx context.Context, pctx *plugin.Context) error {
	h.record(plugin.HookEnd)
	if h.end != nil {
		return h.end(ctx, pctx)
	}
	return nil
}

func (h *hookPlugin) WriteFile(_ context.Context, _ *plugin.Context, f *filegraph.File) error {
	*h.trace = append(*h.trace, h.Meta.Key.String()+":writeFile:"+f.Path)
	if h.write != nil {
		return h.write(f)
	}
	return nil
}

func newTestRunner(t *testing.T, plugins ...plugin.Plugin) (*Runner, *filegraph.Manager) {
	t.Helper()
	reg := plugin.NewRegistry()
	if err := reg.Register(plugins...); err != nil {
		t.Fatalf("register: %v", err)
	}
	cfg := &config.Config{Root: t.TempDir(), Output: config.OutputConfig{Path: "gen"}}
	files := filegraph.NewManager()
	return NewRunner(cfg, reg, files, WithBuildID("test-build")), files
}

func TestRunDependencyOrder(t *testing.T) {
	var trace []string
	// Registered dependents-first; the runner must still start dependencies first.
	client := newHookPlugin(&trace, "client", "oas")
	mocks := newHookPlugin(&trace, "mocks", "oas")
	oas := newHookPlugin(&trace, "oas")

	r, _ := newTestRunner(t, client, mocks, oas)
	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{
		"oas:start", "client:start", "mocks:start",
		"oas:end", "client:end", "mocks:end",
	}
	if strings.Join(trace, ",") != strings.Join(want, ",") {
		t.Errorf("trace = %v, want %v", trace, want)
	}
	if result.State != StateCompleted || r.State() != StateCompleted {
		t.Errorf("state = %s, want completed", result.State)
	}
	if got := result.Order[0].String(); got != "oas" {
		t.Errorf("Order[0] = %s, want oas", got)
	}
	if len(result.Hooks) != 6 {
		t.Errorf("len(Hooks) = %d, want 6", len(result.Hooks))
	}
}

func TestStartSeesDependencyOutput(t *testing.T) {
	var trace []string
	oas := newHookPlugin(&trace, "oas")
	oas.start = func(_ context.Context, pctx *plugin.Context) error {
		_, err := pctx.AddFile(filegraph.NewFile("/gen/model.ts", filegraph.Source{Value: "export type Pet = {}", Name: "Pet", Exportable: true}))
		return err
	}
	client := newHookPlugin(&trace, "client", "oas")
	client.start = func(_ context.Context, pctx *plugin.Context) error {
		if !pctx.Files.Has("/gen/model.ts") {
			return errors.New("dependency output not visible")
		}
		return nil
	}

	r, files := newTestRunner(t, client, oas)
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	f, _ := files.Get("/gen/model.ts")
	if f.PluginKey() != "oas" {
		t.Errorf("PluginKey = %q, want oas", f.PluginKey())
	}
}

func TestRunVetoed(t *testing.T) {
	var trace []string
	guard := newHookPlugin(&trace, "guard").declare(plugin.HookValidate)
	guard.validate = func(_ *plugin.Context, all []plugin.Plugin) (bool, error) {
		return len(all) > 5, nil
	}
	other := newHookPlugin(&trace, "other")

	r, _ := newTestRunner(t, guard, other)
	result, err := r.Run(context.Background())
	if !errors.Is(err, ErrVetoed) {
		t.Fatalf("err = %v, want ErrVetoed", err)
	}
	var hookErr *HookExecutionError
	if !errors.As(err, &hookErr) || hookErr.Hook != plugin.HookValidate {
		t.Errorf("err = %#v, want validate HookExecutionError", err)
	}
	if result.State != StateFailed {
		t.Errorf("state = %s, want failed", result.State)
	}
	for _, entry := range trace {
		if strings.HasSuffix(entry, ":start") {
			t.Errorf("start ran after veto: %v", trace)
		}
	}
}

func TestRunStartFailureKeepsEarlierFiles(t *testing.T) {
	var trace []string
	first := newHookPlugin(&trace, "first")
	first.start = func(_ context.Context, pctx *plugin.Context) error {
		_, err := pctx.AddFile(filegraph.NewFile("/gen/a.ts"))
		return err
	}
	boom := errors.New("template error")
	second := newHookPlugin(&trace, "second")
	second.start = func(context.Context, *plugin.Context) error { return boom }
	third := newHookPlugin(&trace, "third")

	r, files := newTestRunner(t, first, second, third)
	result, err := r.Run(context.Background())

	var hookErr *HookExecutionError
	if !errors.As(err, &hookErr) {
		t.Fatalf("err = %v, want HookExecutionError", err)
	}
	if hookErr.PluginKey.String() != "second" || hookErr.Hook != plugin.HookStart || !errors.Is(err, boom) {
		t.Errorf("unexpected error %v", hookErr)
	}
	if !files.Has("/gen/a.ts") {
		t.Error("files from earlier plugins must remain")
	}
	for _, entry := range trace {
		if entry == "third:start" || strings.HasSuffix(entry, ":end") {
			t.Errorf("hook ran after failure: %v", trace)
		}
	}
	failed, ok := result.Failed()
	if !ok || failed.Plugin.String() != "second" {
		t.Errorf("Failed() = %v, %v", failed, ok)
	}
}

func TestRunEndFailure(t *testing.T) {
	var trace []string
	p := newHookPlugin(&trace, "docs")
	p.start = func(_ context.Context, pctx *plugin.Context) error {
		_, err := pctx.AddFile(filegraph.NewFile("/gen/docs.md"))
		return err
	}
	p.end = func(context.Context, *plugin.Context) error { return errors.New("render failed") }

	r, files := newTestRunner(t, p)
	_, err := r.Run(context.Background())

	var hookErr *HookExecutionError
	if !errors.As(err, &hookErr) || hookErr.Hook != plugin.HookEnd {
		t.Fatalf("err = %v, want end HookExecutionError", err)
	}
	if files.Len() != 1 {
		t.Errorf("files = %d, want 1", files.Len())
	}
}

func TestRunPanicBecomesError(t *testing.T) {
	var trace []string
	p := newHookPlugin(&trace, "panicky")
	p.start = func(context.Context, *plugin.Context) error { panic("nil map") }

	r, _ := newTestRunner(t, p)
	_, err := r.Run(context.Background())

	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("err = %v, want PanicError", err)
	}
	if panicErr.Value != "nil map" || len(panicErr.Stack) == 0 {
		t.Errorf("unexpected panic error %#v", panicErr)
	}
	if r.State() != StateFailed {
		t.Errorf("state = %s, want failed", r.State())
	}
}

func TestRunCanceled(t *testing.T) {
	var trace []string
	ctx, cancel := context.WithCancel(context.Background())
	first := newHookPlugin(&trace, "first")
	first.start = func(context.Context, *plugin.Context) error {
		cancel()
		return nil
	}
	second := newHookPlugin(&trace, "second")

	r, _ := newTestRunner(t, first, second)
	_, err := r.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	for _, entry := range trace {
		if strings.HasPrefix(entry, "second") {
			t.Errorf("hook ran after cancellation: %v", trace)
		}
	}
}

func TestRunOnlyOnce(t *testing.T) {
	var trace []string
	r, _ := newTestRunner(t, newHookPlugin(&trace, "only"))
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := r.Run(context.Background()); !errors.Is(err, ErrAlreadyRun) {
		t.Errorf("second Run err = %v, want ErrAlreadyRun", err)
	}
}

func TestWriteFiles(t *testing.T) {
	var trace []string
	gen := newHookPlugin(&trace, "gen")
	gen.start = func(_ context.Context, pctx *plugin.Context) error {
		for _, p := range []string{"/gen/b.ts", "/gen/a.ts"} {
			if _, err := pctx.AddFile(filegraph.NewFile(p)); err != nil {
				return err
			}
		}
		return nil
	}
	w1 := newHookPlugin(&trace, "w1").declare(plugin.HookWriteFile)
	w2 := newHookPlugin(&trace, "w2").declare(plugin.HookWriteFile)

	r, files := newTestRunner(t, gen, w1, w2)
	if _, err := r.WriteFiles(context.Background(), files.All()); !errors.Is(err, ErrNotCompleted) {
		t.Fatalf("WriteFiles before Run err = %v", err)
	}
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	trace = trace[:0]

	execs, err := r.WriteFiles(context.Background(), files.All())
	if err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	want := []string{
		"w1:writeFile:/gen/b.ts", "w2:writeFile:/gen/b.ts",
		"w1:writeFile:/gen/a.ts", "w2:writeFile:/gen/a.ts",
	}
	if strings.Join(trace, ",") != strings.Join(want, ",") {
		t.Errorf("trace = %v, want %v", trace, want)
	}
	if len(execs) != 4 || execs[0].FilePath != "/gen/b.ts" {
		t.Errorf("execs = %+v", execs)
	}
}

func TestWriteFilesFailure(t *testing.T) {
	var trace []string
	w := newHookPlugin(&trace, "writer").declare(plugin.HookWriteFile)
	w.write = func(*filegraph.File) error { return errors.New("disk full") }

	r, _ := newTestRunner(t, w)
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	f := filegraph.NewFile("/gen/x.ts")
	_, err := r.WriteFiles(context.Background(), []*filegraph.File{&f})

	var hookErr *HookExecutionError
	if !errors.As(err, &hookErr) || hookErr.Hook != plugin.HookWriteFile {
		t.Fatalf("err = %v, want writeFile HookExecutionError", err)
	}
}
