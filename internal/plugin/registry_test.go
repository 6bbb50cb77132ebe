package plugin

import (
	"errors"
	"path/filepath"
	"testing"

	"git.home.luguber.info/inful/specbuilder/internal/naming"
)

func keysOf(plugins []Plugin) []string {
	out := make([]string, len(plugins))
	for i, p := range plugins {
		out[i] = p.Metadata().Key.String()
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRegistryRejectsDuplicateKeys(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(newStub("a", Key{"a"}), newStub("a", Key{"a"}))

	var dup *DuplicateKeyError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateKeyError, got %v", err)
	}
	if !errors.Is(err, ErrDuplicateKey) {
		t.Error("DuplicateKeyError should match ErrDuplicateKey")
	}
	if reg.Len() != 0 {
		t.Errorf("registry should stay empty, has %d plugins", reg.Len())
	}
}

func TestRegistryMissingRequiredDependency(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(newStub("p", Key{"p"}, Dependency{Kind: Key{"x"}}))

	var missing *MissingDependencyError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingDependencyError, got %v", err)
	}
	if missing.Dependency.String() != "x" || missing.Plugin.String() != "p" {
		t.Errorf("unexpected error fields: %+v", missing)
	}
}

func TestRegistryAmbiguousSingleton(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(
		newStub("oas", Key{"schema", "oas"}),
		newStub("oas", Key{"schema", "oas", "#1"}),
		newStub("client", Key{"controller", "client"}, Dependency{Kind: Key{"schema"}}),
	)
	if !errors.Is(err, ErrAmbiguousDependency) {
		t.Fatalf("expected ErrAmbiguousDependency, got %v", err)
	}
}

func TestRegistryStableOrder(t *testing.T) {
	tests := []struct {
		name    string
		plugins []Plugin
		want    []string
	}{
		{
			name:    "no dependencies keeps registration order",
			plugins: []Plugin{newStub("c", Key{"c"}), newStub("a", Key{"a"}), newStub("b", Key{"b"})},
			want:    []string{"c", "a", "b"},
		},
		{
			name: "dependency moves ahead, ties keep registration order",
			plugins: []Plugin{
				newStub("a", Key{"a"}, Dependency{Kind: Key{"b"}}),
				newStub("b", Key{"b"}),
				newStub("c", Key{"c"}),
			},
			want: []string{"b", "a", "c"},
		},
		{
			name: "kind prefix matches every instance",
			plugins: []Plugin{
				newStub("mocks", Key{"mocks"}, Dependency{Kind: Key{"controller"}, Optional: true, Multi: true}),
				newStub("client", Key{"controller", "client"}),
				newStub("client", Key{"controller", "client", "#1"}),
			},
			want: []string{"controller/client", "controller/client/#1", "mocks"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			if err := reg.Register(tt.plugins...); err != nil {
				t.Fatalf("Register() error = %v", err)
			}
			if got := keysOf(reg.Order()); !equalStrings(got, tt.want) {
				t.Errorf("Order() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegistryCycle(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(
		newStub("a", Key{"a"}, Dependency{Kind: Key{"b"}}),
		newStub("b", Key{"b"}, Dependency{Kind: Key{"a"}}),
	)

	var cyc *CyclicDependencyError
	if !errors.As(err, &cyc) {
		t.Fatalf("expected CyclicDependencyError, got %v", err)
	}
	if len(cyc.Cycle) != 3 || !cyc.Cycle[0].Equal(cyc.Cycle[2]) {
		t.Errorf("cycle should be closed, got %v", cyc.Cycle)
	}
}

func TestRegistryAllOrNothing(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(newStub("a", Key{"a"})); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	err := reg.Register(newStub("b", Key{"b"}), newStub("c", Key{"c"}, Dependency{Kind: Key{"missing"}}))
	if err == nil {
		t.Fatal("expected error")
	}
	if reg.Len() != 1 {
		t.Errorf("failed registration must not change the registry, Len() = %d", reg.Len())
	}
	if _, ok := reg.Get(Key{"b"}); ok {
		t.Error("plugin b should not be registered")
	}

	if err := reg.Register(newStub("b", Key{"b"}, Dependency{Kind: Key{"a"}})); err != nil {
		t.Fatalf("incremental Register() error = %v", err)
	}
	if got := keysOf(reg.Order()); !equalStrings(got, []string{"a", "b"}) {
		t.Errorf("Order() = %v", got)
	}
}

func TestRegistryHookNotImplemented(t *testing.T) {
	reg := NewRegistry()
	p := &bare{BasePlugin{Meta: Metadata{Name: "bare", Key: Key{"bare"}, Hooks: []Hook{HookStart}}}}
	err := reg.Register(p)

	var hni *HookNotImplementedError
	if !errors.As(err, &hni) {
		t.Fatalf("expected HookNotImplementedError, got %v", err)
	}
	if hni.Hook != HookStart {
		t.Errorf("Hook = %s, want start", hni.Hook)
	}
}

func TestRegistryNilPlugin(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(nil); err == nil {
		t.Error("expected error for nil plugin")
	}
}

func TestResolveDependents(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(
		newStub("oas", Key{"schema", "oas"}),
		newStub("client", Key{"controller", "client"}, Dependency{Kind: Key{"schema"}}),
		newStub("mocks", Key{"mocks"},
			Dependency{Kind: Key{"schema"}},
			Dependency{Kind: Key{"controller"}, Optional: true, Multi: true},
			Dependency{Kind: Key{"validator"}, Optional: true, Multi: true},
		),
	)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	t.Run("required singleton", func(t *testing.T) {
		got, err := reg.ResolveDependents(Key{"controller", "client"}, Key{"schema"})
		if err != nil {
			t.Fatalf("ResolveDependents() error = %v", err)
		}
		if !equalStrings(keysOf(got), []string{"schema/oas"}) {
			t.Errorf("got %v", keysOf(got))
		}
	})

	t.Run("narrower kind than declared", func(t *testing.T) {
		got, err := reg.ResolveDependents(Key{"mocks"}, Key{"controller", "client"})
		if err != nil {
			t.Fatalf("ResolveDependents() error = %v", err)
		}
		if len(got) != 1 {
			t.Errorf("got %v", keysOf(got))
		}
	})

	t.Run("optional and absent is empty", func(t *testing.T) {
		got, err := reg.ResolveDependents(Key{"mocks"}, Key{"validator"})
		if err != nil {
			t.Fatalf("ResolveDependents() error = %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("want empty non-nil slice, got %v", got)
		}
	})

	t.Run("undeclared kind", func(t *testing.T) {
		_, err := reg.ResolveDependents(Key{"controller", "client"}, Key{"mocks"})
		if !errors.Is(err, ErrUndeclaredDependency) {
			t.Errorf("expected ErrUndeclaredDependency, got %v", err)
		}
	})

	t.Run("unknown plugin", func(t *testing.T) {
		_, err := reg.ResolveDependents(Key{"nope"}, Key{"schema"})
		if !errors.Is(err, ErrPluginNotFound) {
			t.Errorf("expected ErrPluginNotFound, got %v", err)
		}
	})
}

type modelAPI interface {
	BaseURL() string
}

type fakeModel struct{ url string }

func (f fakeModel) BaseURL() string { return f.url }

func TestAPI(t *testing.T) {
	schema := newStub("oas", Key{"schema", "oas"})
	schema.api = fakeModel{url: "https://petstore.example"}
	reg := NewRegistry()
	err := reg.Register(schema,
		newStub("client", Key{"controller", "client"}, Dependency{Kind: Key{"schema"}}),
		newStub("docs", Key{"docs"}, Dependency{Kind: Key{"controller"}}),
	)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	api, err := API[modelAPI](reg, Key{"controller", "client"}, Key{"schema"})
	if err != nil {
		t.Fatalf("API() error = %v", err)
	}
	if api.BaseURL() != "https://petstore.example" {
		t.Errorf("BaseURL() = %q", api.BaseURL())
	}

	if _, err := API[modelAPI](reg, Key{"docs"}, Key{"controller"}); !errors.Is(err, ErrNoAPI) {
		t.Errorf("expected ErrNoAPI, got %v", err)
	}

	apis, err := APIs[modelAPI](reg, Key{"controller", "client"}, Key{"schema"})
	if err != nil || len(apis) != 1 {
		t.Errorf("APIs() = %v, %v", apis, err)
	}
}

func TestRegistryResolvePath(t *testing.T) {
	grouped := &pathStub{BasePlugin: BasePlugin{Meta: Metadata{
		Name: "grouped", Key: Key{"grouped"}, Hooks: []Hook{HookResolvePath, HookResolveName},
	}}, prefix: "pet"}
	empty := &pathStub{BasePlugin: BasePlugin{Meta: Metadata{
		Name: "empty", Key: Key{"empty"}, Hooks: []Hook{HookResolvePath},
	}}}

	reg := NewRegistry()
	if err := reg.Register(grouped, empty); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, err := reg.ResolvePath(ResolvePathParams{BaseName: "getPet.ts", Directory: "/out"})
	if err != nil {
		t.Fatalf("ResolvePath() error = %v", err)
	}
	if got != filepath.Clean("/out/pet/getPet.ts") {
		t.Errorf("ResolvePath() = %q", got)
	}

	_, err = reg.ResolvePath(ResolvePathParams{PluginKey: Key{"empty"}, BaseName: "x.ts", Directory: "/out"})
	if !errors.Is(err, naming.ErrUnresolvedPath) {
		t.Errorf("expected ErrUnresolvedPath, got %v", err)
	}

	_, err = reg.ResolvePath(ResolvePathParams{BaseName: " "})
	if !errors.Is(err, naming.ErrUnresolvedPath) {
		t.Errorf("expected ErrUnresolvedPath for empty base name, got %v", err)
	}

	if got := reg.ResolveName(ResolveNameParams{Name: "Find"}); got != "petFind" {
		t.Errorf("ResolveName() = %q", got)
	}

	plain := NewRegistry()
	got, err = plain.ResolvePath(ResolvePathParams{BaseName: "a.ts", Directory: "/out"})
	if err != nil || got != filepath.Clean("/out/a.ts") {
		t.Errorf("fallback ResolvePath() = %q, %v", got, err)
	}
	if got := plain.ResolveName(ResolveNameParams{Name: "get pet-by id"}); got != "getPetById" {
		t.Errorf("fallback ResolveName() = %q", got)
	}
	if got := plain.ResolveName(ResolveNameParams{Name: "---"}); got != naming.Placeholder {
		t.Errorf("ResolveName() of symbols = %q", got)
	}
}
