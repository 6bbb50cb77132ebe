package plugin

import (
	"container/heap"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"git.home.luguber.info/inful/specbuilder/internal/naming"
)

// Registry holds the plugins of one build in resolved execution order.
//
// A Registry is never shared between builds.
type Registry struct {
	mu         sync.RWMutex
	registered []Plugin
	order      []Plugin
	byKey      map[string]Plugin
	matches    map[string][][]Plugin // key -> per-dependency matches in resolved order
}

// NewRegistry creates a new empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		byKey:   make(map[string]Plugin),
		matches: make(map[string][][]Plugin),
	}
}

// Register validates plugins together with anything already registered and
// recomputes the execution order. Registration is all-or-nothing: on error
// the registry is left unchanged.
func (r *Registry) Register(plugins ...Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]Plugin, 0, len(r.order)+len(plugins))
	all = append(all, r.registered...)
	for i, p := range plugins {
		if p == nil {
			return fmt.Errorf("cannot register nil plugin at position %d", i)
		}
		all = append(all, p)
	}

	metas := make([]Metadata, len(all))
	byKey := make(map[string]Plugin, len(all))
	for i, p := range all {
		meta := p.Metadata()
		if err := meta.Validate(); err != nil {
			return fmt.Errorf("invalid plugin metadata: %w", err)
		}
		if _, exists := byKey[meta.Key.String()]; exists {
			return &DuplicateKeyError{Key: meta.Key}
		}
		for _, h := range meta.Hooks {
			if !implements(p, h) {
				return &HookNotImplementedError{Plugin: meta.Key, Hook: h}
			}
		}
		byKey[meta.Key.String()] = p
		metas[i] = meta
	}

	// edges[i] lists the registration indices plugin i depends on.
	edges := make([][][]int, len(all))
	for i, meta := range metas {
		edges[i] = make([][]int, len(meta.Dependencies))
		for d, dep := range meta.Dependencies {
			var found []int
			for j, other := range metas {
				if j != i && other.Key.HasPrefix(dep.Kind) {
					found = append(found, j)
				}
			}
			switch {
			case len(found) == 0 && !dep.Optional:
				return &MissingDependencyError{Plugin: meta.Key, Dependency: dep.Kind}
			case len(found) > 1 && !dep.Multi:
				keys := make([]Key, len(found))
				for k, j := range found {
					keys[k] = metas[j].Key
				}
				return &AmbiguousDependencyError{Plugin: meta.Key, Dependency: dep.Kind, Matches: keys}
			}
			edges[i][d] = found
		}
	}

	order, err := stableTopoSort(metas, edges)
	if err != nil {
		return err
	}

	position := make([]int, len(all))
	resolved := make([]Plugin, len(order))
	for pos, idx := range order {
		position[idx] = pos
		resolved[pos] = all[idx]
	}

	matches := make(map[string][][]Plugin, len(all))
	for i, meta := range metas {
		perDep := make([][]Plugin, len(edges[i]))
		for d, found := range edges[i] {
			sorted := slices.Clone(found)
			slices.SortFunc(sorted, func(a, b int) int { return position[a] - position[b] })
			perDep[d] = make([]Plugin, len(sorted))
			for k, j := range sorted {
				perDep[d][k] = all[j]
			}
		}
		matches[meta.Key.String()] = perDep
	}

	r.order = resolved
	r.byKey = byKey
	r.matches = matches
	r.registered = all
	return nil
}

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// stableTopoSort orders plugins so every dependency precedes its dependents.
// Ties are broken by registration index.
func stableTopoSort(metas []Metadata, edges [][][]int) ([]int, error) {
	n := len(metas)
	indeg := make([]int, n)
	outgoing := make([][]int, n)
	for i := range edges {
		seen := make(map[int]struct{})
		for _, found := range edges[i] {
			for _, j := range found {
				if _, dup := seen[j]; dup {
					continue
				}
				seen[j] = struct{}{}
				outgoing[j] = append(outgoing[j], i)
				indeg[i]++
			}
		}
	}

	ready := &intMinHeap{}
	heap.Init(ready)
	for i := range indeg {
		if indeg[i] == 0 {
			heap.Push(ready, i)
		}
	}

	out := make([]int, 0, n)
	for ready.Len() > 0 {
		u := heap.Pop(ready).(int)
		out = append(out, u)
		for _, v := range outgoing[u] {
			indeg[v]--
			if indeg[v] == 0 {
				heap.Push(ready, v)
			}
		}
	}
	if len(out) == n {
		return out, nil
	}

	cycle := findCycle(outgoing, indeg)
	keys := make([]Key, len(cycle))
	for i, idx := range cycle {
		keys[i] = metas[idx].Key
	}
	return nil, &CyclicDependencyError{Cycle: keys}
}

// findCycle walks the nodes Kahn could not drain and returns one cycle,
// closed on its first node, in dependency -> dependent direction.
func findCycle(outgoing [][]int, indeg []int) []int {
	const (
		white = iota
		gray
		black
	)
	color := make([]int, len(outgoing))
	parent := make([]int, len(outgoing))
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int
	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for _, v := range outgoing[u] {
			if indeg[v] == 0 {
				continue
			}
			switch color[v] {
			case white:
				parent[v] = u
				if dfs(v) {
					return true
				}
			case gray:
				for cur := u; cur != v && cur != -1; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, v)
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}

	for i := range outgoing {
		if indeg[i] > 0 && color[i] == white && dfs(i) {
			break
		}
	}
	return cycle
}

// Order returns the plugins in resolved execution order.
func (r *Registry) Order() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Plugin, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}

// Get retrieves a plugin by its exact key.
func (r *Registry) Get(key Key) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byKey[key.String()]
	return p, ok
}

// ListByKind returns every plugin whose key starts with kind, in resolved order.
func (r *Registry) ListByKind(kind Key) []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Plugin
	for _, p := range r.order {
		if p.Metadata().Key.HasPrefix(kind) {
			out = append(out, p)
		}
	}
	return out
}

// ResolveDependents returns the plugins matching kind that from declared as a
// dependency, in resolved order. An optional dependency with no match yields
// an empty slice. Looking up a kind that from never declared is an error.
func (r *Registry) ResolveDependents(from Key, kind Key) ([]Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byKey[from.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, from)
	}

	meta := p.Metadata()
	for d, dep := range meta.Dependencies {
		if !kind.HasPrefix(dep.Kind) {
			continue
		}
		var out []Plugin
		for _, candidate := range r.matches[from.String()][d] {
			if candidate.Metadata().Key.HasPrefix(kind) {
				out = append(out, candidate)
			}
		}
		if len(out) == 0 && !dep.Optional {
			return nil, &MissingDependencyError{Plugin: from, Dependency: kind}
		}
		if out == nil {
			out = []Plugin{}
		}
		return out, nil
	}

	return nil, &UndeclaredDependencyError{Plugin: from, Kind: kind}
}

// ResolvePathParams is a path resolution request.
type ResolvePathParams struct {
	// PluginKey selects the resolver; empty means the first plugin declaring resolvePath.
	PluginKey Key
	BaseName  string
	Directory string
	Options   naming.PathOptions
}

// ResolveNameParams is a name resolution request.
type ResolveNameParams struct {
	// PluginKey selects the resolver; empty means the first plugin declaring resolveName.
	PluginKey Key
	Name      string
}

// ResolvePath dispatches to a resolvePath hook. Without a resolver the base
// name is joined onto Directory. The result is never empty.
func (r *Registry) ResolvePath(params ResolvePathParams) (string, error) {
	if strings.TrimSpace(params.BaseName) == "" {
		return "", &naming.UnresolvedPathError{Reason: "base name is empty"}
	}

	var path string
	if resolver := r.findResolver(params.PluginKey, HookResolvePath); resolver != nil {
		resolved, err := resolver.(PathResolver).ResolvePath(params.BaseName, params.Directory, params.Options)
		if err != nil {
			return "", err
		}
		path = resolved
	} else {
		path = filepath.Join(params.Directory, params.BaseName)
	}

	if strings.TrimSpace(path) == "" {
		return "", &naming.UnresolvedPathError{BaseName: params.BaseName, Reason: "resolver returned an empty path"}
	}
	return filepath.Clean(path), nil
}

// ResolveName dispatches to a resolveName hook, falling back to lower camel case.
func (r *Registry) ResolveName(params ResolveNameParams) string {
	var name string
	if resolver := r.findResolver(params.PluginKey, HookResolveName); resolver != nil {
		name = resolver.(NameResolver).ResolveName(params.Name)
	} else {
		name = naming.CamelCase(params.Name)
	}
	if strings.TrimSpace(name) == "" {
		return naming.Placeholder
	}
	return name
}

func (r *Registry) findResolver(key Key, hook Hook) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(key) > 0 {
		if p, ok := r.byKey[key.String()]; ok && p.Metadata().Declares(hook) {
			return p
		}
		return nil
	}
	for _, p := range r.order {
		if p.Metadata().Declares(hook) {
			return p
		}
	}
	return nil
}

// API returns the exposed API of the single plugin matching kind that from
// depends on, asserted to T.
func API[T any](r *Registry, from Key, kind Key) (T, error) {
	var zero T
	deps, err := r.ResolveDependents(from, kind)
	if err != nil {
		return zero, err
	}
	if len(deps) == 0 {
		return zero, fmt.Errorf("%w: %s", ErrPluginNotFound, kind)
	}
	return apiOf[T](deps[0])
}

// APIs returns the exposed APIs of every plugin matching kind that from depends on.
func APIs[T any](r *Registry, from Key, kind Key) ([]T, error) {
	deps, err := r.ResolveDependents(from, kind)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(deps))
	for _, p := range deps {
		api, err := apiOf[T](p)
		if err != nil {
			return nil, err
		}
		out = append(out, api)
	}
	return out, nil
}

func apiOf[T any](p Plugin) (T, error) {
	var zero T
	provider, ok := p.(APIProvider)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrNoAPI, p.Metadata().Key)
	}
	api, ok := provider.API().(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s exposes %T, want %T", ErrNoAPI, p.Metadata().Key, provider.API(), zero)
	}
	return api, nil
}
