// Package pipeline drives the plugin lifecycle of a build: validation, the
// start phase in dependency order, the end phase, and the optional writeFile
// phase, with middleware around every hook call.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"git.home.luguber.info/inful/specbuilder/internal/config"
	"git.home.luguber.info/inful/specbuilder/internal/filegraph"
	"git.home.luguber.info/inful/specbuilder/internal/logfields"
	"git.home.luguber.info/inful/specbuilder/internal/observability"
	"git.home.luguber.info/inful/specbuilder/internal/plugin"
)

// HookExecution records one completed or failed hook call.
type HookExecution struct {
	Plugin   plugin.Key
	Hook     plugin.Hook
	Duration time.Duration
	// FilePath is set for writeFile.
	FilePath string
	Err      error
}

// ExecutionResult contains the results of a lifecycle run.
type ExecutionResult struct {
	Order []plugin.Key
	Hooks []HookExecution
	State State
}

// IsSuccess returns true if the lifecycle completed.
func (r *ExecutionResult) IsSuccess() bool {
	return r != nil && r.State == StateCompleted
}

// Failed returns the hook execution that aborted the run, if any.
func (r *ExecutionResult) Failed() (HookExecution, bool) {
	if r == nil {
		return HookExecution{}, false
	}
	for _, h := range r.Hooks {
		if h.Err != nil {
			return h, true
		}
	}
	return HookExecution{}, false
}

// Runner executes the hooks of one build's plugins. A Runner runs once.
type Runner struct {
	mu         sync.Mutex
	config     *config.Config
	registry   *plugin.Registry
	files      *filegraph.Manager
	logger     *slog.Logger
	buildID    string
	middleware []Middleware
	state      State
	contexts   map[string]*plugin.Context
	result     *ExecutionResult
}

// RunnerOption configures runner behavior.
type RunnerOption func(*Runner)

// WithMiddleware adds middleware around every hook call.
func WithMiddleware(mw ...Middleware) RunnerOption {
	return func(r *Runner) {
		r.middleware = append(r.middleware, mw...)
	}
}

// WithLogger sets the base logger handed to plugin contexts.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithBuildID tags the run with a build identifier.
func WithBuildID(id string) RunnerOption {
	return func(r *Runner) {
		r.buildID = id
	}
}

// NewRunner creates a runner over a populated registry and an empty file graph.
func NewRunner(cfg *config.Config, registry *plugin.Registry, files *filegraph.Manager, opts ...RunnerOption) *Runner {
	r := &Runner{
		config:   cfg,
		registry: registry,
		files:    files,
		logger:   slog.Default(),
		state:    StateNotStarted,
		contexts: make(map[string]*plugin.Context),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	if r.result != nil {
		r.result.State = s
	}
}

// Run validates the plugin set, then runs start for every plugin in resolved
// order and end for every plugin once all start hooks finished. The first
// failure aborts the run; files added before it stay in the graph.
func (r *Runner) Run(ctx context.Context) (*ExecutionResult, error) {
	r.mu.Lock()
	if r.state != StateNotStarted {
		r.mu.Unlock()
		return nil, ErrAlreadyRun
	}
	r.mu.Unlock()

	ctx = observability.WithBuildID(ctx, r.buildID)
	order := r.registry.Order()
	r.result = &ExecutionResult{Order: make([]plugin.Key, len(order)), State: StateNotStarted}
	for i, p := range order {
		r.result.Order[i] = p.Metadata().Key
	}

	observability.InfoContext(ctx, "Executing plugin lifecycle",
		slog.Int("plugins", len(order)),
		slog.Any("order", r.result.Order))

	phases := []struct {
		state State
		hook  plugin.Hook
	}{
		{StateValidating, plugin.HookValidate},
		{StateRunningStart, plugin.HookStart},
		{StateRunningEnd, plugin.HookEnd},
	}
	for _, phase := range phases {
		r.setState(phase.state)
		phaseCtx := observability.WithPhase(ctx, phase.state.phase())
		for _, p := range order {
			if !p.Metadata().Declares(phase.hook) {
				continue
			}
			if err := r.invoke(phaseCtx, p, phase.hook, nil); err != nil {
				r.setState(StateFailed)
				return r.result, err
			}
		}
	}

	r.setState(StateCompleted)
	observability.InfoContext(ctx, "Plugin lifecycle completed", logfields.Files(r.files.Len()))
	return r.result, nil
}

// WriteFiles invokes writeFile for every file, in the order given, on every
// plugin declaring it, in resolved order. It requires a completed Run.
func (r *Runner) WriteFiles(ctx context.Context, files []*filegraph.File) ([]HookExecution, error) {
	if r.State() != StateCompleted {
		return nil, ErrNotCompleted
	}

	var writers []plugin.Plugin
	for _, p := range r.registry.Order() {
		if p.Metadata().Declares(plugin.HookWriteFile) {
			writers = append(writers, p)
		}
	}

	ctx = observability.WithPhase(observability.WithBuildID(ctx, r.buildID), "writeFile")
	mark := len(r.result.Hooks)
	for _, f := range files {
		for _, p := range writers {
			if err := r.invoke(ctx, p, plugin.HookWriteFile, f); err != nil {
				return r.result.Hooks[mark:], err
			}
		}
	}
	return r.result.Hooks[mark:], nil
}

func (r *Runner) invoke(ctx context.Context, p plugin.Plugin, hook plugin.Hook, file *filegraph.File) error {
	key := p.Metadata().Key
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("build canceled before %s of %s: %w", hook, key, err)
	}

	inv := &Invocation{
		BuildID: r.buildID,
		Plugin:  p,
		Hook:    hook,
		Context: r.contextFor(p),
		File:    file,
	}
	ctx = observability.WithHook(observability.WithPlugin(ctx, key.String()), hook.String())

	start := time.Now()
	err := Chain(r.dispatch, r.middleware...)(ctx, inv)
	exec := HookExecution{Plugin: key, Hook: hook, Duration: time.Since(start), Err: err}
	if file != nil {
		exec.FilePath = file.Path
	}
	r.result.Hooks = append(r.result.Hooks, exec)

	if err != nil {
		return &HookExecutionError{PluginKey: key, Hook: hook, Err: err}
	}
	return nil
}

func (r *Runner) contextFor(p plugin.Plugin) *plugin.Context {
	key := p.Metadata().Key.String()
	if pctx, ok := r.contexts[key]; ok {
		return pctx
	}
	pctx := plugin.NewContext(r.config, r.files, r.registry, p, r.logger, r.buildID)
	r.contexts[key] = pctx
	return pctx
}

// dispatch calls the hook itself and turns a panic into an error.
func (r *Runner) dispatch(ctx context.Context, inv *Invocation) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()

	switch inv.Hook {
	case plugin.HookValidate:
		ok, verr := inv.Plugin.(plugin.Validator).Validate(inv.Context, r.registry.Order())
		if verr != nil {
			return verr
		}
		if !ok {
			return ErrVetoed
		}
		return nil
	case plugin.HookStart:
		return inv.Plugin.(plugin.Starter).Start(ctx, inv.Context)
	case plugin.HookEnd:
		return inv.Plugin.(plugin.Ender).End(ctx, inv.Context)
	case plugin.HookWriteFile:
		return inv.Plugin.(plugin.FileWriter).WriteFile(ctx, inv.Context, inv.File)
	default:
		return fmt.Errorf("hook %s is not dispatched by the runner", inv.Hook)
	}
}
