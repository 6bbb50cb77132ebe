package pipeline

import (
	"errors"
	"fmt"

	"git.home.luguber.info/inful/specbuilder/internal/plugin"
)

var (
	// ErrVetoed is returned when a validate hook rejects the plugin set.
	ErrVetoed = errors.New("build vetoed")

	// ErrAlreadyRun is returned when Run is called on a runner that left not_started.
	ErrAlreadyRun = errors.New("runner already executed")

	// ErrNotCompleted is returned by WriteFiles before a successful Run.
	ErrNotCompleted = errors.New("lifecycle not completed")
)

// HookExecutionError reports the hook that aborted a build.
type HookExecutionError struct {
	PluginKey plugin.Key
	Hook      plugin.Hook
	Err       error
}

func (e *HookExecutionError) Error() string {
	return fmt.Sprintf("plugin %s: %s hook failed: %v", e.PluginKey, e.Hook, e.Err)
}

func (e *HookExecutionError) Unwrap() error { return e.Err }

// PanicError carries a value recovered from a panicking hook.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
