package plugin

import (
	"errors"
	"fmt"
	"strings"
)

// Key is an ordered capability key; its leading segments name the plugin kind
// and trailing segments disambiguate instances, e.g. [controller client #1].
type Key []string

// String joins the segments with "/".
func (k Key) String() string {
	return strings.Join(k, "/")
}

// Equal reports segment-wise equality.
func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix matches the leading segments of k.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) == 0 || len(prefix) > len(k) {
		return false
	}
	return k[:len(prefix)].Equal(prefix)
}

// Validate rejects empty keys and empty segments.
func (k Key) Validate() error {
	if len(k) == 0 {
		return fmt.Errorf("plugin key is required")
	}
	for i, seg := range k {
		if strings.TrimSpace(seg) == "" {
			return fmt.Errorf("plugin key %q has empty segment at %d", k.String(), i)
		}
	}
	return nil
}

// Hook names a lifecycle callback.
type Hook string

const (
	HookValidate    Hook = "validate"
	HookResolvePath Hook = "resolvePath"
	HookResolveName Hook = "resolveName"
	HookStart       Hook = "start"
	HookWriteFile   Hook = "writeFile"
	HookEnd         Hook = "end"
)

// IsValid returns true if the hook is recognized.
func (h Hook) IsValid() bool {
	switch h {
	case HookValidate, HookResolvePath, HookResolveName, HookStart, HookWriteFile, HookEnd:
		return true
	default:
		return false
	}
}

// String returns the string representation of the hook.
func (h Hook) String() string {
	return string(h)
}

// Sentinel kinds for registration and resolution failures.
var (
	ErrDuplicateKey         = errors.New("duplicate plugin key")
	ErrMissingDependency    = errors.New("missing plugin dependency")
	ErrAmbiguousDependency  = errors.New("ambiguous plugin dependency")
	ErrCyclicDependency     = errors.New("cyclic plugin dependency")
	ErrUndeclaredDependency = errors.New("undeclared plugin dependency")
	ErrHookNotImplemented   = errors.New("declared hook not implemented")
	ErrPluginNotFound       = errors.New("plugin not found")
	ErrNoAPI                = errors.New("plugin exposes no api")
)

// DuplicateKeyError reports two descriptors sharing a key.
type DuplicateKeyError struct {
	Key Key
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDuplicateKey, e.Key)
}

func (e *DuplicateKeyError) Unwrap() error { return ErrDuplicateKey }

// MissingDependencyError reports a required dependency with no registered match.
type MissingDependencyError struct {
	Plugin     Key
	Dependency Key
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("%s: plugin %s requires %s", ErrMissingDependency, e.Plugin, e.Dependency)
}

func (e *MissingDependencyError) Unwrap() error { return ErrMissingDependency }

// AmbiguousDependencyError reports a singleton dependency with several matches.
type AmbiguousDependencyError struct {
	Plugin     Key
	Dependency Key
	Matches    []Key
}

func (e *AmbiguousDependencyError) Error() string {
	names := make([]string, len(e.Matches))
	for i, m := range e.Matches {
		names[i] = m.String()
	}
	return fmt.Sprintf("%s: plugin %s expects one %s, found %s",
		ErrAmbiguousDependency, e.Plugin, e.Dependency, strings.Join(names, ", "))
}

func (e *AmbiguousDependencyError) Unwrap() error { return ErrAmbiguousDependency }

// CyclicDependencyError reports a dependency graph that cannot be linearised.
type CyclicDependencyError struct {
	Cycle []Key
}

func (e *CyclicDependencyError) Error() string {
	if len(e.Cycle) == 0 {
		return ErrCyclicDependency.Error()
	}
	names := make([]string, len(e.Cycle))
	for i, k := range e.Cycle {
		names[i] = k.String()
	}
	return fmt.Sprintf("%s: %s", ErrCyclicDependency, strings.Join(names, " -> "))
}

func (e *CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }

// UndeclaredDependencyError reports a lookup of a kind the caller never declared.
type UndeclaredDependencyError struct {
	Plugin Key
	Kind   Key
}

func (e *UndeclaredDependencyError) Error() string {
	return fmt.Sprintf("%s: plugin %s did not declare %s", ErrUndeclaredDependency, e.Plugin, e.Kind)
}

func (e *UndeclaredDependencyError) Unwrap() error { return ErrUndeclaredDependency }

// HookNotImplementedError reports a declared hook without its interface.
type HookNotImplementedError struct {
	Plugin Key
	Hook   Hook
}

func (e *HookNotImplementedError) Error() string {
	return fmt.Sprintf("%s: plugin %s declares %s", ErrHookNotImplemented, e.Plugin, e.Hook)
}

func (e *HookNotImplementedError) Unwrap() error { return ErrHookNotImplemented }
