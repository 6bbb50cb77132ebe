// Package plugin provides the plugin model for specbuilder: descriptors with
// capability keys and declared dependencies, optional lifecycle hooks, and the
// per-build registry that orders plugins and resolves their dependencies.
package plugin

import (
	"context"
	"fmt"
	"strings"

	"git.home.luguber.info/inful/specbuilder/internal/filegraph"
	"git.home.luguber.info/inful/specbuilder/internal/naming"
)

// Plugin is a generator unit registered for one build.
//
// Hooks are optional. A plugin opts into a hook by listing it in
// Metadata().Hooks and implementing the matching interface below; the registry
// checks both at registration and the runner dispatches only declared hooks.
type Plugin interface {
	// Metadata returns the plugin's identity, dependencies and declared hooks.
	Metadata() Metadata
}

// Validator may veto the whole build before any start hook runs.
type Validator interface {
	Validate(pctx *Context, plugins []Plugin) (bool, error)
}

// PathResolver maps a base name onto a physical output path.
type PathResolver interface {
	ResolvePath(baseName, directory string, opts naming.PathOptions) (string, error)
}

// NameResolver maps a logical name onto an identifier.
type NameResolver interface {
	ResolveName(name string) string
}

// Starter produces output. Dependencies have finished their start hook.
type Starter interface {
	Start(ctx context.Context, pctx *Context) error
}

// Ender runs after every plugin finished start and sees the complete file set.
type Ender interface {
	End(ctx context.Context, pctx *Context) error
}

// FileWriter receives every file of a completed build when output writing is enabled.
type FileWriter interface {
	WriteFile(ctx context.Context, pctx *Context, file *filegraph.File) error
}

// APIProvider exposes a public API to dependent plugins.
type APIProvider interface {
	API() any
}

// Metadata describes a plugin instance.
type Metadata struct {
	// Name is the plugin kind name (e.g. "client", "oas").
	Name string

	// Version is informational.
	Version string

	// Description is a human-readable summary.
	Description string

	// Key uniquely identifies the instance within a build, e.g. [controller client].
	Key Key

	// Dependencies lists the plugin kinds this plugin reads from.
	Dependencies []Dependency

	// Hooks lists the lifecycle hooks this plugin implements.
	Hooks []Hook

	// Options is plugin-specific configuration, opaque to the core.
	Options any
}

// Dependency declares a read dependency on plugins whose key starts with Kind.
type Dependency struct {
	Kind Key

	// Optional allows zero matches.
	Optional bool

	// Multi allows more than one match. Without it the dependency is a singleton.
	Multi bool
}

// String renders the dependency for logs and errors.
func (d Dependency) String() string {
	var mods []string
	if d.Optional {
		mods = append(mods, "optional")
	}
	if d.Multi {
		mods = append(mods, "multi")
	}
	if len(mods) == 0 {
		return d.Kind.String()
	}
	return fmt.Sprintf("%s (%s)", d.Kind, strings.Join(mods, ","))
}

// String returns a human-readable representation of the plugin metadata.
func (m Metadata) String() string {
	if m.Version == "" {
		return fmt.Sprintf("%s [%s]", m.Name, m.Key)
	}
	return fmt.Sprintf("%s@%s [%s]", m.Name, m.Version, m.Key)
}

// Validate checks if the plugin metadata is valid.
func (m Metadata) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("plugin name is required")
	}
	if err := m.Key.Validate(); err != nil {
		return fmt.Errorf("plugin %s: %w", m.Name, err)
	}
	for _, d := range m.Dependencies {
		if err := d.Kind.Validate(); err != nil {
			return fmt.Errorf("plugin %s: dependency: %w", m.Name, err)
		}
	}
	for _, h := range m.Hooks {
		if !h.IsValid() {
			return fmt.Errorf("plugin %s: unknown hook %q", m.Name, h)
		}
	}
	return nil
}

// Declares reports whether the metadata lists hook h.
func (m Metadata) Declares(h Hook) bool {
	for _, declared := range m.Hooks {
		if declared == h {
			return true
		}
	}
	return false
}

// implements reports whether p satisfies the interface behind hook h.
func implements(p Plugin, h Hook) bool {
	switch h {
	case HookValidate:
		_, ok := p.(Validator)
		return ok
	case HookResolvePath:
		_, ok := p.(PathResolver)
		return ok
	case HookResolveName:
		_, ok := p.(NameResolver)
		return ok
	case HookStart:
		_, ok := p.(Starter)
		return ok
	case HookWriteFile:
		_, ok := p.(FileWriter)
		return ok
	case HookEnd:
		_, ok := p.(Ender)
		return ok
	default:
		return false
	}
}

// BasePlugin provides the Metadata plumbing for plugins that embed it.
type BasePlugin struct {
	Meta Metadata
}

// Metadata returns the embedded metadata.
func (b *BasePlugin) Metadata() Metadata {
	return b.Meta
}
