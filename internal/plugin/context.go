package plugin

import (
	"log/slog"
	"path/filepath"

	"git.home.luguber.info/inful/specbuilder/internal/config"
	"git.home.luguber.info/inful/specbuilder/internal/filegraph"
	"git.home.luguber.info/inful/specbuilder/internal/naming"
)

// Context is the view of a build handed to each plugin hook.
// It carries the resolved configuration, the shared file graph and the
// registry, bound to the plugin currently executing.
type Context struct {
	// Config is the resolved build configuration.
	Config *config.Config

	// Files is the file graph shared by every plugin of the build.
	Files *filegraph.Manager

	// Registry resolves dependencies and dispatches resolver hooks.
	Registry *Registry

	// Plugin is the plugin this context is bound to.
	Plugin Plugin

	// Logger is pre-tagged with the plugin key.
	Logger *slog.Logger

	// BuildID uniquely identifies this build.
	BuildID string
}

// NewContext creates a context bound to p.
func NewContext(cfg *config.Config, files *filegraph.Manager, reg *Registry, p Plugin, logger *slog.Logger, buildID string) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	if p != nil {
		logger = logger.With(slog.String("plugin", p.Metadata().Key.String()))
	}
	return &Context{
		Config:   cfg,
		Files:    files,
		Registry: reg,
		Plugin:   p,
		Logger:   logger,
		BuildID:  buildID,
	}
}

// Key returns the key of the bound plugin.
func (c *Context) Key() Key {
	if c.Plugin == nil {
		return nil
	}
	return c.Plugin.Metadata().Key
}

// Root returns the absolute build root.
func (c *Context) Root() string {
	if c.Config == nil {
		return ""
	}
	return c.Config.Root
}

// OutputPath returns the absolute output location (directory or single file).
func (c *Context) OutputPath() string {
	if c.Config == nil {
		return ""
	}
	return c.Config.OutputPath()
}

// OutputMode reports whether output collapses into a single file.
func (c *Context) OutputMode() naming.Mode {
	return naming.ModeOf(c.OutputPath())
}

// OutputDir returns the directory that holds generated output.
func (c *Context) OutputDir() string {
	out := c.OutputPath()
	if naming.ModeOf(out) == naming.ModeFile {
		return filepath.Dir(out)
	}
	return out
}

// AddFile adds file to the graph stamped with the bound plugin's key.
func (c *Context) AddFile(file filegraph.File, opts ...filegraph.AddOption) (*filegraph.File, error) {
	return c.Files.Add(c.stamp(file), opts...)
}

// AddOrAppendFile merges file into the graph stamped with the bound plugin's key.
func (c *Context) AddOrAppendFile(file filegraph.File) (*filegraph.File, error) {
	return c.Files.AddOrAppend(c.stamp(file))
}

func (c *Context) stamp(file filegraph.File) filegraph.File {
	if key := c.Key(); key != nil {
		meta := make(map[string]any, len(file.Meta)+1)
		for k, v := range file.Meta {
			meta[k] = v
		}
		if _, ok := meta[filegraph.MetaPluginKey]; !ok {
			meta[filegraph.MetaPluginKey] = key.String()
		}
		file.Meta = meta
	}
	return file
}

// ResolvePath resolves baseName through the registry.
// An empty key selects the first plugin declaring resolvePath.
func (c *Context) ResolvePath(key Key, baseName string, opts naming.PathOptions) (string, error) {
	return c.Registry.ResolvePath(ResolvePathParams{
		PluginKey: key,
		BaseName:  baseName,
		Directory: c.OutputDir(),
		Options:   opts,
	})
}

// ResolveName resolves name through the registry.
func (c *Context) ResolveName(key Key, name string) string {
	return c.Registry.ResolveName(ResolveNameParams{PluginKey: key, Name: name})
}

// Dependents returns the plugins of kind the bound plugin declared as dependencies.
func (c *Context) Dependents(kind Key) ([]Plugin, error) {
	return c.Registry.ResolveDependents(c.Key(), kind)
}
