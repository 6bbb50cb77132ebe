// Package catalog maps configured plugin names onto built-in plugin instances.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/specbuilder/internal/config"
	"git.home.luguber.info/inful/specbuilder/internal/plugin"
	"git.home.luguber.info/inful/specbuilder/internal/plugins/client"
	"git.home.luguber.info/inful/specbuilder/internal/plugins/core"
	"git.home.luguber.info/inful/specbuilder/internal/plugins/docs"
	"git.home.luguber.info/inful/specbuilder/internal/plugins/mocks"
	"git.home.luguber.info/inful/specbuilder/internal/plugins/oas"
)

// ErrUnknownPlugin is returned for names missing from the catalog.
var ErrUnknownPlugin = errors.New("unknown plugin")

// Env carries the collaborators factories may need.
type Env struct {
	Loader oas.Loader
}

// Factory builds one plugin instance from raw options.
type Factory func(options map[string]any, key plugin.Key, env Env) (plugin.Plugin, error)

// Entry describes one available plugin.
type Entry struct {
	Name        string
	Description string
	DefaultKey  plugin.Key
	New         Factory
}

// Catalog is a set of named plugin factories.
type Catalog struct {
	entries map[string]Entry
	order   []string
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{entries: make(map[string]Entry)}
}

// Default returns the catalog of built-in plugins.
func Default() *Catalog {
	c := New()
	c.Add(Entry{
		Name:        oas.Name,
		Description: "Parses the OpenAPI description and exposes it to generators",
		DefaultKey:  plugin.Key{"schema", oas.Name},
		New: func(raw map[string]any, key plugin.Key, env Env) (plugin.Plugin, error) {
			var opts oas.Options
			if err := decode(raw, &opts); err != nil {
				return nil, err
			}
			return oas.New(opts, env.Loader, key), nil
		},
	})
	c.Add(Entry{
		Name:        client.Name,
		Description: "Generates one request function per operation",
		DefaultKey:  plugin.Key{"controller", client.Name},
		New: func(raw map[string]any, key plugin.Key, _ Env) (plugin.Plugin, error) {
			var opts client.Options
			if err := decode(raw, &opts); err != nil {
				return nil, err
			}
			return client.New(opts, key), nil
		},
	})
	c.Add(Entry{
		Name:        mocks.Name,
		Description: "Generates mock response factories",
		DefaultKey:  plugin.Key{mocks.Name},
		New: func(raw map[string]any, key plugin.Key, _ Env) (plugin.Plugin, error) {
			var opts mocks.Options
			if err := decode(raw, &opts); err != nil {
				return nil, err
			}
			return mocks.New(opts, key), nil
		},
	})
	c.Add(Entry{
		Name:        docs.Name,
		Description: "Generates markdown and HTML reference pages",
		DefaultKey:  plugin.Key{docs.Name},
		New: func(raw map[string]any, key plugin.Key, _ Env) (plugin.Plugin, error) {
			var opts docs.Options
			if err := decode(raw, &opts); err != nil {
				return nil, err
			}
			return docs.New(opts, key), nil
		},
	})
	return c
}

// Add registers or replaces an entry.
func (c *Catalog) Add(e Entry) {
	if _, exists := c.entries[e.Name]; !exists {
		c.order = append(c.order, e.Name)
	}
	c.entries[e.Name] = e
}

// Entries lists the catalog in registration order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.entries[name])
	}
	return out
}

// Plugins instantiates cfg.Plugins in configuration order, preceded by the
// core plugin. Repeated kinds without an explicit key get "#n" suffixes.
func (c *Catalog) Plugins(cfg *config.Config, env Env) ([]plugin.Plugin, error) {
	out := []plugin.Plugin{core.New()}
	seen := make(map[string]int)

	for i, pc := range cfg.Plugins {
		if pc.Name == core.Name {
			return nil, fmt.Errorf("plugins[%d]: %s is added implicitly", i, core.Name)
		}
		entry, ok := c.entries[pc.Name]
		if !ok {
			return nil, fmt.Errorf("plugins[%d]: %w %q", i, ErrUnknownPlugin, pc.Name)
		}

		key := plugin.Key(slices.Clone(pc.Key))
		if len(key) == 0 {
			key = slices.Clone(entry.DefaultKey)
			if n := seen[pc.Name]; n > 0 {
				key = append(key, fmt.Sprintf("#%d", n))
			}
			seen[pc.Name]++
		}

		p, err := entry.New(pc.Options, key, env)
		if err != nil {
			return nil, fmt.Errorf("plugins[%d] %s: %w", i, pc.Name, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// decode maps raw options onto a typed struct, rejecting unknown fields.
func decode(raw map[string]any, out any) error {
	if len(raw) == 0 {
		return nil
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}
