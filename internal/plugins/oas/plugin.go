// Package oas provides the schema plugin: it loads the configured API
// description and exposes the parsed model to dependent plugins.
package oas

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/specbuilder/internal/config"
	"git.home.luguber.info/inful/specbuilder/internal/input"
	"git.home.luguber.info/inful/specbuilder/internal/logfields"
	"git.home.luguber.info/inful/specbuilder/internal/plugin"
)

// Name is the plugin name used in configuration.
const Name = "oas"

// Kind is the key prefix dependents declare.
var Kind = plugin.Key{"schema"}

// API is what dependents get from plugin.API[oas.API]. It is valid once the
// plugin's start hook has run.
type API interface {
	ParsedModel() *Document
	BaseURL() string
}

// Loader fetches the raw description.
type Loader interface {
	Load(ctx context.Context, cfg *config.Config) (*input.Document, error)
}

// Options configure the plugin.
type Options struct {
	// ServerIndex selects the servers entry BaseURL reports.
	ServerIndex int `yaml:"serverIndex"`
	// BaseURL overrides the servers list.
	BaseURL string `yaml:"baseURL"`
}

// Plugin parses the API description during start.
type Plugin struct {
	plugin.BasePlugin
	opts   Options
	loader Loader
	doc    *Document
	source *input.Document
}

// New creates the plugin. key defaults to [schema oas].
func New(opts Options, loader Loader, key plugin.Key) *Plugin {
	if len(key) == 0 {
		key = plugin.Key{"schema", Name}
	}
	return &Plugin{
		BasePlugin: plugin.BasePlugin{Meta: plugin.Metadata{
			Name:        Name,
			Version:     "1.0.0",
			Description: "Parses an OpenAPI 3 description",
			Key:         key,
			Hooks:       []plugin.Hook{plugin.HookValidate, plugin.HookStart},
			Options:     opts,
		}},
		opts:   opts,
		loader: loader,
	}
}

// API returns the plugin itself.
func (p *Plugin) API() any { return API(p) }

// Validate requires an input location.
func (p *Plugin) Validate(pctx *plugin.Context, _ []plugin.Plugin) (bool, error) {
	in := pctx.Config.Input
	if in.Path == "" && in.Git == nil {
		return false, fmt.Errorf("%s: input.path or input.git is required", Name)
	}
	if p.loader == nil {
		return false, fmt.Errorf("%s: no input loader configured", Name)
	}
	return true, nil
}

// Start loads and parses the description.
func (p *Plugin) Start(ctx context.Context, pctx *plugin.Context) error {
	src, err := p.loader.Load(ctx, pctx.Config)
	if err != nil {
		return err
	}
	doc, err := Parse(src.Data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", src.Location, err)
	}
	p.source = src
	p.doc = doc

	pctx.Logger.Info("API description parsed",
		logfields.Input(src.Location),
		slog.String("title", doc.Info.Title),
		slog.Int("operations", len(doc.Operations)),
		slog.Int("schemas", len(doc.Schemas)))
	return nil
}

// ParsedModel returns the parsed document, nil before start.
func (p *Plugin) ParsedModel() *Document { return p.doc }

// Source returns the loaded raw document, nil before start.
func (p *Plugin) Source() *input.Document { return p.source }

// BaseURL returns the configured override or the selected server URL.
func (p *Plugin) BaseURL() string {
	if p.opts.BaseURL != "" {
		return strings.TrimSuffix(p.opts.BaseURL, "/")
	}
	if p.doc == nil || p.opts.ServerIndex < 0 || p.opts.ServerIndex >= len(p.doc.Servers) {
		return ""
	}
	return strings.TrimSuffix(p.doc.Servers[p.opts.ServerIndex].URL, "/")
}
