// Package client generates one typed request function per API operation,
// optionally grouped by tag, plus the client.ts runtime they import.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"git.home.luguber.info/inful/specbuilder/internal/barrel"
	"git.home.luguber.info/inful/specbuilder/internal/filegraph"
	"git.home.luguber.info/inful/specbuilder/internal/naming"
	"git.home.luguber.info/inful/specbuilder/internal/plugin"
	"git.home.luguber.info/inful/specbuilder/internal/plugins/oas"
)

// Name is the plugin name used in configuration.
const Name = "client"

// Kind is the key prefix of every controller plugin.
var Kind = plugin.Key{"controller"}

// Meta keys stamped on generated operation files.
const (
	MetaTag         = "tag"
	MetaOperationID = "operationId"
)

// Plugin is the client generator.
type Plugin struct {
	plugin.BasePlugin
	opts   Options
	schema oas.API
}

// New creates the plugin. key defaults to [controller client].
func New(opts Options, key plugin.Key) *Plugin {
	opts = opts.withDefaults()
	if len(key) == 0 {
		key = plugin.Key{"controller", Name}
	}
	return &Plugin{
		BasePlugin: plugin.BasePlugin{Meta: plugin.Metadata{
			Name:         Name,
			Version:      "1.0.0",
			Description:  "Generates request functions per operation",
			Key:          key,
			Dependencies: []plugin.Dependency{{Kind: oas.Kind}},
			Hooks: []plugin.Hook{
				plugin.HookValidate,
				plugin.HookResolvePath,
				plugin.HookResolveName,
				plugin.HookStart,
				plugin.HookEnd,
			},
			Options: opts,
		}},
		opts: opts,
	}
}

// Options returns the effective options.
func (p *Plugin) Options() Options { return p.opts }

// Validate binds the schema provider.
func (p *Plugin) Validate(pctx *plugin.Context, _ []plugin.Plugin) (bool, error) {
	api, err := plugin.API[oas.API](pctx.Registry, pctx.Key(), oas.Kind)
	if err != nil {
		return false, err
	}
	p.schema = api
	return true, nil
}

func (p *Plugin) resolver(root string) naming.Resolver {
	r := naming.Resolver{
		Root:      root,
		Output:    p.opts.Output,
		Template:  p.opts.template(),
		Transform: p.opts.Transformers.Name.apply,
	}
	if p.opts.groupByTag() {
		r.GroupBy = naming.GroupByTag
	}
	return r
}

// ResolvePath places baseName below directory, grouped by tag when configured.
func (p *Plugin) ResolvePath(baseName, directory string, opts naming.PathOptions) (string, error) {
	return p.resolver(directory).ResolvePath(baseName, opts)
}

// ResolveName camel-cases name and applies the name transformer.
func (p *Plugin) ResolveName(name string) string {
	return p.resolver("").ResolveName(name)
}

func (p *Plugin) singleFile() bool {
	return naming.ModeOf(p.opts.Output) == naming.ModeFile
}

// Start emits one function per operation.
func (p *Plugin) Start(ctx context.Context, pctx *plugin.Context) error {
	doc := p.schema.ParsedModel()
	if doc == nil {
		return errors.New("schema model is not loaded")
	}
	key := pctx.Key()
	root := pctx.OutputDir()
	ext := pctx.Config.Output.IndexExtension

	for _, op := range doc.Operations {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := pctx.ResolveName(key, op.ID)
		path, err := pctx.ResolvePath(key, name+ext, naming.PathOptions{Tag: op.Tag()})
		if err != nil {
			return fmt.Errorf("resolve path for %s: %w", op.ID, err)
		}

		importPath := p.opts.ClientImportPath
		if importPath == "" {
			importPath = RelativeImport(filepath.Dir(path), filepath.Join(root, "client"+ext))
		}

		file := filegraph.NewFile(path)
		if !p.singleFile() || !pctx.Files.Has(path) {
			file.Sources = append(file.Sources, importSource(importPath))
		}
		file.Sources = append(file.Sources, operationSource(op, name, p.opts.DataReturnType))

		if p.singleFile() {
			_, err = pctx.AddOrAppendFile(file)
		} else {
			file.Meta = map[string]any{MetaTag: op.Tag(), MetaOperationID: op.ID}
			_, err = pctx.AddFile(file)
		}
		if err != nil {
			return err
		}
	}

	pctx.Logger.Debug("Client functions generated", slog.Int("operations", len(doc.Operations)))
	return nil
}

// End injects client.ts, writes the index files below the client output and
// adds one namespace export per tag group.
func (p *Plugin) End(_ context.Context, pctx *plugin.Context) error {
	root := pctx.OutputDir()
	ext := pctx.Config.Output.IndexExtension
	meta := map[string]any{filegraph.MetaPluginKey: pctx.Key().String()}

	if p.opts.Client {
		clientPath := filepath.Join(root, "client"+ext)
		if !pctx.Files.Has(clientPath) {
			if _, err := pctx.AddFile(filegraph.NewFile(clientPath, clientSources(p.schema.BaseURL())...)); err != nil {
				return err
			}
		}
	}

	// Only this plugin's own output tree; the build-level pass covers the rest.
	if !p.singleFile() {
		scope := filepath.Join(root, p.opts.Output)
		if _, err := barrel.New(ext).Synthesize(pctx.Files, barrel.Options{Root: scope, Meta: meta}); err != nil {
			return err
		}
	}

	if p.opts.groupByTag() && !p.singleFile() {
		for _, f := range groupedByTagFiles(pctx, root, p.opts, ext) {
			if _, err := pctx.AddOrAppendFile(f); err != nil {
				return err
			}
		}
	}
	return nil
}

// groupedByTagFiles returns one namespace export per tag found on this
// plugin's files, targeting the index of the ungrouped output directory.
func groupedByTagFiles(pctx *plugin.Context, root string, opts Options, ext string) []filegraph.File {
	key := pctx.Key().String()
	outputDir := filepath.Join(root, opts.Output)
	indexPath := filepath.Join(outputDir, "index"+ext)

	seen := make(map[string]bool)
	var out []filegraph.File
	for _, f := range pctx.Files.All() {
		if f.PluginKey() != key {
			continue
		}
		tag, _ := f.Meta[MetaTag].(string)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true

		data := map[string]string{"tag": naming.CamelCase(tag)}
		tagDir := filepath.Join(root, naming.RenderTemplate(opts.GroupBy.Output, data))
		name := pctx.ResolveName(pctx.Key(), naming.RenderTemplate(opts.GroupBy.ExportAs, data))
		spec := RelativeImport(outputDir, tagDir)

		out = append(out, filegraph.NewFile(indexPath, filegraph.Source{
			Value:      fmt.Sprintf("export * as %s from %q;", name, spec),
			Name:       name,
			Exportable: true,
		}))
	}
	return out
}
