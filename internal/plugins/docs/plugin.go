// Package docs renders a markdown reference page per operation tag and,
// optionally, HTML versions of those pages.
package docs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"path/filepath"
	"strings"

	"github.com/inful/mdfp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"git.home.luguber.info/inful/specbuilder/internal/filegraph"
	"git.home.luguber.info/inful/specbuilder/internal/logfields"
	"git.home.luguber.info/inful/specbuilder/internal/naming"
	"git.home.luguber.info/inful/specbuilder/internal/plugin"
	"git.home.luguber.info/inful/specbuilder/internal/plugins/oas"
)

// Name is the plugin name used in configuration.
const Name = "docs"

// DefaultOutput is the docs directory below the output root.
const DefaultOutput = "docs"

// untagged names the page of operations without tags.
const untagged = "default"

// MetaFingerprint carries the mdfp fingerprint of a markdown page.
const MetaFingerprint = mdfp.FingerprintField

// Options configure the docs generator.
type Options struct {
	Output string `yaml:"output"`
	// HTML additionally renders every page to HTML.
	HTML bool `yaml:"html"`
}

// Plugin is the docs generator.
type Plugin struct {
	plugin.BasePlugin
	opts   Options
	schema oas.API
	md     goldmark.Markdown
}

// New creates the plugin. key defaults to [docs].
func New(opts Options, key plugin.Key) *Plugin {
	if opts.Output == "" {
		opts.Output = DefaultOutput
	}
	if len(key) == 0 {
		key = plugin.Key{Name}
	}
	return &Plugin{
		BasePlugin: plugin.BasePlugin{Meta: plugin.Metadata{
			Name:         Name,
			Version:      "1.0.0",
			Description:  "Generates API reference pages",
			Key:          key,
			Dependencies: []plugin.Dependency{{Kind: oas.Kind}},
			Hooks:        []plugin.Hook{plugin.HookValidate, plugin.HookStart, plugin.HookEnd},
			Options:      opts,
		}},
		opts: opts,
		md:   goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

// Validate binds the schema provider.
func (p *Plugin) Validate(pctx *plugin.Context, _ []plugin.Plugin) (bool, error) {
	api, err := plugin.API[oas.API](pctx.Registry, pctx.Key(), oas.Kind)
	if err != nil {
		return false, err
	}
	p.schema = api
	return true, nil
}

func (p *Plugin) pagePath(pctx *plugin.Context, tag string) string {
	if tag == "" {
		tag = untagged
	}
	return filepath.Join(pctx.OutputDir(), p.opts.Output, naming.CamelCase(tag)+".md")
}

// Start appends one section per operation to its tag page.
func (p *Plugin) Start(ctx context.Context, pctx *plugin.Context) error {
	doc := p.schema.ParsedModel()
	if doc == nil {
		return errors.New("schema model is not loaded")
	}

	for _, op := range doc.Operations {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := p.pagePath(pctx, op.Tag())

		var sources []filegraph.Source
		if !pctx.Files.Has(path) {
			title := op.Tag()
			if title == "" {
				title = untagged
			}
			sources = append(sources, filegraph.Source{Value: fmt.Sprintf("# %s\n", title)})
		}
		sources = append(sources, filegraph.Source{Value: section(op, p.schema.BaseURL())})

		file := filegraph.NewFile(path, sources...)
		file.Meta = map[string]any{"tag": op.Tag()}
		if _, err := pctx.AddOrAppendFile(file); err != nil {
			return err
		}
	}
	return nil
}

// End fingerprints every page and renders HTML when enabled.
func (p *Plugin) End(_ context.Context, pctx *plugin.Context) error {
	key := pctx.Key().String()
	for _, f := range pctx.Files.All() {
		if f.PluginKey() != key || f.Ext != ".md" {
			continue
		}
		content := f.Content()
		fingerprint := mdfp.CalculateFingerprintFromParts("", content)

		stamp := filegraph.NewFile(f.Path)
		stamp.Meta = map[string]any{MetaFingerprint: fingerprint}
		if _, err := pctx.AddOrAppendFile(stamp); err != nil {
			return err
		}

		if !p.opts.HTML {
			continue
		}
		page, err := p.renderHTML(f.Name, content)
		if err != nil {
			return fmt.Errorf("render %s: %w", f.Path, err)
		}
		htmlFile := filegraph.NewFile(strings.TrimSuffix(f.Path, f.Ext)+".html", filegraph.Source{Value: page})
		htmlFile.Meta = map[string]any{MetaFingerprint: fingerprint}
		if _, err := pctx.AddFile(htmlFile); err != nil {
			return err
		}
		pctx.Logger.Debug("Rendered page", logfields.Path(htmlFile.Path))
	}
	return nil
}

func (p *Plugin) renderHTML(title, markdown string) (string, error) {
	var body bytes.Buffer
	if err := p.md.Convert([]byte(markdown), &body); err != nil {
		return "", err
	}
	return fmt.Sprintf("<!doctype html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n%s</body>\n</html>",
		html.EscapeString(title), body.String()), nil
}

func section(op oas.Operation, baseURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", op.ID)
	fmt.Fprintf(&b, "`%s %s%s`\n", strings.ToUpper(op.Method), baseURL, op.Path)
	if op.Deprecated {
		b.WriteString("\n**Deprecated**\n")
	}
	if op.Summary != "" {
		fmt.Fprintf(&b, "\n%s\n", op.Summary)
	}
	if op.Description != "" && op.Description != op.Summary {
		fmt.Fprintf(&b, "\n%s\n", op.Description)
	}

	if len(op.Parameters) > 0 {
		b.WriteString("\n| Name | In | Type | Required |\n|---|---|---|---|\n")
		for _, param := range op.Parameters {
			required := "no"
			if param.Required {
				required = "yes"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", param.Name, param.In, param.Type, required)
		}
	}

	if op.RequestBody != nil {
		fmt.Fprintf(&b, "\nRequest body: `%s`\n", refLabel(op.RequestBody))
	}

	if len(op.Responses) > 0 {
		b.WriteString("\nResponses:\n\n")
		for _, r := range op.Responses {
			line := fmt.Sprintf("- `%s` %s", r.Status, r.Description)
			if r.Schema != nil {
				line += fmt.Sprintf(" (`%s`)", refLabel(r.Schema))
			}
			b.WriteString(strings.TrimRight(line, " ") + "\n")
		}
	}
	return b.String()
}

func refLabel(ref *oas.SchemaRef) string {
	switch {
	case ref.Name != "":
		return ref.Name
	case ref.Type == "array" && ref.Items != nil:
		return refLabel(ref.Items) + "[]"
	case ref.Type != "":
		return ref.Type
	default:
		return "unknown"
	}
}
