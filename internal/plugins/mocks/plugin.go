// Package mocks generates a mock response factory per API operation.
package mocks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/specbuilder/internal/filegraph"
	"git.home.luguber.info/inful/specbuilder/internal/naming"
	"git.home.luguber.info/inful/specbuilder/internal/plugin"
	"git.home.luguber.info/inful/specbuilder/internal/plugins/client"
	"git.home.luguber.info/inful/specbuilder/internal/plugins/oas"
)

// Name is the plugin name used in configuration.
const Name = "mocks"

// DefaultOutput is the mocks directory below the output root.
const DefaultOutput = "mocks"

// maxDepth bounds schema expansion for self-referencing models.
const maxDepth = 4

// Options configure the mocks generator.
type Options struct {
	Output  string          `yaml:"output"`
	GroupBy *client.GroupBy `yaml:"groupBy"`
}

// Plugin is the mocks generator.
type Plugin struct {
	plugin.BasePlugin
	opts        Options
	schema      oas.API
	controllers []plugin.Key
}

// New creates the plugin. key defaults to [mocks].
func New(opts Options, key plugin.Key) *Plugin {
	if opts.Output == "" {
		opts.Output = DefaultOutput
	}
	if len(key) == 0 {
		key = plugin.Key{Name}
	}
	return &Plugin{
		BasePlugin: plugin.BasePlugin{Meta: plugin.Metadata{
			Name:        Name,
			Version:     "1.0.0",
			Description: "Generates mock response factories",
			Key:         key,
			Dependencies: []plugin.Dependency{
				{Kind: oas.Kind},
				{Kind: client.Kind, Optional: true, Multi: true},
			},
			Hooks:   []plugin.Hook{plugin.HookValidate, plugin.HookResolvePath, plugin.HookStart},
			Options: opts,
		}},
		opts: opts,
	}
}

// Validate binds the schema provider and the optional controllers.
func (p *Plugin) Validate(pctx *plugin.Context, _ []plugin.Plugin) (bool, error) {
	api, err := plugin.API[oas.API](pctx.Registry, pctx.Key(), oas.Kind)
	if err != nil {
		return false, err
	}
	p.schema = api

	controllers, err := pctx.Dependents(client.Kind)
	if err != nil {
		return false, err
	}
	p.controllers = p.controllers[:0]
	for _, c := range controllers {
		p.controllers = append(p.controllers, c.Metadata().Key)
	}
	return true, nil
}

// ResolvePath places mocks below the mocks directory, grouped by tag when configured.
func (p *Plugin) ResolvePath(baseName, directory string, opts naming.PathOptions) (string, error) {
	r := naming.Resolver{Root: directory, Output: p.opts.Output, Template: p.opts.Output + "/{{tag}}Controller"}
	if p.opts.GroupBy != nil && p.opts.GroupBy.Type == naming.GroupByTag {
		r.GroupBy = naming.GroupByTag
		if p.opts.GroupBy.Output != "" {
			r.Template = p.opts.GroupBy.Output
		}
	}
	return r.ResolvePath(baseName, opts)
}

// Start emits one factory per operation.
func (p *Plugin) Start(ctx context.Context, pctx *plugin.Context) error {
	doc := p.schema.ParsedModel()
	if doc == nil {
		return errors.New("schema model is not loaded")
	}
	key := pctx.Key()
	ext := pctx.Config.Output.IndexExtension

	for _, op := range doc.Operations {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := naming.CamelCase("create " + op.ID)
		opts := naming.PathOptions{Tag: op.Tag()}
		path, err := pctx.ResolvePath(key, name+ext, opts)
		if err != nil {
			return fmt.Errorf("resolve path for %s: %w", op.ID, err)
		}

		var sources []filegraph.Source
		returnType := ""
		for i, ctrl := range p.controllers {
			fn := pctx.ResolveName(ctrl, op.ID)
			fnPath, err := pctx.ResolvePath(ctrl, fn+ext, opts)
			if err != nil {
				return fmt.Errorf("resolve %s path for %s: %w", ctrl, op.ID, err)
			}
			spec := client.RelativeImport(filepath.Dir(path), fnPath)
			sources = append(sources, filegraph.Source{
				Value:   fmt.Sprintf("import type { %s } from %q;", fn, spec),
				Imports: []filegraph.Import{{Names: []string{fn}, Path: spec, TypeOnly: true}},
			})
			if i == 0 {
				returnType = fmt.Sprintf(": Awaited<ReturnType<typeof %s>>", fn)
			}
		}

		value := "undefined"
		if resp := successResponse(op); resp != nil {
			value = mockValue(doc, resp.Schema, 0)
		}

		cast := ""
		if returnType != "" {
			cast = " as never"
		}
		body := fmt.Sprintf("/**\n * @description %s\n */\nexport function %s()%s {\n  return %s%s;\n}",
			describe(op), name, returnType, value, cast)
		sources = append(sources, filegraph.Source{Value: body, Name: name, Exportable: true})

		file := filegraph.NewFile(path, sources...)
		file.Meta = map[string]any{client.MetaTag: op.Tag(), client.MetaOperationID: op.ID}
		if naming.ModeOf(p.opts.Output) == naming.ModeFile {
			_, err = pctx.AddOrAppendFile(file)
		} else {
			_, err = pctx.AddFile(file)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func describe(op oas.Operation) string {
	if resp := successResponse(op); resp != nil && resp.Description != "" {
		return resp.Description
	}
	if op.Summary != "" {
		return op.Summary
	}
	return strings.ToUpper(op.Method) + " " + op.Path
}

// successResponse returns the first 2xx response, then "default".
func successResponse(op oas.Operation) *oas.Response {
	for i := range op.Responses {
		if strings.HasPrefix(op.Responses[i].Status, "2") {
			return &op.Responses[i]
		}
	}
	for i := range op.Responses {
		if op.Responses[i].Status == "default" {
			return &op.Responses[i]
		}
	}
	return nil
}

// mockValue renders a deterministic TypeScript literal for ref.
func mockValue(doc *oas.Document, ref *oas.SchemaRef, depth int) string {
	if ref == nil || depth > maxDepth {
		return "undefined"
	}
	if ref.Name != "" {
		s, ok := doc.Schema(ref.Name)
		if !ok {
			return "undefined"
		}
		if len(s.Enum) > 0 {
			return strconv.Quote(s.Enum[0])
		}
		if s.Type != "object" {
			return primitive(s.Type, nil, doc, depth)
		}
		fields := make([]string, 0, len(s.Properties))
		for _, prop := range s.Properties {
			ref := prop.Ref
			fields = append(fields, fmt.Sprintf("%s: %s", jsKey(prop.Name), mockValue(doc, &ref, depth+1)))
		}
		return "{ " + strings.Join(fields, ", ") + " }"
	}
	return primitive(ref.Type, ref.Items, doc, depth)
}

func primitive(t string, items *oas.SchemaRef, doc *oas.Document, depth int) string {
	switch t {
	case "integer", "number":
		return "0"
	case "boolean":
		return "false"
	case "array":
		if items == nil {
			return "[]"
		}
		return "[" + mockValue(doc, items, depth+1) + "]"
	case "object":
		return "{}"
	case "":
		return "undefined"
	default:
		return strconv.Quote(t)
	}
}

func jsKey(name string) string {
	if naming.CamelCase(name) == name {
		return name
	}
	return strconv.Quote(name)
}
