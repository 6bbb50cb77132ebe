package oas

import (
	"fmt"
	"strings"

	"github.com/pb33f/libopenapi"
	"github.com/pb33f/libopenapi/datamodel"
	"github.com/pb33f/libopenapi/datamodel/high/base"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"
	"github.com/pb33f/libopenapi/orderedmap"

	"git.home.luguber.info/inful/specbuilder/internal/naming"
)

// Document is the subset of an OpenAPI 3 description generators consume.
// Operations and schemas keep document order.
type Document struct {
	Info       Info
	Servers    []Server
	Operations []Operation
	Schemas    []Schema
}

// Info is the document info block.
type Info struct {
	Title       string
	Version     string
	Description string
}

// Server is one entry of the servers list.
type Server struct {
	URL         string
	Description string
}

// Operation is one method on one path.
type Operation struct {
	ID          string
	Method      string
	Path        string
	Summary     string
	Description string
	Tags        []string
	Parameters  []Parameter
	RequestBody *SchemaRef
	Responses   []Response
	Deprecated  bool
}

// Tag returns the first tag, which decides grouping.
func (o Operation) Tag() string {
	if len(o.Tags) == 0 {
		return ""
	}
	return o.Tags[0]
}

// PathParams returns the parameters located in the path, in declaration order.
func (o Operation) PathParams() []Parameter {
	return o.paramsIn("path")
}

// QueryParams returns the parameters located in the query string.
func (o Operation) QueryParams() []Parameter {
	return o.paramsIn("query")
}

func (o Operation) paramsIn(in string) []Parameter {
	var out []Parameter
	for _, p := range o.Parameters {
		if p.In == in {
			out = append(out, p)
		}
	}
	return out
}

// Parameter is an operation parameter.
type Parameter struct {
	Name        string
	In          string
	Required    bool
	Description string
	Type        string
}

// Response is one status code of an operation.
type Response struct {
	Status      string
	Description string
	Schema      *SchemaRef
}

// SchemaRef is either a named component or an inline primitive type.
type SchemaRef struct {
	Name  string
	Type  string
	Items *SchemaRef
}

// Schema is a named component schema.
type Schema struct {
	Name       string
	Type       string
	Properties []Property
	Required   []string
	Enum       []string
}

// Property is one field of an object schema.
type Property struct {
	Name string
	Ref  SchemaRef
}

// Schema looks up a component schema by name.
func (d *Document) Schema(name string) (Schema, bool) {
	for _, s := range d.Schemas {
		if s.Name == name {
			return s, true
		}
	}
	return Schema{}, false
}

// Parse builds the model of an OpenAPI 3 document (YAML or JSON) with
// libopenapi. Local references, including request bodies, responses and
// parameters declared under components, are resolved. Remote and file
// references are not followed.
func Parse(data []byte) (*Document, error) {
	src, err := libopenapi.NewDocumentWithConfiguration(data, &datamodel.DocumentConfiguration{
		IgnorePolymorphicCircularReferences: true,
		IgnoreArrayCircularReferences:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("decode api description: %w", err)
	}
	if v := src.GetVersion(); !strings.HasPrefix(v, "3.") {
		return nil, fmt.Errorf("openapi %q documents are not supported, convert to openapi 3", v)
	}

	model, errs := src.BuildV3Model()
	if errs != nil {
		return nil, fmt.Errorf("build openapi model: %v", errs)
	}
	if model == nil {
		return nil, fmt.Errorf("build openapi model: no document produced")
	}
	return fromModel(&model.Model)
}

func fromModel(m *v3.Document) (*Document, error) {
	doc := &Document{}
	if m.Info != nil {
		doc.Info = Info{Title: m.Info.Title, Version: m.Info.Version, Description: m.Info.Description}
	}
	for _, s := range m.Servers {
		if s != nil {
			doc.Servers = append(doc.Servers, Server{URL: s.URL, Description: s.Description})
		}
	}

	if m.Components != nil {
		err := each(m.Components.Schemas, func(name string, proxy *base.SchemaProxy) error {
			s, err := buildSchema(proxy)
			if err != nil {
				return fmt.Errorf("schema %s: %w", name, err)
			}
			doc.Schemas = append(doc.Schemas, toSchema(name, s))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if m.Paths == nil {
		return doc, nil
	}
	err := each(m.Paths.PathItems, func(path string, item *v3.PathItem) error {
		if item == nil {
			return nil
		}
		return each(item.GetOperations(), func(method string, op *v3.Operation) error {
			o, err := toOperation(strings.ToLower(method), path, item.Parameters, op)
			if err != nil {
				return fmt.Errorf("%s %s: %w", method, path, err)
			}
			doc.Operations = append(doc.Operations, o)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// each visits an ordered map in document order.
func each[V any](m *orderedmap.Map[string, V], fn func(string, V) error) error {
	if m == nil {
		return nil
	}
	for pair := m.First(); pair != nil; pair = pair.Next() {
		if err := fn(pair.Key(), pair.Value()); err != nil {
			return err
		}
	}
	return nil
}

func toOperation(method, path string, shared []*v3.Parameter, op *v3.Operation) (Operation, error) {
	o := Operation{
		ID:          op.OperationId,
		Method:      method,
		Path:        path,
		Summary:     op.Summary,
		Description: op.Description,
		Tags:        op.Tags,
		Deprecated:  op.Deprecated != nil && *op.Deprecated,
	}
	if o.ID == "" {
		o.ID = naming.CamelCase(method + " " + path)
	}

	// Operation parameters override path-level ones with the same name and location.
	params := make([]*v3.Parameter, 0, len(shared)+len(op.Parameters))
	for _, p := range shared {
		if p != nil && !declares(op.Parameters, p) {
			params = append(params, p)
		}
	}
	params = append(params, op.Parameters...)
	for _, p := range params {
		if p == nil {
			continue
		}
		if p.Name == "" || p.In == "" {
			return o, fmt.Errorf("parameter without name or location (unresolved reference?)")
		}
		typ, err := primitiveType(p.Schema)
		if err != nil {
			return o, fmt.Errorf("parameter %s: %w", p.Name, err)
		}
		o.Parameters = append(o.Parameters, Parameter{
			Name:        p.Name,
			In:          p.In,
			Required:    (p.Required != nil && *p.Required) || p.In == "path",
			Description: p.Description,
			Type:        typ,
		})
	}

	if op.RequestBody != nil {
		ref, err := mediaSchema(op.RequestBody.Content)
		if err != nil {
			return o, fmt.Errorf("request body: %w", err)
		}
		o.RequestBody = ref
	}

	if op.Responses != nil {
		err := each(op.Responses.Codes, func(status string, resp *v3.Response) error {
			if resp == nil {
				return nil
			}
			ref, err := mediaSchema(resp.Content)
			if err != nil {
				return fmt.Errorf("response %s: %w", status, err)
			}
			o.Responses = append(o.Responses, Response{Status: status, Description: resp.Description, Schema: ref})
			return nil
		})
		if err != nil {
			return o, err
		}
		if d := op.Responses.Default; d != nil {
			ref, err := mediaSchema(d.Content)
			if err != nil {
				return o, fmt.Errorf("default response: %w", err)
			}
			o.Responses = append(o.Responses, Response{Status: "default", Description: d.Description, Schema: ref})
		}
	}
	return o, nil
}

func declares(params []*v3.Parameter, p *v3.Parameter) bool {
	for _, q := range params {
		if q != nil && q.Name == p.Name && q.In == p.In {
			return true
		}
	}
	return false
}

// mediaSchema prefers application/json, then the first media type carrying a schema.
func mediaSchema(content *orderedmap.Map[string, *v3.MediaType]) (*SchemaRef, error) {
	var chosen *base.SchemaProxy
	_ = each(content, func(mediaType string, mt *v3.MediaType) error {
		if mt == nil || mt.Schema == nil {
			return nil
		}
		if chosen == nil || mediaType == "application/json" {
			chosen = mt.Schema
		}
		return nil
	})
	if chosen == nil {
		return nil, nil
	}
	return toRef(chosen)
}

func buildSchema(proxy *base.SchemaProxy) (*base.Schema, error) {
	if proxy == nil {
		return nil, nil
	}
	s, err := proxy.BuildSchema()
	if err != nil {
		return nil, err
	}
	return s, nil
}

// toRef keeps component references by name and describes inline schemas by type.
func toRef(proxy *base.SchemaProxy) (*SchemaRef, error) {
	if proxy == nil {
		return nil, nil
	}
	if proxy.IsReference() {
		return &SchemaRef{Name: refName(proxy.GetReference())}, nil
	}
	s, err := buildSchema(proxy)
	if err != nil || s == nil {
		return nil, err
	}
	ref := &SchemaRef{Type: schemaType(s)}
	if s.Items != nil && s.Items.IsA() {
		items, err := toRef(s.Items.A)
		if err != nil {
			return nil, err
		}
		ref.Items = items
	}
	return ref, nil
}

func toSchema(name string, s *base.Schema) Schema {
	out := Schema{Name: name}
	if s == nil {
		return out
	}
	out.Type = schemaType(s)
	out.Required = s.Required
	for _, v := range s.Enum {
		if v != nil {
			out.Enum = append(out.Enum, v.Value)
		}
	}
	_ = each(s.Properties, func(prop string, proxy *base.SchemaProxy) error {
		ref, err := toRef(proxy)
		if err != nil || ref == nil {
			ref = &SchemaRef{Type: "string"}
		}
		out.Properties = append(out.Properties, Property{Name: prop, Ref: *ref})
		return nil
	})
	return out
}

func schemaType(s *base.Schema) string {
	if len(s.Type) > 0 {
		return s.Type[0]
	}
	if s.Properties != nil && s.Properties.First() != nil {
		return "object"
	}
	return ""
}

// primitiveType is the parameter type, defaulting to string.
func primitiveType(proxy *base.SchemaProxy) (string, error) {
	s, err := buildSchema(proxy)
	if err != nil {
		return "", err
	}
	if s == nil || len(s.Type) == 0 {
		return "string", nil
	}
	return s.Type[0], nil
}

func refName(ref string) string {
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}
