package client

import "git.home.luguber.info/inful/specbuilder/internal/naming"

// Defaults applied by Options.withDefaults.
const (
	DefaultOutput   = "clients"
	DefaultExportAs = "{{tag}}Service"
)

// Options configure the client generator.
type Options struct {
	// Output is the directory (or single file) below the output root.
	Output  string   `yaml:"output"`
	GroupBy *GroupBy `yaml:"groupBy"`
	// Client injects client.ts carrying the base URL at the output root.
	Client bool `yaml:"client"`
	// ClientImportPath replaces the relative import of client.ts.
	ClientImportPath string `yaml:"clientImportPath"`
	// DataReturnType is "data" (response body) or "full" (whole response).
	DataReturnType string       `yaml:"dataReturnType"`
	Transformers   Transformers `yaml:"transformers"`
}

// GroupBy configures grouping of operations.
type GroupBy struct {
	// Type is the grouping attribute; only "tag" is understood.
	Type string `yaml:"type"`
	// Output is the directory template, "{{tag}}" is the camel-cased tag.
	Output string `yaml:"output"`
	// ExportAs names the per-group namespace export.
	ExportAs string `yaml:"exportAs"`
}

// Transformers adjust resolved identifiers.
type Transformers struct {
	Name NameTransformer `yaml:"name"`
}

// NameTransformer wraps a resolved name.
type NameTransformer struct {
	Prefix string `yaml:"prefix"`
	Suffix string `yaml:"suffix"`
}

func (t NameTransformer) apply(name string) string {
	if t.Prefix == "" && t.Suffix == "" {
		return name
	}
	return naming.CamelCase(t.Prefix + "_" + name + "_" + t.Suffix)
}

func (o Options) withDefaults() Options {
	if o.Output == "" {
		o.Output = DefaultOutput
	}
	if o.DataReturnType == "" {
		o.DataReturnType = "data"
	}
	if o.GroupBy != nil {
		g := *o.GroupBy
		if g.Output == "" {
			g.Output = o.Output + "/{{tag}}Controller"
		}
		if g.ExportAs == "" {
			g.ExportAs = DefaultExportAs
		}
		o.GroupBy = &g
	}
	return o
}

func (o Options) template() string {
	if o.GroupBy != nil {
		return o.GroupBy.Output
	}
	return o.Output + "/{{tag}}Controller"
}

func (o Options) groupByTag() bool {
	return o.GroupBy != nil && o.GroupBy.Type == naming.GroupByTag
}
