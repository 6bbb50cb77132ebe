// Package filegraph holds the in-memory registry of every file a build will emit.
//
// A Manager keys File nodes by their cleaned path. Plugins add whole files or
// append fragments to existing ones; derived fields (exports, imports, id) are
// recomputed on every mutation so readers never observe a half-updated node.
package filegraph

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"git.home.luguber.info/inful/specbuilder/internal/util/sets"
)

// MetaPluginKey is the meta entry stamped with the key of the producing plugin.
const MetaPluginKey = "pluginKey"

// Import is a symbol-level import declared by a source fragment.
type Import struct {
	Names    []string
	Path     string
	TypeOnly bool
}

// Export is a symbol a file makes available to its siblings.
type Export struct {
	Name     string
	Path     string
	TypeOnly bool
}

// Source is one fragment of generated text.
//
// Name/Exportable/TypeOnly/Imports are the declaration markers used for export
// and import derivation. The derivation trusts these markers and never parses
// Value, so it is a best-effort projection of what the text declares.
type Source struct {
	Value      string
	Name       string
	Exportable bool
	TypeOnly   bool
	Imports    []Import
}

// File is one node of the output tree.
type File struct {
	Path     string
	BaseName string
	Ext      string
	Name     string
	Sources  []Source
	Exports  []Export
	Imports  []Import
	ID       string
	Meta     map[string]any
}

// NewFile builds a file node for path with the given sources.
func NewFile(path string, sources ...Source) File {
	return File{Path: path, Sources: sources}
}

// Content concatenates the file's sources in insertion order.
func (f *File) Content() string {
	values := make([]string, 0, len(f.Sources))
	for _, s := range f.Sources {
		values = append(values, s.Value)
	}
	return strings.Join(values, "\n")
}

// ModulePath is the sibling-relative import specifier of the file, without extension.
func (f *File) ModulePath() string {
	return "./" + f.Name
}

// PluginKey returns the producing plugin key recorded in meta, if any.
func (f *File) PluginKey() string {
	if v, ok := f.Meta[MetaPluginKey].(string); ok {
		return v
	}
	return ""
}

// clone returns a copy that shares no slices or maps with f.
func (f *File) clone() *File {
	out := *f
	out.Sources = make([]Source, len(f.Sources))
	for i, s := range f.Sources {
		s.Imports = cloneImports(s.Imports)
		out.Sources[i] = s
	}
	out.Exports = slices.Clone(f.Exports)
	out.Imports = cloneImports(f.Imports)
	out.Meta = maps.Clone(f.Meta)
	if out.Meta == nil {
		out.Meta = map[string]any{}
	}
	return &out
}

func cloneImports(in []Import) []Import {
	if in == nil {
		return nil
	}
	out := make([]Import, len(in))
	for i, imp := range in {
		imp.Names = slices.Clone(imp.Names)
		out[i] = imp
	}
	return out
}

// derive recomputes every field that is a function of Path and Sources.
func (f *File) derive() {
	f.Path = filepath.Clean(f.Path)
	f.BaseName = filepath.Base(f.Path)
	f.Ext = filepath.Ext(f.BaseName)
	f.Name = strings.TrimSuffix(f.BaseName, f.Ext)
	f.Exports = deriveExports(f.Sources, f.ModulePath())
	f.Imports = deriveImports(f.Sources)
	f.ID = Fingerprint(f.Path, f.Content())
	if f.Meta == nil {
		f.Meta = map[string]any{}
	}
}

// Fingerprint is the content id of a file: sha256 over path and content.
func Fingerprint(path, content string) string {
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

func deriveExports(sources []Source, modulePath string) []Export {
	var out []Export
	seen := sets.New[string]()
	for _, s := range sources {
		if !s.Exportable || s.Name == "" || seen.Has(s.Name) {
			continue
		}
		seen.Add(s.Name)
		out = append(out, Export{Name: s.Name, Path: modulePath, TypeOnly: s.TypeOnly})
	}
	return out
}

// deriveImports merges imports per (path, typeOnly) keeping first-seen order.
func deriveImports(sources []Source) []Import {
	type importKey struct {
		path     string
		typeOnly bool
	}
	var out []Import
	index := make(map[importKey]int)
	for _, s := range sources {
		for _, imp := range s.Imports {
			if imp.Path == "" {
				continue
			}
			k := importKey{imp.Path, imp.TypeOnly}
			i, ok := index[k]
			if !ok {
				index[k] = len(out)
				out = append(out, Import{Path: imp.Path, TypeOnly: imp.TypeOnly})
				i = len(out) - 1
			}
			for _, name := range imp.Names {
				if !slices.Contains(out[i].Names, name) {
					out[i].Names = append(out[i].Names, name)
				}
			}
		}
	}
	return out
}
