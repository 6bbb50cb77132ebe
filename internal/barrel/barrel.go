// Package barrel synthesizes per-directory index modules that re-export the
// public symbols of their sibling files.
package barrel

import (
	"fmt"
	"maps"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/specbuilder/internal/filegraph"
	"git.home.luguber.info/inful/specbuilder/internal/naming"
	"git.home.luguber.info/inful/specbuilder/internal/util/sets"
)

// DefaultExtension is used when a Synthesizer has no extension configured.
const DefaultExtension = ".ts"

// MetaBarrel marks synthesized index files.
const MetaBarrel = "barrel"

// Formatter renders one re-export statement for names exported by modulePath.
type Formatter func(modulePath string, names []string, typeOnly bool) string

// DefaultFormatter renders ES module re-exports.
func DefaultFormatter(modulePath string, names []string, typeOnly bool) string {
	keyword := "export"
	if typeOnly {
		keyword = "export type"
	}
	return fmt.Sprintf("%s { %s } from %q;", keyword, strings.Join(names, ", "), modulePath)
}

// Synthesizer emits index files into a file graph.
type Synthesizer struct {
	// Extension of generated index files, including the dot.
	Extension string
	Formatter Formatter
}

// Options scopes one synthesis pass.
type Options struct {
	// Root restricts synthesis to directories at or below it. Empty means every directory.
	Root string
	// Meta is copied onto every generated index file.
	Meta map[string]any
}

// New creates a synthesizer with the default formatter.
func New(extension string) *Synthesizer {
	return &Synthesizer{Extension: extension, Formatter: DefaultFormatter}
}

func (s *Synthesizer) extension() string {
	ext := s.Extension
	if ext == "" {
		return DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// IndexName returns the base name of generated index files.
func (s *Synthesizer) IndexName() string {
	return "index" + s.extension()
}

// Synthesize adds an index file to every directory that holds at least one
// file and has no index yet. Directories are visited in the order their first
// file entered the graph; within a directory, siblings contribute exports in
// graph order and the first export of a name wins. Existing index files are
// left untouched, so a second pass adds nothing. Returns the created nodes.
func (s *Synthesizer) Synthesize(files *filegraph.Manager, opts Options) ([]*filegraph.File, error) {
	root := ""
	if opts.Root != "" {
		root = filepath.Clean(opts.Root)
		if naming.ModeOf(root) == naming.ModeFile {
			return nil, nil
		}
	}

	dirs := sets.NewOrdered[string]()
	siblings := make(map[string][]*filegraph.File)
	for _, f := range files.All() {
		dir := filepath.Dir(f.Path)
		if root != "" && !within(root, dir) {
			continue
		}
		dirs.Add(dir)
		if isIndex(f) {
			continue
		}
		siblings[dir] = append(siblings[dir], f)
	}

	format := s.Formatter
	if format == nil {
		format = DefaultFormatter
	}

	var created []*filegraph.File
	for _, dir := range dirs.Values() {
		indexPath := filepath.Join(dir, s.IndexName())
		if files.Has(indexPath) {
			continue
		}

		index := filegraph.NewFile(indexPath, reexports(siblings[dir], format)...)
		index.Meta = maps.Clone(opts.Meta)
		if index.Meta == nil {
			index.Meta = map[string]any{}
		}
		index.Meta[MetaBarrel] = true

		node, err := files.Add(index)
		if err != nil {
			return created, fmt.Errorf("synthesize index for %s: %w", dir, err)
		}
		created = append(created, node)
	}
	return created, nil
}

// reexports renders one value and one type-only statement per sibling.
func reexports(siblings []*filegraph.File, format Formatter) []filegraph.Source {
	seen := sets.New[string]()
	var out []filegraph.Source
	for _, f := range siblings {
		var values, types []string
		for _, e := range f.Exports {
			if seen.Has(e.Name) {
				continue
			}
			seen.Add(e.Name)
			if e.TypeOnly {
				types = append(types, e.Name)
			} else {
				values = append(values, e.Name)
			}
		}
		if len(values) > 0 {
			out = append(out, filegraph.Source{Value: format(f.ModulePath(), values, false)})
		}
		if len(types) > 0 {
			out = append(out, filegraph.Source{Value: format(f.ModulePath(), types, true)})
		}
	}
	return out
}

func isIndex(f *filegraph.File) bool {
	return f.Name == "index"
}

func within(root, dir string) bool {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
