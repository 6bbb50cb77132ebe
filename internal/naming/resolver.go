package naming

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrUnresolvedPath is the sentinel wrapped by every UnresolvedPathError.
var ErrUnresolvedPath = errors.New("unresolved path")

// UnresolvedPathError reports a resolver that produced an empty or invalid path.
type UnresolvedPathError struct {
	BaseName string
	Reason   string
}

func (e *UnresolvedPathError) Error() string {
	if e.BaseName == "" {
		return fmt.Sprintf("%s: %s", ErrUnresolvedPath, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", ErrUnresolvedPath, e.BaseName, e.Reason)
}

func (e *UnresolvedPathError) Unwrap() error { return ErrUnresolvedPath }

// Mode describes whether an output location is one file or a directory tree.
type Mode string

const (
	ModeFile      Mode = "file"
	ModeDirectory Mode = "directory"
)

// ModeOf treats any path with an extension as a single output file.
func ModeOf(path string) Mode {
	if path == "" {
		return ModeDirectory
	}
	if filepath.Ext(path) != "" {
		return ModeFile
	}
	return ModeDirectory
}

// GroupByTag is the only grouping key currently understood by Resolver.
const GroupByTag = "tag"

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// RenderTemplate substitutes {{key}} placeholders from data. Unknown keys render empty.
func RenderTemplate(tpl string, data map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(tpl, func(m string) string {
		key := placeholderPattern.FindStringSubmatch(m)[1]
		return data[key]
	})
}

// PathOptions carries the grouping attributes of one logical output request.
type PathOptions struct {
	Tag string
}

// Resolver maps logical output requests onto the output tree.
type Resolver struct {
	// Root is the absolute output root of the build.
	Root string
	// Output is the ungrouped directory (or single file) relative to Root.
	Output string
	// Template is the grouped directory template relative to Root, e.g. "clients/{{tag}}Controller".
	Template string
	// GroupBy enables grouping; only GroupByTag is recognised.
	GroupBy string
	// Transform optionally post-processes resolved names.
	Transform func(string) string
}

// Mode reports the output mode of the resolver's ungrouped location.
func (r Resolver) Mode() Mode {
	return ModeOf(r.Output)
}

// ResolveName returns an identifier-safe name for name.
func (r Resolver) ResolveName(name string) string {
	resolved := CamelCase(name)
	if r.Transform != nil {
		resolved = r.Transform(resolved)
	}
	if strings.TrimSpace(resolved) == "" {
		return Placeholder
	}
	return resolved
}

// ResolvePath returns the physical location for baseName.
func (r Resolver) ResolvePath(baseName string, opts PathOptions) (string, error) {
	if strings.TrimSpace(baseName) == "" {
		return "", &UnresolvedPathError{Reason: "base name is empty"}
	}
	if strings.ContainsRune(baseName, filepath.Separator) || baseName == "." || baseName == ".." {
		return "", &UnresolvedPathError{BaseName: baseName, Reason: "base name must not contain path separators"}
	}

	if r.Mode() == ModeFile {
		// Everything collapses into the one output file; callers append.
		return filepath.Join(r.Root, r.Output), nil
	}

	if r.GroupBy == GroupByTag && opts.Tag != "" && r.Template != "" {
		dir := RenderTemplate(r.Template, map[string]string{"tag": CamelCase(opts.Tag)})
		return filepath.Join(r.Root, dir, baseName), nil
	}

	return filepath.Join(r.Root, r.Output, baseName), nil
}
