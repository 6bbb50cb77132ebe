// Package output persists generated files to disk.
package output

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sberrors "git.home.luguber.info/inful/specbuilder/internal/errors"
	"git.home.luguber.info/inful/specbuilder/internal/filegraph"
)

// ErrOutsideRoot is returned for paths that do not live below the writer root.
var ErrOutsideRoot = errors.New("path outside build root")

// Writer writes file nodes below Root. Writes are atomic per file: content
// lands in a temporary sibling that is renamed into place.
type Writer struct {
	Root string
}

// NewWriter creates a writer confined to root.
func NewWriter(root string) *Writer {
	return &Writer{Root: filepath.Clean(root)}
}

// Write persists f and reports whether the file on disk changed.
func (w *Writer) Write(f *filegraph.File) (bool, error) {
	path, err := w.confine(f.Path)
	if err != nil {
		return false, sberrors.OutputWriteFailed(f.Path, err)
	}

	content := []byte(f.Content())
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, content) {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, sberrors.OutputWriteFailed(path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return false, sberrors.OutputWriteFailed(path, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return false, sberrors.OutputWriteFailed(path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return false, sberrors.OutputWriteFailed(path, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return false, sberrors.OutputWriteFailed(path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return false, sberrors.OutputWriteFailed(path, err)
	}
	return true, nil
}

// Clean removes target, which must be strictly below Root. A missing target is not an error.
func (w *Writer) Clean(target string) error {
	path, err := w.confine(target)
	if err != nil {
		return sberrors.OutputWriteFailed(target, err)
	}
	if path == w.Root {
		return sberrors.OutputWriteFailed(target, fmt.Errorf("refusing to clean the build root"))
	}
	if err := os.RemoveAll(path); err != nil {
		return sberrors.OutputWriteFailed(path, err)
	}
	return nil
}

func (w *Writer) confine(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(w.Root, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(w.Root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return path, nil
}
