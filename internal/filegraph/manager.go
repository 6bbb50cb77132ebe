package filegraph

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"strings"
	"sync"

	"git.home.luguber.info/inful/specbuilder/internal/naming"
)

// ErrDuplicateFile is the sentinel wrapped by DuplicateFileError.
var ErrDuplicateFile = errors.New("duplicate file")

// DuplicateFileError is returned by a strict Add on an occupied path.
type DuplicateFileError struct {
	Path string
}

func (e *DuplicateFileError) Error() string {
	return fmt.Sprintf("%s: %s (use AddOrAppend to merge)", ErrDuplicateFile, e.Path)
}

func (e *DuplicateFileError) Unwrap() error { return ErrDuplicateFile }

type addOptions struct {
	override bool
}

// AddOption configures Add.
type AddOption func(*addOptions)

// WithOverride lets Add replace an existing node. The node keeps its position.
func WithOverride() AddOption {
	return func(o *addOptions) { o.override = true }
}

// Manager is the file graph of one build.
//
// Lifecycle hooks run sequentially, but plugins may fan work out internally,
// so mutations are serialised with a lock.
type Manager struct {
	mu    sync.RWMutex
	files map[string]*File
	order []string
}

// NewManager creates an empty file graph.
func NewManager() *Manager {
	return &Manager{files: make(map[string]*File)}
}

func normalizePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", &naming.UnresolvedPathError{Reason: "file path is empty"}
	}
	return filepath.Clean(path), nil
}

// Add inserts file. An occupied path fails with DuplicateFileError unless
// WithOverride is given.
func (m *Manager) Add(file File, opts ...AddOption) (*File, error) {
	var o addOptions
	for _, opt := range opts {
		opt(&o)
	}

	path, err := normalizePath(file.Path)
	if err != nil {
		return nil, err
	}

	node := file.clone()
	node.Path = path
	node.derive()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.files[path]; exists {
		if !o.override {
			return nil, &DuplicateFileError{Path: path}
		}
	} else {
		m.order = append(m.order, path)
	}
	m.files[path] = node

	return node.clone(), nil
}

// AddOrAppend appends file's sources to an existing node and merges meta
// (incoming keys win), or inserts file when the path is free.
func (m *Manager) AddOrAppend(file File) (*File, error) {
	path, err := normalizePath(file.Path)
	if err != nil {
		return nil, err
	}

	incoming := file.clone()

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.files[path]
	if !ok {
		incoming.Path = path
		incoming.derive()
		m.files[path] = incoming
		m.order = append(m.order, path)
		return incoming.clone(), nil
	}

	merged := existing.clone()
	merged.Sources = append(merged.Sources, incoming.Sources...)
	maps.Copy(merged.Meta, incoming.Meta)
	merged.derive()
	m.files[path] = merged

	return merged.clone(), nil
}

// Get returns a copy of the node stored at path.
func (m *Manager) Get(path string) (*File, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.files[filepath.Clean(path)]
	if !ok {
		return nil, false
	}
	return f.clone(), true
}

// Has reports whether path is occupied.
func (m *Manager) Has(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.files[filepath.Clean(path)]
	return ok
}

// All returns copies of every node in insertion order.
func (m *Manager) All() []*File {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*File, 0, len(m.order))
	for _, p := range m.order {
		out = append(out, m.files[p].clone())
	}
	return out
}

// Paths returns every occupied path in insertion order.
func (m *Manager) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Len returns the number of nodes.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.order)
}

// Content returns the concatenated source text at path.
func (m *Manager) Content(path string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.files[filepath.Clean(path)]
	if !ok {
		return "", false
	}
	return f.Content(), true
}
