package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/specbuilder/internal/config"
	"git.home.luguber.info/inful/specbuilder/internal/eventstore"
	"git.home.luguber.info/inful/specbuilder/internal/filegraph"
	"git.home.luguber.info/inful/specbuilder/internal/pipeline"
	"git.home.luguber.info/inful/specbuilder/internal/plugin"
)

// Service is the canonical interface for executing builds.
// Both the CLI and watch mode are thin wrappers over this interface.
type Service interface {
	// Run executes one build. On failure it returns the partial Result
	// together with the error.
	Run(ctx context.Context, req Request) (*Result, error)
}

// Request contains all inputs required to execute a build.
type Request struct {
	// Config is the loaded configuration for this build.
	Config *config.Config

	// Plugins in registration order. Registration order breaks ties between
	// plugins that do not depend on each other.
	Plugins []plugin.Plugin
}

// Result contains the outcome of a build execution.
type Result struct {
	BuildID string
	Status  Status

	// Files is the final file graph in insertion order, including index files.
	// On failure it holds whatever was added before the failure.
	Files []*filegraph.File

	// Written is the number of files handed to writeFile.
	Written int

	// Registry holds the registered plugins in resolved order. It is nil
	// when registration failed.
	Registry *plugin.Registry

	// Execution is the lifecycle record; nil when the runner never started.
	Execution *pipeline.ExecutionResult

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// File returns the file at path from the result.
func (r *Result) File(path string) (*filegraph.File, bool) {
	for _, f := range r.Files {
		if f.Path == path {
			return f, true
		}
	}
	return nil, false
}

// Status represents the outcome of a build execution.
type Status string

const (
	StatusRunning   Status = eventstore.StatusRunning
	StatusSucceeded Status = eventstore.StatusSucceeded
	StatusFailed    Status = eventstore.StatusFailed
	StatusCanceled  Status = "canceled"
)

// IsTerminal returns true if the status represents a final state.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

// IsSuccess returns true if the build completed successfully.
func (s Status) IsSuccess() bool {
	return s == StatusSucceeded
}

// Build runs a single build with a default service.
func Build(ctx context.Context, req Request) (*Result, error) {
	return NewService().Run(ctx, req)
}
