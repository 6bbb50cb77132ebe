// Package core provides the implicit first plugin of every build: it prepares
// the output location and persists generated files.
package core

import (
	"context"
	"path/filepath"

	"git.home.luguber.info/inful/specbuilder/internal/config"
	sberrors "git.home.luguber.info/inful/specbuilder/internal/errors"
	"git.home.luguber.info/inful/specbuilder/internal/filegraph"
	"git.home.luguber.info/inful/specbuilder/internal/logfields"
	"git.home.luguber.info/inful/specbuilder/internal/output"
	"git.home.luguber.info/inful/specbuilder/internal/plugin"
)

// Name is the plugin name.
const Name = "core"

// Plugin cleans the output on start and writes files in the write phase.
type Plugin struct {
	plugin.BasePlugin
}

// New creates the core plugin with key [core].
func New() *Plugin {
	return &Plugin{BasePlugin: plugin.BasePlugin{Meta: plugin.Metadata{
		Name:        Name,
		Version:     "1.0.0",
		Description: "Cleans and writes the output tree",
		Key:         plugin.Key{Name},
		Hooks:       []plugin.Hook{plugin.HookStart, plugin.HookWriteFile},
	}}}
}

// writer is confined to the directory holding the output location, so a
// file-shaped output and a directory output are both cleanable.
func writer(pctx *plugin.Context) *output.Writer {
	return output.NewWriter(filepath.Dir(pctx.OutputPath()))
}

// Start removes the previous output when output.clean is set. An output
// that is the build root or one of its parents is never removed.
func (p *Plugin) Start(_ context.Context, pctx *plugin.Context) error {
	if !pctx.Config.Output.Clean {
		return nil
	}
	if root := pctx.Config.Root; root != "" && config.Contains(pctx.OutputPath(), root) {
		return sberrors.ValidationFailed("output.path", "refusing to clean the build root or one of its parents").
			WithContext("path", pctx.OutputPath())
	}
	if err := writer(pctx).Clean(pctx.OutputPath()); err != nil {
		return err
	}
	pctx.Logger.Debug("Output cleaned", logfields.Path(pctx.OutputPath()))
	return nil
}

// WriteFile persists file atomically. Unchanged files are left alone.
func (p *Plugin) WriteFile(_ context.Context, pctx *plugin.Context, file *filegraph.File) error {
	changed, err := writer(pctx).Write(file)
	if err != nil {
		return err
	}
	if changed {
		pctx.Logger.Debug("File written", logfields.Path(file.Path))
	}
	return nil
}
