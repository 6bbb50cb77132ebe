package oas

import (
	"context"

	"git.home.luguber.info/inful/specbuilder/internal/config"
	"git.home.luguber.info/inful/specbuilder/internal/input"
)

// StaticLoader serves fixed bytes, for tests and embedding.
type StaticLoader struct {
	Location string
	Data     []byte
}

// Load returns the fixed document.
func (l StaticLoader) Load(context.Context, *config.Config) (*input.Document, error) {
	loc := l.Location
	if loc == "" {
		loc = "inline"
	}
	return &input.Document{Location: loc, Source: input.SourceFile, Data: l.Data}, nil
}
