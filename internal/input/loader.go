// Package input loads the raw API description a build starts from.
package input

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"git.home.luguber.info/inful/specbuilder/internal/config"
	sberrors "git.home.luguber.info/inful/specbuilder/internal/errors"
	"git.home.luguber.info/inful/specbuilder/internal/git"
	"git.home.luguber.info/inful/specbuilder/internal/metrics"
)

// Source kinds reported to metrics.
const (
	SourceFile = "file"
	SourceURL  = "url"
	SourceGit  = "git"
)

// maxDocumentSize bounds remote downloads.
const maxDocumentSize = 32 << 20

// Document is a loaded API description.
type Document struct {
	// Location is the file path, URL or "<repo>@<ref>:<file>" it came from.
	Location string
	Source   string
	Data     []byte
	// Commit is set for git sources.
	Commit string
}

// Loader resolves an input configuration into a Document.
type Loader struct {
	HTTPClient *http.Client
	Git        *git.Client
	Recorder   metrics.Recorder
}

// NewLoader creates a loader cloning git inputs below workspaceDir.
func NewLoader(workspaceDir string, recorder metrics.Recorder) *Loader {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Loader{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Git:        git.NewClient(workspaceDir),
		Recorder:   recorder,
	}
}

// Load reads the description selected by cfg.
func (l *Loader) Load(ctx context.Context, cfg *config.Config) (*Document, error) {
	start := time.Now()
	doc, source, err := l.load(ctx, cfg)
	if l.Recorder != nil {
		l.Recorder.ObserveInputFetch(source, time.Since(start), err == nil)
	}
	return doc, err
}

func (l *Loader) load(ctx context.Context, cfg *config.Config) (*Document, string, error) {
	if g := cfg.Input.Git; g != nil {
		location := fmt.Sprintf("%s@%s:%s", g.URL, g.Ref, g.File)
		if l.Git == nil {
			return nil, SourceGit, sberrors.InputFetchFailed(location, fmt.Errorf("git client not configured"))
		}
		co, err := l.Git.Fetch(ctx, *g)
		if err != nil {
			return nil, SourceGit, err
		}
		data, err := os.ReadFile(co.File)
		if err != nil {
			return nil, SourceGit, sberrors.InputFetchFailed(location, err)
		}
		return &Document{Location: location, Source: SourceGit, Data: data, Commit: co.Commit}, SourceGit, nil
	}

	location := cfg.InputPath()
	if location == "" {
		return nil, SourceFile, sberrors.InputFetchFailed("", fmt.Errorf("no input configured"))
	}
	if config.IsURL(location) {
		data, err := l.download(ctx, location)
		if err != nil {
			return nil, SourceURL, err
		}
		return &Document{Location: location, Source: SourceURL, Data: data}, SourceURL, nil
	}

	data, err := os.ReadFile(location)
	if err != nil {
		return nil, SourceFile, sberrors.InputFetchFailed(location, err)
	}
	return &Document{Location: location, Source: SourceFile, Data: data}, SourceFile, nil
}

func (l *Loader) download(ctx context.Context, url string) ([]byte, error) {
	client := l.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, sberrors.InputFetchFailed(url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, sberrors.NetworkTimeout(url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		e := sberrors.InputFetchFailed(url, fmt.Errorf("unexpected status %s", resp.Status))
		if resp.StatusCode >= 500 {
			e.Retryable = true
		}
		return nil, e
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, sberrors.NetworkTimeout(url, err)
	}
	if len(data) > maxDocumentSize {
		return nil, sberrors.InputFetchFailed(url, fmt.Errorf("document exceeds %d bytes", maxDocumentSize))
	}
	return data, nil
}
