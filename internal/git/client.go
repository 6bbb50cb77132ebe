package git

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"git.home.luguber.info/inful/specbuilder/internal/config"
	"git.home.luguber.info/inful/specbuilder/internal/logfields"
)

// Client handles Git operations
type Client struct {
	workspaceDir string
}

// NewClient creates a new Git client with the specified workspace directory
func NewClient(workspaceDir string) *Client {
	return &Client{
		workspaceDir: workspaceDir,
	}
}

// Checkout is a cloned repository and the description file within it.
type Checkout struct {
	Dir    string
	File   string
	Commit string
}

// Fetch clones in.URL at in.Ref (branch or tag; empty means the remote HEAD)
// and returns the checkout. Any previous checkout of the same URL and ref is
// replaced.
func (c *Client) Fetch(ctx context.Context, in config.GitInput) (*Checkout, error) {
	if strings.TrimSpace(in.URL) == "" {
		return nil, errors.New("git input url is required")
	}
	if strings.TrimSpace(in.File) == "" {
		return nil, errors.New("git input file is required")
	}

	repoPath := filepath.Join(c.workspaceDir, checkoutName(in.URL, in.Ref))
	slog.DebugContext(ctx, "Cloning repository", logfields.URL(in.URL), slog.String("ref", in.Ref), logfields.Path(repoPath))

	// Remove existing directory if it exists
	if err := os.RemoveAll(repoPath); err != nil {
		return nil, fmt.Errorf("failed to remove existing directory: %w", err)
	}

	repository, err := c.clone(ctx, repoPath, in)
	if err != nil {
		return nil, ClassifyGitError(err, "clone", in.URL)
	}

	file := filepath.Join(repoPath, filepath.FromSlash(in.File))
	if rel, err := filepath.Rel(repoPath, file); err != nil || strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("git input file %q escapes the repository", in.File)
	}
	if _, err := os.Stat(file); err != nil {
		return nil, fmt.Errorf("git input file %q not found in %s: %w", in.File, in.URL, err)
	}

	out := &Checkout{Dir: repoPath, File: file}
	if ref, err := repository.Head(); err == nil {
		out.Commit = ref.Hash().String()
		slog.InfoContext(ctx, "Repository cloned successfully",
			logfields.URL(in.URL),
			slog.String("commit", out.Commit[:8]),
			logfields.Path(repoPath))
	}
	return out, nil
}

func (c *Client) clone(ctx context.Context, repoPath string, in config.GitInput) (*git.Repository, error) {
	opts := &git.CloneOptions{
		URL:  in.URL,
		Auth: authFor(in),
	}
	if config.IsURL(in.URL) {
		opts.Depth = 1
	}
	if in.Ref == "" {
		return git.PlainCloneContext(ctx, repoPath, false, opts)
	}

	// Try the ref as a branch first, then as a tag.
	opts.SingleBranch = true
	opts.ReferenceName = plumbing.NewBranchReferenceName(in.Ref)
	repository, err := git.PlainCloneContext(ctx, repoPath, false, opts)
	if err == nil || !isMissingRef(err) {
		return repository, err
	}
	if rmErr := os.RemoveAll(repoPath); rmErr != nil {
		return nil, rmErr
	}
	opts.ReferenceName = plumbing.NewTagReferenceName(in.Ref)
	return git.PlainCloneContext(ctx, repoPath, false, opts)
}

func isMissingRef(err error) bool {
	var noMatch git.NoMatchingRefSpecError
	if errors.As(err, &noMatch) {
		return true
	}
	return errors.Is(err, plumbing.ErrReferenceNotFound) ||
		strings.Contains(strings.ToLower(err.Error()), "couldn't find remote ref")
}

// authFor returns token authentication, or nil for anonymous access.
func authFor(in config.GitInput) transport.AuthMethod {
	if in.Token == "" {
		return nil
	}
	// Most Git hosting services use "token" as the username for token auth
	return &http.BasicAuth{Username: "token", Password: in.Token}
}

func checkoutName(url, ref string) string {
	sum := sha256.Sum256([]byte(url + "@" + ref))
	return hex.EncodeToString(sum[:])[:16]
}
