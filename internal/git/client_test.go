package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"git.home.luguber.info/inful/specbuilder/internal/config"
	sberrors "git.home.luguber.info/inful/specbuilder/internal/errors"
)

func addFileAndCommit(repo *git.Repository, dir, name, content, msg string) (plumbing.Hash, error) {
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return plumbing.ZeroHash, err
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return plumbing.ZeroHash, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := wt.Add(name); err != nil {
		return plumbing.ZeroHash, err
	}
	return wt.Commit(msg, &git.CommitOptions{Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()}})
}

func seedRepo(t *testing.T) (string, plumbing.Hash) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "api")
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	hash, err := addFileAndCommit(repo, dir, "api/openapi.yaml", "openapi: 3.0.0\n", "add api description")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := repo.CreateTag("v1.0.0", hash, nil); err != nil {
		t.Fatalf("tag: %v", err)
	}
	return dir, hash
}

func TestFetchDefaultBranch(t *testing.T) {
	remote, hash := seedRepo(t)
	client := NewClient(t.TempDir())

	co, err := client.Fetch(context.Background(), config.GitInput{URL: remote, File: "api/openapi.yaml"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if co.Commit != hash.String() {
		t.Errorf("Commit = %s, want %s", co.Commit, hash)
	}
	data, err := os.ReadFile(co.File)
	if err != nil || string(data) != "openapi: 3.0.0\n" {
		t.Errorf("file content = %q, %v", data, err)
	}
}

func TestFetchTagRef(t *testing.T) {
	remote, hash := seedRepo(t)
	client := NewClient(t.TempDir())

	co, err := client.Fetch(context.Background(), config.GitInput{URL: remote, Ref: "v1.0.0", File: "api/openapi.yaml"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if co.Commit != hash.String() {
		t.Errorf("Commit = %s, want %s", co.Commit, hash)
	}
}

func TestFetchMissingFile(t *testing.T) {
	remote, _ := seedRepo(t)
	client := NewClient(t.TempDir())

	if _, err := client.Fetch(context.Background(), config.GitInput{URL: remote, File: "missing.yaml"}); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := client.Fetch(context.Background(), config.GitInput{URL: remote, File: "../escape.yaml"}); err == nil {
		t.Fatal("expected error for escaping path")
	}
}

func TestFetchUnknownRepository(t *testing.T) {
	client := NewClient(t.TempDir())
	_, err := client.Fetch(context.Background(), config.GitInput{URL: filepath.Join(t.TempDir(), "nope"), File: "a.yaml"})
	if err == nil {
		t.Fatal("expected clone error")
	}
	if !sberrors.IsCategory(err, sberrors.CategoryGit) {
		t.Errorf("category = %s, want git", sberrors.GetCategory(err))
	}
}

func TestAuthFor(t *testing.T) {
	if authFor(config.GitInput{}) != nil {
		t.Error("anonymous input must not carry auth")
	}
	auth, ok := authFor(config.GitInput{Token: "secret"}).(*http.BasicAuth)
	if !ok || auth.Username != "token" || auth.Password != "secret" {
		t.Errorf("auth = %#v", auth)
	}
}

func TestClassifyGitError(t *testing.T) {
	err := ClassifyGitError(os.ErrDeadlineExceeded, "clone", "https://example.com/api.git")
	if !sberrors.IsRetryable(err) {
		t.Errorf("timeout should be retryable: %v", err)
	}
	if ClassifyGitError(nil, "clone", "x") != nil {
		t.Error("nil stays nil")
	}
}
