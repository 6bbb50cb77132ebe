package input

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/specbuilder/internal/config"
	sberrors "git.home.luguber.info/inful/specbuilder/internal/errors"
	"git.home.luguber.info/inful/specbuilder/internal/metrics"
)

type fetchRecorder struct {
	metrics.NoopRecorder
	source  string
	success bool
}

func (f *fetchRecorder) ObserveInputFetch(source string, _ time.Duration, success bool) {
	f.source, f.success = source, success
}

func TestLoadLocalFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "petstore.yaml"), []byte("openapi: 3.0.0"), 0o600))
	cfg := config.Default()
	cfg.Root = dir
	cfg.Input.Path = "petstore.yaml"

	rec := &fetchRecorder{}
	doc, err := NewLoader(t.TempDir(), rec).Load(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "openapi: 3.0.0", string(doc.Data))
	assert.Equal(t, SourceFile, doc.Source)
	assert.Equal(t, SourceFile, rec.source)
	assert.True(t, rec.success)
}

func TestLoadURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("openapi: 3.1.0"))
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Input.Path = srv.URL + "/openapi.yaml"
	doc, err := NewLoader(t.TempDir(), nil).Load(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, SourceURL, doc.Source)
	assert.Equal(t, "openapi: 3.1.0", string(doc.Data))

	cfg.Input.Path = srv.URL + "/broken"
	rec := &fetchRecorder{}
	_, err = NewLoader(t.TempDir(), rec).Load(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, sberrors.IsCategory(err, sberrors.CategoryInput))
	assert.True(t, sberrors.IsRetryable(err))
	assert.False(t, rec.success)
}

func TestLoadMissingInput(t *testing.T) {
	cfg := config.Default()
	cfg.Root = t.TempDir()

	_, err := NewLoader(t.TempDir(), nil).Load(context.Background(), cfg)
	assert.True(t, sberrors.IsCategory(err, sberrors.CategoryInput))

	cfg.Input.Path = "missing.yaml"
	_, err = NewLoader(t.TempDir(), nil).Load(context.Background(), cfg)
	assert.True(t, sberrors.IsCategory(err, sberrors.CategoryInput))
}
