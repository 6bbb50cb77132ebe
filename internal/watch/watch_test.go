package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	reasons []string
}

func (r *recorder) rebuild(_ context.Context, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
	return nil
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.reasons...)
}

func startWatcher(t *testing.T, files []string, rec *recorder) *Watcher {
	t.Helper()
	w, err := New(files, 20*time.Millisecond, rec.rebuild)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w
}

func TestWatcherRebuildsOnWrite(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "petstore.yaml")
	require.NoError(t, os.WriteFile(input, []byte("a"), 0o644))

	rec := &recorder{}
	startWatcher(t, []string{input}, rec)
	time.Sleep(50 * time.Millisecond)

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(input, []byte{byte('b' + i)}, 0o644))
	}

	require.Eventually(t, func() bool { return len(rec.snapshot()) >= 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, input, rec.snapshot()[0])
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "petstore.yaml")
	require.NoError(t, os.WriteFile(input, []byte("a"), 0o644))

	rec := &recorder{}
	startWatcher(t, []string{input}, rec)
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestWatcherTriggerDebounces(t *testing.T) {
	rec := &recorder{}
	w := startWatcher(t, nil, rec)

	w.Trigger("interval")
	w.Trigger("interval")

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{"interval"}, rec.snapshot())
}

func TestWatcherFollowsReplacedFiles(t *testing.T) {
	oldDir, newDir := t.TempDir(), t.TempDir()
	oldInput := filepath.Join(oldDir, "petstore.yaml")
	newInput := filepath.Join(newDir, "store.yaml")
	require.NoError(t, os.WriteFile(oldInput, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(newInput, []byte("a"), 0o644))

	rec := &recorder{}
	w := startWatcher(t, []string{oldInput}, rec)
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, w.Watch([]string{newInput}))
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(oldInput, []byte("b"), 0o644))
	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, rec.snapshot(), "the replaced file is no longer watched")

	require.NoError(t, os.WriteFile(newInput, []byte("b"), 0o644))
	require.Eventually(t, func() bool { return len(rec.snapshot()) >= 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, newInput, rec.snapshot()[0])
}

func TestNewRequiresRebuild(t *testing.T) {
	_, err := New(nil, 0, nil)
	assert.Error(t, err)
}

func TestSchedulerFires(t *testing.T) {
	var fired atomic.Int32
	s, err := NewScheduler(30*time.Millisecond, func() { fired.Add(1) })
	require.NoError(t, err)
	assert.NotEmpty(t, s.JobID())

	s.Start()
	require.Eventually(t, func() bool { return fired.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Stop())
}

func TestSchedulerRejectsZeroInterval(t *testing.T) {
	_, err := NewScheduler(0, func() {})
	assert.Error(t, err)
}
