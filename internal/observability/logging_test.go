package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureDefault(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestContextAccumulates(t *testing.T) {
	ctx := WithBuildID(context.Background(), "b-1")
	ctx = WithPhase(ctx, "start")
	ctx = WithPlugin(ctx, "controller/client")
	ctx = WithHook(ctx, "start")

	lc := GetContext(ctx)
	assert.Equal(t, LogContext{BuildID: "b-1", Plugin: "controller/client", Hook: "start", Phase: "start"}, lc)
	assert.Len(t, Attrs(ctx), 4)
	assert.Empty(t, Attrs(context.Background()))
}

func TestInfoContextIncludesAttrs(t *testing.T) {
	buf := captureDefault(t)
	ctx := WithPlugin(WithBuildID(context.Background(), "b-2"), "docs")

	InfoContext(ctx, "hook finished", slog.Int("files", 3))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hook finished", entry["msg"])
	assert.Equal(t, "b-2", entry["build_id"])
	assert.Equal(t, "docs", entry["plugin"])
	assert.EqualValues(t, 3, entry["files"])
}

func TestLoggerAnnotatesBase(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := WithHook(context.Background(), "end")

	Logger(ctx, base).Info("x")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "end", entry["hook"])
	assert.Same(t, base, Logger(context.Background(), base))
}

func TestLevels(t *testing.T) {
	buf := captureDefault(t)
	ctx := context.Background()
	DebugContext(ctx, "d")
	WarnContext(ctx, "w")
	ErrorContext(ctx, "e")
	assert.Equal(t, 3, bytes.Count(buf.Bytes(), []byte("\n")))
}
