package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" WARN "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")

	log.Info("hidden")
	assert.Empty(t, buf.String())

	log.Warn("shown", "step", 1)
	assert.Contains(t, buf.String(), "shown")
}

func TestAttrs(t *testing.T) {
	assert.Empty(t, Attrs(context.Background()))

	ctx := WithSessionID(WithTraceID(context.Background(), "t-1"), "s-1")
	assert.Equal(t, []any{"trace_id", "t-1", "session_id", "s-1"}, Attrs(ctx))
	assert.Equal(t, "t-1", GetTraceID(ctx))
	assert.Equal(t, "s-1", GetSessionID(ctx))
}
