package logutil

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, Level(0))
	assert.Equal(t, slog.LevelDebug, Level(1))
	assert.Equal(t, LevelTrace, Level(2))
	assert.Equal(t, LevelTrace, Level(5))
}

func TestTrace(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	slog.SetDefault(NewLogger(&buf, slog.LevelDebug))
	Trace("hidden")
	assert.Empty(t, buf.String())

	slog.SetDefault(NewLogger(&buf, LevelTrace))
	Trace("shown", "bytes", 12)
	out := buf.String()
	assert.Contains(t, out, "level=TRACE")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "bytes=12")
	assert.Contains(t, out, "source=logutil_test.go:")
}
