package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, ParseLevel("INFO"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelDebug, ParseLevel(""))
}

func TestNew_FormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn", "text")
	l.Info("忽略")
	l.Warn("保留", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "忽略")
	assert.Contains(t, out, "key=value")

	buf.Reset()
	New(&buf, "info", "").Info("json")
	assert.Contains(t, buf.String(), `"msg":"json"`)
}
