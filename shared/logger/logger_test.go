package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeLine unmarshals one JSON log line.
func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew_JSONByDefault(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&Config{Level: "info", writer: &buf})
	require.NoError(t, err)

	log.Info("job claimed", slog.String("job_id", "job-1"))

	entry := decodeLine(t, &buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "job claimed", entry["msg"])
	assert.Equal(t, "job-1", entry["job_id"])
}

func TestNew_ConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&Config{Level: "info", Format: "console", writer: &buf})
	require.NoError(t, err)

	log.Info("worker started")

	// tint renders abbreviated level tags instead of JSON.
	out := buf.String()
	assert.Contains(t, out, "INF")
	assert.Contains(t, out, "worker started")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestNew_LevelFiltering(t *testing.T) {
	tests := []struct {
		level     string
		debugSeen bool
		infoSeen  bool
		warnSeen  bool
	}{
		{level: "debug", debugSeen: true, infoSeen: true, warnSeen: true},
		{level: "info", debugSeen: false, infoSeen: true, warnSeen: true},
		{level: "warn", debugSeen: false, infoSeen: false, warnSeen: true},
		{level: "warning", debugSeen: false, infoSeen: false, warnSeen: true},
		{level: "error", debugSeen: false, infoSeen: false, warnSeen: false},
		{level: "bogus", debugSeen: false, infoSeen: true, warnSeen: true}, // falls back to info
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			log, err := New(&Config{Level: tt.level, writer: &buf})
			require.NoError(t, err)

			log.Debug("d")
			log.Info("i")
			log.Warn("w")

			out := buf.Bytes()
			assert.Equal(t, tt.debugSeen, bytes.Contains(out, []byte(`"msg":"d"`)))
			assert.Equal(t, tt.infoSeen, bytes.Contains(out, []byte(`"msg":"i"`)))
			assert.Equal(t, tt.warnSeen, bytes.Contains(out, []byte(`"msg":"w"`)))
		})
	}
}

func TestNew_SourceLocation(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&Config{Level: "info", EnableSource: true, writer: &buf})
	require.NoError(t, err)

	log.Info("with source")

	entry := decodeLine(t, &buf)
	source, ok := entry["source"].(map[string]interface{})
	require.True(t, ok, "expected a source attribute")
	assert.Contains(t, source["file"], "logger_test.go")
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	base, err := New(&Config{Level: "info", writer: &buf})
	require.NoError(t, err)

	derived := base.With("worker_id", "w-3")
	derived.Info("claimed")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "w-3", entry["worker_id"])

	// The base logger is untouched.
	buf.Reset()
	base.Info("plain")
	entry = decodeLine(t, &buf)
	assert.NotContains(t, entry, "worker_id")
}

func TestLogger_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	base, err := New(&Config{Level: "info", writer: &buf})
	require.NoError(t, err)

	base.WithAttrs(slog.String("campaign_id", "camp-1"), slog.Int("attempt", 2)).Info("retrying")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "camp-1", entry["campaign_id"])
	assert.Equal(t, float64(2), entry["attempt"])
}

func TestLogger_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	base, err := New(&Config{Level: "info", writer: &buf})
	require.NoError(t, err)

	base.WithGroup("job").With("id", "job-1").Info("finished")

	entry := decodeLine(t, &buf)
	group, ok := entry["job"].(map[string]interface{})
	require.True(t, ok, "expected a job group")
	assert.Equal(t, "job-1", group["id"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "info", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "", want: slog.LevelInfo},
		{in: "trace", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), "level %q", tt.in)
	}
}

func TestNewDefault(t *testing.T) {
	log := NewDefault()
	require.NotNil(t, log)
	assert.True(t, log.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, log.Enabled(context.Background(), slog.LevelDebug))
}
