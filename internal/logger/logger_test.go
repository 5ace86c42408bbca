package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestPrettyHandler(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	log := New(Config{Level: "info", Writer: &buf}).With("component", "db")

	log.Debug("hidden")
	log.Info("record created", "id", 7)
	log.WithGroup("req").Warn("slow", "ms", 250)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INF record created component=db id=7")
	assert.Contains(t, out, "WRN slow component=db req.ms=250")
}

func TestJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Level: "debug", Format: "json", Writer: &buf}).Debug("tag resolved", "slug", "jazz")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "tag resolved", entry["msg"])
	assert.Equal(t, "jazz", entry["slug"])
	assert.Equal(t, "DEBUG", entry["level"])
}
