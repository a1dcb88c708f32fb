package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"INFO", slog.LevelInfo},
		{"garbage", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "assistant.log")

	cfg := Config{
		Level:         "info",
		FilePath:      logPath,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)

	logger.Info("retrieve_complete", slog.Int("vector_count", 3), slog.Int("graph_count", 2))
	cleanup()

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	line := bytes.TrimSpace(data)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(line, &entry))
	assert.Equal(t, "retrieve_complete", entry["msg"])
	assert.Equal(t, float64(3), entry["vector_count"])
}

func TestSetup_DebugLevelFilters(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "assistant.log")

	logger, cleanup, err := Setup(Config{Level: "warn", FilePath: logPath, WriteToStderr: false})
	require.NoError(t, err)

	logger.Debug("should_not_appear")
	logger.Warn("should_appear")
	cleanup()

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "should_not_appear")
	assert.Contains(t, string(data), "should_appear")
}

func TestRotatingWriter_RotatesAtMaxSize(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "assistant.log")

	w, err := NewRotatingWriter(logPath, 1, 2)
	require.NoError(t, err)
	defer w.Close()

	// Exceed the 1MB threshold to force one rotation.
	chunk := bytes.Repeat([]byte("x"), 64*1024)
	for i := 0; i < 20; i++ {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}

	_, err = os.Stat(logPath + ".1")
	assert.NoError(t, err, "rotated file should exist")
}
