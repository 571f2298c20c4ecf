package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/menta2k/screen-pilot/internal/config"
)

func TestConsoleColours(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(config.LoggerConfig{
		Level:       "debug",
		Format:      "console",
		ServiceName: "pilot",
		Colors:      config.ColorConfig{Info: "green"},
	}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Named("fleet").Info("dispatched", zap.Int("slot", 2))
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.Contains(t, out, colorMap["green"]+"INFO"+colorReset)
	assert.Contains(t, out, "pilot.fleet.")
	assert.Contains(t, out, `"slot": 2`)
}

func TestJSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(config.LoggerConfig{Level: "warn", Format: "json"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", zap.String("reason", "arrow_not_found"))
	require.NoError(t, logger.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "arrow_not_found", entry["reason"])
}

func TestRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pilot.log")
	var buf bytes.Buffer
	logger, err := NewWithWriter(config.LoggerConfig{Format: "console", LogFile: path, MaxSize: 1}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Info("to both")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"to both"`)
	assert.Contains(t, buf.String(), "to both")
}

func TestInvalidLevel(t *testing.T) {
	_, err := New(config.LoggerConfig{Level: "loud"})
	assert.Error(t, err)
}
