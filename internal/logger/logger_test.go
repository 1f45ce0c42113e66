package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rickgao/lobby-client/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("info"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("bogus"))
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := build(config.LoggerConfig{Level: "info", Format: "json"}, zapcore.AddSync(&buf))

	log.Named("manager").Info("connected", zap.String("connection_id", "c-1"))
	log.Debug("hidden")
	require.NoError(t, log.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "manager", entry["logger"])
	assert.Equal(t, "connected", entry["msg"])
	assert.Equal(t, "c-1", entry["connection_id"])
	assert.Contains(t, entry, "caller")
}

func TestConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	log := build(config.LoggerConfig{Level: "debug", Format: "console"}, zapcore.AddSync(&buf))

	log.Debug("queued", zap.Int("depth", 3))
	require.NoError(t, log.Sync())

	out := buf.String()
	assert.Contains(t, out, "debug")
	assert.Contains(t, out, "queued")
	assert.Contains(t, out, `"depth": 3`)
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "lobby.log")
	log, err := New(config.LoggerConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: path,
		MaxSize:  1,
	})
	require.NoError(t, err)

	log.Info("written")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"written"`)
}
