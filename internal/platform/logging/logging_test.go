package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesJSONFile(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := New(Config{Level: "info", Dir: tmpDir, Filename: "info.log"})
	require.NoError(t, err)
	defer logger.Close()

	logger.Info("user %d registered", 42)

	content, err := os.ReadFile(filepath.Join(tmpDir, "info.log"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "user 42 registered")
	assert.Contains(t, string(content), `"level":"INFO"`)
}

func TestNew_DefaultFilename(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := New(Config{Dir: tmpDir})
	require.NoError(t, err)
	require.NoError(t, logger.Close())

	_, err = os.Stat(filepath.Join(tmpDir, "server.log"))
	assert.NoError(t, err)
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "warn")

	logger.Debug("debug line")
	logger.Info("info line")
	logger.Warn("warn line")
	logger.Error("error line")

	out := buf.String()
	assert.NotContains(t, out, "debug line")
	assert.NotContains(t, out, "info line")
	assert.Contains(t, out, "warn line")
	assert.Contains(t, out, "error line")
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "debug")

	logger.InfoTag("Auth", "login", map[string]any{"user_id": 7, "ip": "127.0.0.1"})

	out := buf.String()
	assert.Contains(t, out, "[Auth] login")
	assert.Contains(t, out, "ip=127.0.0.1")
	assert.Contains(t, out, "user_id=7")
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "[HTTP] started", Format("HTTP", "started"))
	assert.Equal(t, "plain", Format("", "plain"))
	assert.Equal(t, "[Chat] kept", Format("HTTP", "[Chat] kept"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", ParseLevel("DEBUG").String())
	assert.Equal(t, "WARN", ParseLevel("warning").String())
	assert.Equal(t, "INFO", ParseLevel("bogus").String())
}

func TestLogger_CleanOldLogs(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := New(Config{Level: "info", Dir: tmpDir, Filename: "server.log"})
	require.NoError(t, err)
	defer logger.Close()

	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	old := filepath.Join(tmpDir, "server-2024-05-01.log")
	recent := filepath.Join(tmpDir, "server-2024-05-18.log")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(recent, []byte("x"), 0o644))

	logger.cleanOldLogs(now)

	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(recent)
	assert.NoError(t, err)
}

func TestLogger_NilSafe(t *testing.T) {
	var logger *Logger
	logger.InfoTag("HTTP", "ignored")
	logger.Error("ignored")
}
