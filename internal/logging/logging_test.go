package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelRouting(t *testing.T) {
	var out, errOut bytes.Buffer
	logger, cleanup, err := New(Options{Level: "info", Stdout: &out, Stderr: &errOut})
	require.NoError(t, err)
	assert.Nil(t, cleanup)

	logger.Debug("hidden")
	logger.Info("hello", "user", "a@campus.edu")
	logger.Warn("careful")
	logger.Error("broken", "error", "boom")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "hello")
	assert.Contains(t, out.String(), "user=a@campus.edu")
	assert.Contains(t, out.String(), "careful")
	assert.NotContains(t, out.String(), "broken")
	assert.Contains(t, errOut.String(), "broken")
}

func TestJSONFormatAndAttrs(t *testing.T) {
	var out bytes.Buffer
	logger, _, err := New(Options{Format: "json", Stdout: &out, Stderr: &out})
	require.NoError(t, err)

	logger.With("component", "web").WithGroup("req").Info("served", "status", 200)

	line := strings.TrimSpace(out.String())
	assert.True(t, strings.HasPrefix(line, "{"))
	assert.Contains(t, line, `"component":"web"`)
	assert.Contains(t, line, `"req":{"status":200}`)
}

func TestLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	var out, errOut bytes.Buffer
	logger, cleanup, err := New(Options{File: path, Stdout: &out, Stderr: &errOut})
	require.NoError(t, err)
	require.NotNil(t, cleanup)

	logger.Info("to file")
	logger.Error("also to file")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
	assert.Contains(t, string(data), "also to file")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}
