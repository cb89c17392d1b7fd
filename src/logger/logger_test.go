package logger_test

import (
	"bytes"
	"testing"

	"market-data-hub/src/logger"
	"market-data-hub/src/models"

	"github.com/stretchr/testify/require"
)

func TestLoggerFiltersBelowConfiguredLevel(t *testing.T) {
	// Arrange: a logger configured at WARNING
	var buf bytes.Buffer
	l := logger.NewLogger(&models.MConfig{LogLevel: "WARNING"}, "Test")
	l.SetOutput(&buf)

	// Act
	l.Debug("debug %d", 1)
	l.Info("info %d", 2)
	l.Warning("warn %d", 3)
	l.Error("error %d", 4)

	// Assert: only warning and error reach the output
	out := buf.String()
	require.NotContains(t, out, "debug 1")
	require.NotContains(t, out, "info 2")
	require.Contains(t, out, "[Test] WARNING: warn 3")
	require.Contains(t, out, "[Test] ERROR: error 4")
}

func TestNamedLoggerKeepsLevel(t *testing.T) {
	var buf bytes.Buffer
	parent := logger.NewLogger(&models.MConfig{LogLevel: "DEBUG"}, "Parent")
	parent.SetOutput(&buf)

	child := parent.Named("Child")
	child.Debug("hello")

	require.Contains(t, buf.String(), "[Parent.Child] DEBUG: hello")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	require.Equal(t, logger.LevelDebug, logger.ParseLevel("debug"))
	require.Equal(t, logger.LevelWarning, logger.ParseLevel("WARN"))
	require.Equal(t, logger.LevelInfo, logger.ParseLevel("nonsense"))
}
