package clog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"INFO", LevelInfo},
		{"warn", LevelWarn},
		{"WARN", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"ERROR", LevelError},
		{"unknown", LevelInfo}, // default
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}
}

func TestDefaultLogger_LogLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(LevelDebug, buf)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	assert.Contains(t, output, "level=DEBUG")
	assert.Contains(t, output, "level=INFO")
	assert.Contains(t, output, "level=WARN")
	assert.Contains(t, output, "level=ERROR")
	assert.Contains(t, output, "debug message")
	assert.Contains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}

func TestDefaultLogger_FilterByLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(LevelWarn, buf)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}

func TestDefaultLogger_WithField(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(LevelInfo, buf)

	loggerWithField := logger.WithField("pass", "liveness")
	loggerWithField.Info("entering pass")

	output := buf.String()
	assert.Contains(t, output, "pass=liveness")
	assert.Contains(t, output, "entering pass")
}

func TestDefaultLogger_WithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(LevelInfo, buf)

	fields := map[string]interface{}{
		"pass":     "regalloc",
		"function": "main",
	}
	loggerWithFields := logger.WithFields(fields)
	loggerWithFields.Info("allocating")

	output := buf.String()
	assert.Contains(t, output, "pass=regalloc")
	assert.Contains(t, output, "function=main")
}

func TestDefaultLogger_Formatting(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(LevelInfo, buf)

	logger.Info("blocks: %d, name: %s", 4, "diamond")

	output := buf.String()
	assert.Contains(t, output, "blocks: 4, name: diamond")
}

func TestDefaultLogger_SetLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(LevelInfo, buf)

	logger.Debug("debug 1")
	assert.NotContains(t, buf.String(), "debug 1")

	logger.SetLevel(LevelDebug)
	logger.Debug("debug 2")
	assert.Contains(t, buf.String(), "debug 2")
}

func TestNullLogger(t *testing.T) {
	logger := &NullLogger{}

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	result := logger.WithField("key", "value")
	assert.Equal(t, logger, result)

	result = logger.WithFields(map[string]interface{}{"key": "value"})
	assert.Equal(t, logger, result)
}

func TestGlobal(t *testing.T) {
	original := globalLogger

	buf := &bytes.Buffer{}
	newLogger := New(LevelInfo, buf)
	SetGlobal(newLogger)

	logger := Global()
	logger.Info("global log")

	assert.Contains(t, buf.String(), "global log")

	SetGlobal(original)
}

func TestLoggerInterface(t *testing.T) {
	var _ Logger = &DefaultLogger{}
	var _ Logger = &NullLogger{}
}

func TestDefaultLogger_TimestampFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(LevelInfo, buf)

	logger.Info("test message")

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	assert.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "ts="))
}
