// Package clog is the leveled logger the compilation pipeline logs
// through: pass entry/exit and diagnostic detail at Debug, invariant
// violations at Error, never through fmt.Println in package code.
package clog

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level represents the severity level of a log message.
type Level int

const (
	// LevelDebug is the debug log level.
	LevelDebug Level = iota
	// LevelInfo is the info log level.
	LevelInfo
	// LevelWarn is the warning log level.
	LevelWarn
	// LevelError is the error log level.
	LevelError
)

// String returns the string representation of Level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is the interface the pipeline logs through.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// field is one key/value pair attached to a logger via WithField(s). A
// slice rather than a map keeps the order fields were attached in
// stable across the line this logger eventually writes, where Go's
// randomized map iteration would otherwise make one log call's fields
// print in a different order every run.
type field struct {
	key   string
	value interface{}
}

// DefaultLogger writes leveled, field-decorated logfmt-style lines
// (ts=... level=... msg="..." key=value ...) to an io.Writer. The
// minimum level lives in an atomic int32: SetLevel and the per-call
// threshold check in log() both only need ordering, not exclusion, so
// neither has to contend with the mutex that serializes the actual
// writes to output.
type DefaultLogger struct {
	level  atomic.Int32
	mu     sync.Mutex
	output io.Writer
	fields []field
}

// New creates a new DefaultLogger.
func New(level Level, output io.Writer) *DefaultLogger {
	l := &DefaultLogger{output: output}
	l.level.Store(int32(level))
	return l
}

// SetLevel sets the log level.
func (l *DefaultLogger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

// Debug logs a debug message.
func (l *DefaultLogger) Debug(msg string, args ...interface{}) {
	l.log(LevelDebug, msg, args...)
}

// Info logs an info message.
func (l *DefaultLogger) Info(msg string, args ...interface{}) {
	l.log(LevelInfo, msg, args...)
}

// Warn logs a warning message.
func (l *DefaultLogger) Warn(msg string, args ...interface{}) {
	l.log(LevelWarn, msg, args...)
}

// Error logs an error message.
func (l *DefaultLogger) Error(msg string, args ...interface{}) {
	l.log(LevelError, msg, args...)
}

// WithField creates a new logger carrying the given field in addition
// to this logger's existing fields.
func (l *DefaultLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields creates a new logger carrying the given fields in addition
// to this logger's existing fields, appended onto a copy of this
// logger's field slice rather than rebuilt from a merged map. The new
// fields are appended in sorted key order.
func (l *DefaultLogger) WithFields(fields map[string]interface{}) Logger {
	next := &DefaultLogger{
		output: l.output,
		fields: make([]field, len(l.fields), len(l.fields)+len(fields)),
	}
	next.level.Store(l.level.Load())
	copy(next.fields, l.fields)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		next.fields = append(next.fields, field{key: k, value: fields[k]})
	}
	return next
}

// log renders the line before taking the write lock at all, so the
// mutex only ever guards the single Write call multiple goroutines
// could otherwise interleave, not the formatting work ahead of it.
func (l *DefaultLogger) log(level Level, msg string, args ...interface{}) {
	if int32(level) < l.level.Load() {
		return
	}

	var b strings.Builder
	b.WriteString("ts=")
	b.WriteString(time.Now().Format("2006-01-02T15:04:05.000"))
	b.WriteString(" level=")
	b.WriteString(level.String())
	b.WriteString(" msg=")
	b.WriteString(strconv.Quote(fmt.Sprintf(msg, args...)))
	for _, f := range l.fields {
		fmt.Fprintf(&b, " %s=%v", f.key, f.value)
	}
	b.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.output, b.String())
}

// ParseLevel parses a string (e.g. from configuration) to a Level,
// defaulting to LevelInfo for anything unrecognized.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

var globalLogger Logger = New(LevelInfo, os.Stdout)

// SetGlobal sets the global logger used by package code that has no
// logger of its own to thread through.
func SetGlobal(logger Logger) {
	globalLogger = logger
}

// Global returns the global logger.
func Global() Logger {
	return globalLogger
}

// NullLogger discards every message, for tests and contexts where
// logging has no destination.
type NullLogger struct{}

// Debug does nothing.
func (l *NullLogger) Debug(msg string, args ...interface{}) {}

// Info does nothing.
func (l *NullLogger) Info(msg string, args ...interface{}) {}

// Warn does nothing.
func (l *NullLogger) Warn(msg string, args ...interface{}) {}

// Error does nothing.
func (l *NullLogger) Error(msg string, args ...interface{}) {}

// WithField returns the same NullLogger.
func (l *NullLogger) WithField(key string, value interface{}) Logger {
	return l
}

// WithFields returns the same NullLogger.
func (l *NullLogger) WithFields(fields map[string]interface{}) Logger {
	return l
}
