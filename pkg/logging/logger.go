// Package logging defines the structured logging surface used across the
// library and a zap-backed implementation of it. Components take the Logger
// interface so tests can swap in the nop implementation.
package logging

import (
	"time"
)

// Level represents the severity level of a log message.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of a log level.
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is the logging interface consumed by the socket and connection
// layers.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// WithFields returns a derived logger that attaches the given fields to
	// every entry it writes.
	WithFields(fields ...Field) Logger
}

// Field represents a key-value pair in a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// Field constructors for common types.

func String(key string, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Error(err error) Field {
	return Field{Key: "error", Value: err.Error()}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// nopLogger discards everything. Used as the default in tests and as the
// fallback when no logger is injected.
type nopLogger struct{}

// NewNopLogger returns a Logger that discards all entries.
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...Field)      {}
func (nopLogger) Info(string, ...Field)       {}
func (nopLogger) Warn(string, ...Field)       {}
func (nopLogger) Error(string, ...Field)      {}
func (n nopLogger) WithFields(...Field) Logger { return n }
