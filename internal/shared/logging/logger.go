package logging

import (
	"fmt"
	"reflect"
	"strings"
)

// Logger is the printf-style diagnostics contract shared by the harness.
//
// Discovery, the verification runner and the task manager receive a Logger
// by injection so they never depend on process-wide state.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Level is the minimum severity a ComponentLogger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

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

// ParseLevel maps debug|info|warn|error (any case) to a Level.
func ParseLevel(raw string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", raw)
	}
}

type discard struct{}

func (discard) Debug(string, ...any) {}
func (discard) Info(string, ...any)  {}
func (discard) Warn(string, ...any)  {}
func (discard) Error(string, ...any) {}

// Nop returns a logger that drops everything.
func Nop() Logger { return discard{} }

// OrNop returns logger unless it is nil or a typed nil pointer.
func OrNop(logger Logger) Logger {
	if logger == nil {
		return Nop()
	}
	if v := reflect.ValueOf(logger); v.Kind() == reflect.Ptr && v.IsNil() {
		return Nop()
	}
	return logger
}

type tee []Logger

// Tee fans every call out to each logger in order, skipping nil entries.
func Tee(loggers ...Logger) Logger {
	out := make(tee, 0, len(loggers))
	for _, logger := range loggers {
		if _, isNop := OrNop(logger).(discard); isNop {
			continue
		}
		if nested, ok := logger.(tee); ok {
			out = append(out, nested...)
			continue
		}
		out = append(out, logger)
	}
	switch len(out) {
	case 0:
		return Nop()
	case 1:
		return out[0]
	}
	return out
}

func (t tee) Debug(format string, args ...any) {
	for _, l := range t {
		l.Debug(format, args...)
	}
}

func (t tee) Info(format string, args ...any) {
	for _, l := range t {
		l.Info(format, args...)
	}
}

func (t tee) Warn(format string, args ...any) {
	for _, l := range t {
		l.Warn(format, args...)
	}
}

func (t tee) Error(format string, args ...any) {
	for _, l := range t {
		l.Error(format, args...)
	}
}
