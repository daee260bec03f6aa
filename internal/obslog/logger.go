// Package obslog provides the leveled logger used across the simulator,
// adapted from the teacher's logger.go.
package obslog

import (
	"fmt"
	stdlog "log"
	"os"
)

// Level is logging severity.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// Logger is a leveled wrapper around the standard library logger.
type Logger struct {
	level  Level
	logger *stdlog.Logger
}

// New creates a logger at level writing to os.Stderr with prefix.
func New(level Level, prefix string) *Logger {
	return &Logger{
		level:  level,
		logger: stdlog.New(os.Stderr, prefix, stdlog.LstdFlags),
	}
}

// SetLevel adjusts the logger's current level.
func (l *Logger) SetLevel(level Level) {
	if l == nil {
		return
	}
	l.level = level
}

func (l *Logger) logf(target Level, format string, args ...any) {
	if l == nil || target > l.level {
		return
	}
	l.logger.Output(3, fmt.Sprintf(format, args...))
}

// Debugf prints debug messages.
func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }

// Infof prints info messages.
func (l *Logger) Infof(format string, args ...any) { l.logf(LevelInfo, format, args...) }

// Warnf prints warning messages.
func (l *Logger) Warnf(format string, args ...any) { l.logf(LevelWarn, format, args...) }

// Errorf prints error messages.
func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }

var defaultLogger = New(LevelInfo, "[mesisim] ")

// Default returns the package-wide logger.
func Default() *Logger { return defaultLogger }

// SetDefault replaces the package-wide logger (primarily for tests).
func SetDefault(l *Logger) {
	if l == nil {
		return
	}
	defaultLogger = l
}
