package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"
)

// Logger is the interface for QuantaDist logging
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	Enabled(level slog.Level) bool
}

// logger wraps slog.Logger
type logger struct {
	slog *slog.Logger
}

var defaultLogger atomic.Value

func init() {
	defaultLogger.Store(loggerBox{NewJSONLogger(slog.LevelInfo)})
}

// loggerBox keeps atomic.Value happy with differing concrete types.
type loggerBox struct {
	l Logger
}

// SetDefault sets the default logger
func SetDefault(l Logger) {
	defaultLogger.Store(loggerBox{l})
}

// Default returns the default logger
func Default() Logger {
	return defaultLogger.Load().(loggerBox).l
}

// New creates a new logger with the given handler
func New(handler slog.Handler) Logger {
	return &logger{slog: slog.New(handler)}
}

// NewWithWriter creates a logger writing to w in the given format ("json" or "text").
func NewWithWriter(w io.Writer, level slog.Level, format string) Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "text" {
		return New(slog.NewTextHandler(w, opts))
	}
	return New(slog.NewJSONHandler(w, opts))
}

// NewTextLogger creates a new text logger on stderr
func NewTextLogger(level slog.Level) Logger {
	return NewWithWriter(os.Stderr, level, "text")
}

// NewJSONLogger creates a new JSON logger on stderr
func NewJSONLogger(level slog.Level) Logger {
	return NewWithWriter(os.Stderr, level, "json")
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func (l *logger) Debug(msg string, args ...any) {
	l.slog.Debug(msg, args...)
}

func (l *logger) Info(msg string, args ...any) {
	l.slog.Info(msg, args...)
}

func (l *logger) Warn(msg string, args ...any) {
	l.slog.Warn(msg, args...)
}

func (l *logger) Error(msg string, args ...any) {
	l.slog.Error(msg, args...)
}

func (l *logger) With(args ...any) Logger {
	return &logger{slog: l.slog.With(args...)}
}

func (l *logger) Enabled(level slog.Level) bool {
	return l.slog.Enabled(context.Background(), level)
}

// Component returns the default logger tagged with a component name.
func Component(name string) Logger {
	return Default().With("component", name)
}

// Helper functions for structured logging

// String returns a string attribute
func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

// Int returns an int attribute
func Int(key string, value int) slog.Attr {
	return slog.Int(key, value)
}

// Int64 returns an int64 attribute
func Int64(key string, value int64) slog.Attr {
	return slog.Int64(key, value)
}

// Bool returns a bool attribute
func Bool(key string, value bool) slog.Attr {
	return slog.Bool(key, value)
}

// Duration returns a duration attribute
func Duration(key string, value time.Duration) slog.Attr {
	return slog.Duration(key, value)
}

// Err returns the conventional error attribute
func Err(err error) slog.Attr {
	return slog.Any("error", err)
}

// Any returns an any attribute
func Any(key string, value any) slog.Attr {
	return slog.Any(key, value)
}

// Package-level convenience functions

func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}
