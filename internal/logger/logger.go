// Package logger is the process-wide structured logger. It wraps log/slog
// with console and rotating-file outputs configured from YAML.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelAlways is above ERROR so it is never filtered. Simulation summaries
// are logged at this level.
const LevelAlways = slog.Level(12)

var (
	logger  *slog.Logger
	logFile io.Closer
)

// Initialize sets up the logger with the provided configuration.
func Initialize(config Config) error {
	level := parseLogLevel(config.Level)
	var handlers []slog.Handler

	if config.Console() {
		h, err := newHandler(os.Stderr, config.ConsoleFormat, level)
		if err != nil {
			return fmt.Errorf("console logging: %w", err)
		}
		handlers = append(handlers, h)
	}

	var rotator *lumberjack.Logger
	if config.FileEnabled {
		rotator = &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.FileMaxSizeMB,
			MaxBackups: config.FileMaxBackups,
			MaxAge:     config.FileMaxAgeDays,
			Compress:   config.FileCompress,
		}
		h, err := newHandler(rotator, config.FileFormat, level)
		if err != nil {
			return fmt.Errorf("file logging: %w", err)
		}
		handlers = append(handlers, h)
	}

	if len(handlers) == 0 {
		handlers = append(handlers, slog.NewTextHandler(io.Discard, nil))
	}

	if err := Close(); err != nil {
		return err
	}
	if rotator != nil {
		logFile = rotator
	}

	if len(handlers) == 1 {
		logger = slog.New(handlers[0])
	} else {
		logger = slog.New(newMultiHandler(handlers...))
	}
	return nil
}

// SetOutput logs to w at the given level in text format, replacing any
// configured outputs. Used by tests and by tools that capture logs.
func SetOutput(w io.Writer, level slog.Level) {
	h, _ := newHandler(w, "text", level)
	logger = slog.New(h)
}

// Close flushes and closes the log file, if one is open.
func Close() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

func newHandler(w io.Writer, format string, level slog.Level) (slog.Handler, error) {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevel,
	}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// replaceLevel prints LevelAlways as ALWAYS rather than ERROR+4.
func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok && level == LevelAlways {
			a.Value = slog.StringValue("ALWAYS")
		}
	}
	return a
}

// parseLogLevel converts a string log level to slog.Level
func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Enabled reports whether messages at level would be written.
func Enabled(level slog.Level) bool {
	return logger != nil && logger.Enabled(context.Background(), level)
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	if logger != nil {
		logger.Debug(msg, args...)
	}
}

// Debugf logs a formatted debug message
func Debugf(format string, args ...any) {
	if Enabled(slog.LevelDebug) {
		Debug(fmt.Sprintf(format, args...))
	}
}

// Info logs an info message
func Info(msg string, args ...any) {
	if logger != nil {
		logger.Info(msg, args...)
	}
}

// Infof logs a formatted info message
func Infof(format string, args ...any) {
	Info(fmt.Sprintf(format, args...))
}

// Warning logs a warning message
func Warning(msg string, args ...any) {
	if logger != nil {
		logger.Warn(msg, args...)
	}
}

// Error logs an error message
func Error(msg string, args ...any) {
	if logger != nil {
		logger.Error(msg, args...)
	}
}

// Always logs a message regardless of the configured level.
func Always(msg string, args ...any) {
	if logger != nil {
		logger.Log(context.Background(), LevelAlways, msg, args...)
	}
}

// multiHandler fans records out to several handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func newMultiHandler(handlers ...slog.Handler) *multiHandler {
	return &multiHandler{handlers: handlers}
}

// Enabled reports whether any handler accepts the level.
func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle writes r to every handler that accepts it. A failing handler does
// not stop the others.
func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return newMultiHandler(handlers...)
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return newMultiHandler(handlers...)
}
