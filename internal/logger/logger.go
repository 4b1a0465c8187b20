// Package logger provides two-tier structured logging for autopost:
// console output for interactive use and optional rotated file output
// for long-running hosts.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Logger is the main interface for logging throughout the application
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// WithFields returns a logger with additional fields
	WithFields(fields map[string]any) Logger

	// WithComponent returns a logger tagged with a component
	WithComponent(component Component) Logger

	// Close flushes and closes all log destinations
	Close() error
}

// MultiLogger implements Logger by dispatching to the console and file tiers
type MultiLogger struct {
	config  *Config
	console slog.Handler
	file    slog.Handler
	closer  io.Closer
	attrs   []slog.Attr
}

// NewLogger creates a new two-tier logger based on configuration
func NewLogger(config *Config) (*MultiLogger, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logger config: %w", err)
	}

	ml := &MultiLogger{config: config}

	if config.Console.Enabled {
		ml.console = newConsoleHandler(config)
	}

	if config.File.Enabled {
		ml.file, ml.closer = newFileHandler(config)
	}

	return ml, nil
}

// Debug logs a debug message
func (ml *MultiLogger) Debug(msg string, args ...any) {
	ml.log(slog.LevelDebug, msg, args...)
}

// Info logs an info message
func (ml *MultiLogger) Info(msg string, args ...any) {
	ml.log(slog.LevelInfo, msg, args...)
}

// Warn logs a warning message
func (ml *MultiLogger) Warn(msg string, args ...any) {
	ml.log(slog.LevelWarn, msg, args...)
}

// Error logs an error message
func (ml *MultiLogger) Error(msg string, args ...any) {
	ml.log(slog.LevelError, msg, args...)
}

// WithFields returns a logger that includes the given fields on every entry
func (ml *MultiLogger) WithFields(fields map[string]any) Logger {
	attrs := make([]slog.Attr, 0, len(fields))
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	return ml.withAttrs(attrs)
}

// WithComponent returns a logger tagged with a component
func (ml *MultiLogger) WithComponent(component Component) Logger {
	return ml.withAttrs([]slog.Attr{slog.String("component", string(component))})
}

func (ml *MultiLogger) withAttrs(attrs []slog.Attr) *MultiLogger {
	combined := make([]slog.Attr, 0, len(ml.attrs)+len(attrs))
	combined = append(combined, ml.attrs...)
	combined = append(combined, attrs...)

	return &MultiLogger{
		config:  ml.config,
		console: ml.console,
		file:    ml.file,
		closer:  ml.closer,
		attrs:   combined,
	}
}

// Close flushes and closes all log destinations
func (ml *MultiLogger) Close() error {
	if ml.closer != nil {
		return ml.closer.Close()
	}
	return nil
}

func (ml *MultiLogger) log(level slog.Level, msg string, args ...any) {
	ctx := context.Background()
	record := slog.NewRecord(time.Now(), level, msg, 0)
	record.AddAttrs(ml.attrs...)
	record.Add(args...)

	if ml.console != nil && ml.console.Enabled(ctx, level) {
		_ = ml.console.Handle(ctx, record.Clone())
	}
	if ml.file != nil && ml.file.Enabled(ctx, level) {
		_ = ml.file.Handle(ctx, record.Clone())
	}
}

var (
	defaultLogger Logger
	defaultMu     sync.RWMutex
)

// Default returns the process-wide default logger, creating a plain
// console logger on first use.
func Default() Logger {
	defaultMu.RLock()
	if defaultLogger != nil {
		defer defaultMu.RUnlock()
		return defaultLogger
	}
	defaultMu.RUnlock()

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		l, err := NewLogger(DefaultConfig())
		if err != nil {
			// DefaultConfig always validates; this is unreachable in practice
			return NewNop()
		}
		defaultLogger = l
	}
	return defaultLogger
}

// SetDefault replaces the process-wide default logger
func SetDefault(l Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// NopLogger discards everything. Useful in tests.
type NopLogger struct{}

// NewNop returns a logger that discards all output
func NewNop() *NopLogger { return &NopLogger{} }

func (n *NopLogger) Debug(string, ...any)             {}
func (n *NopLogger) Info(string, ...any)              {}
func (n *NopLogger) Warn(string, ...any)              {}
func (n *NopLogger) Error(string, ...any)             {}
func (n *NopLogger) WithFields(map[string]any) Logger { return n }
func (n *NopLogger) WithComponent(Component) Logger   { return n }
func (n *NopLogger) Close() error                     { return nil }
