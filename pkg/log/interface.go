// Package log provides a structured logging interface for detection training runs.
//
// This package defines a minimal, slog-compatible logging interface that allows for
// flexible implementation switching while providing training-specific structured
// logging capabilities. The interface is designed to integrate seamlessly with Go's
// standard log/slog package and popular logging libraries like zerolog, logrus, and zap.
//
// Key features:
//   - slog-compatible interface for future-proofing
//   - training-specific structured attributes (epoch, step, learning rate, losses)
//   - Context-aware logging with field chaining
//   - Test-friendly with configurable output destinations
//
// Example usage:
//
//	logger := log.GetLogger().With(
//	    log.TrainerFamilyKey, "yolo",
//	    log.WorldSizeKey, 4,
//	)
//	logger.Info("Training started",
//	    log.EpochKey, 0,
//	    log.ImageSizeKey, 640,
//	)
package log

import (
	"context"
	"sync"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// It is implementation-agnostic, enabling switching between logging backends
// while maintaining a consistent API. The interface supports method chaining
// through With, allowing creation of contextual loggers with pre-populated
// fields (e.g. a per-rank logger in distributed runs).
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	// Used for detailed per-step diagnostics, usually disabled in long runs.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	// Used for lifecycle events: trainer built, epoch finished, mosaic closed,
	// evaluation started, checkpoint saved.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional structured fields.
	// Used for recoverable conditions such as skipped optimizer updates.
	Warn(msg string, fields ...any)

	// Error logs an error-level message with optional structured fields.
	// If an error value is provided as the first field, stack trace
	// information may be automatically included.
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	// Useful to avoid building expensive per-iteration attributes that would
	// be discarded.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4 // Detailed diagnostic information
	LevelInfo  Level = 0  // General operational information
	LevelWarn  Level = 4  // Warning conditions
	LevelError Level = 8  // Error conditions
)

// String returns the string representation of the log level.
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

// LoggerProvider defines an interface for creating and configuring loggers.
// This allows for dependency injection and testing with different
// logger implementations.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger with a specific component identifier.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for loggers created by this provider.
	SetLevel(level Level)
}

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = NewSlogLogger(nil)
)

// GetLogger returns the process-wide default logger.
func GetLogger() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetLogger replaces the process-wide default logger.
// Intended for wiring a custom backend or a TestLogger in tests.
func SetLogger(logger Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = logger
}
