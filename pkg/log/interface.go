// Package log provides a structured logging interface for the encoding-model
// pipeline.
//
// The interface is slog-shaped (message plus alternating key/value fields)
// and is implemented on top of zerolog. Library packages accept a Logger and
// fall back to GetLogger when none is given; tests swap in a TestLogger.
//
// Example usage:
//
//	logger := log.GetLogger().With(log.ComponentKey, "encodingmodel")
//	logger.Info("fit completed",
//	    log.SamplesKey, 312,
//	    log.VerticesKey, 64984,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface.
type Logger interface {
	// Debug logs a debug-level message with optional key/value fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional key/value fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional key/value fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message. If the first field is an error it
	// is attached under ErrorKey together with its recorded stack trace,
	// and the remaining fields are treated as key/value pairs.
	//
	//	logger.Error("fit failed", err, log.OperationKey, log.OperationFit)
	Error(msg string, fields ...any)

	// With returns a Logger that adds the given fields to every record.
	With(fields ...any) Logger

	// Enabled reports whether records at the given level are emitted.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
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
