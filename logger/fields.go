package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across pyrunner.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldRequestID = "request_id"
	FieldSessionID = "session_id"
	FieldClientID  = "client_id"

	// Components and operations
	FieldEngine    = "engine"
	FieldOperation = "operation"

	// Timing
	FieldDurationMS = "duration_ms"

	// Counts and sizes
	FieldCount = "count"
	FieldSize  = "size"

	// Files and positions
	FieldFile   = "file"
	FieldLine   = "line"
	FieldColumn = "column"

	// Worker process
	FieldWorkerPID = "worker_pid"
	FieldPython    = "python"

	// Network
	FieldRemote = "remote"
)

// Context keys for propagating logging context
type contextKey string

const (
	requestIDKey contextKey = "logger_request_id"
	sessionIDKey contextKey = "logger_session_id"
)

// WithRequestID adds a request ID to the context for logging
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithSessionID adds a session ID to the context for logging
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if requestID, ok := ctx.Value(requestIDKey).(string); ok && requestID != "" {
		fields = append(fields, FieldRequestID, requestID)
	}
	if sessionID, ok := ctx.Value(sessionIDKey).(string); ok && sessionID != "" {
		fields = append(fields, FieldSessionID, sessionID)
	}

	return fields
}

// LoggerFromContext returns a logger with fields extracted from context.
func LoggerFromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	engine := jedi.New(cfg, logger.ComponentLogger("complete.jedi"))
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
