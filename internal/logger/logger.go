// Package logger wraps a process-wide slog logger with the helpers the
// engine, repositories and notification channels log through.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

var defaultLogger *slog.Logger

// Initialize sets up the global logger with the specified level and format
func Initialize(level, format string) {
	InitializeWithWriter(os.Stdout, level, format)
}

// InitializeWithWriter sets up the global logger writing to w
func InitializeWithWriter(w io.Writer, level, format string) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	}
	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// ParseLevel maps a config level name to a slog level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func current() *slog.Logger {
	if defaultLogger == nil {
		Initialize("info", "text")
	}
	return defaultLogger
}

func Debug(msg string, args ...any) { current().Debug(msg, args...) }
func Info(msg string, args ...any)  { current().Info(msg, args...) }
func Warn(msg string, args ...any)  { current().Warn(msg, args...) }
func Error(msg string, args ...any) { current().Error(msg, args...) }

// tagged logs msg with the fixed attrs placed ahead of the caller's args.
func tagged(level slog.Level, msg string, fixed []any, args []any) {
	current().Log(context.Background(), level, msg, append(fixed, args...)...)
}

// Audit records a state change of an event request at info level
func Audit(requestID, action, actorID string, args ...any) {
	tagged(slog.LevelInfo, "Event request changed",
		[]any{"requestID", requestID, "action", action, "actorID", actorID, "event", "audit"}, args)
}

// EnterMethod and ExitMethod trace engine and repository calls at debug level.
func EnterMethod(methodName string, args ...any) {
	tagged(slog.LevelDebug, "→ Method entered", []any{"method", methodName, "event", "enter"}, args)
}

func ExitMethod(methodName string, args ...any) {
	tagged(slog.LevelDebug, "← Method exited", []any{"method", methodName, "event", "exit"}, args)
}

func ExitMethodWithError(methodName string, err error, args ...any) {
	tagged(slog.LevelError, "← Method exited with error", []any{"method", methodName, "event", "exit", "error", err}, args)
}

// DatabaseCall logs a store operation before it runs
func DatabaseCall(operation, query string, args ...any) {
	tagged(slog.LevelDebug, "→ Database call", []any{"operation", operation, "query", query}, args)
}

// DatabaseResult logs the outcome of a store operation; failures log at error
func DatabaseResult(operation string, rowsAffected int64, err error, args ...any) {
	fixed := []any{"operation", operation, "rows_affected", rowsAffected}
	if err != nil {
		tagged(slog.LevelError, "← Database call failed", append(fixed, "error", err), args)
		return
	}
	tagged(slog.LevelDebug, "← Database call succeeded", fixed, args)
}

// ExternalServiceCall logs a call to a notification backend before it runs
func ExternalServiceCall(service, operation string, args ...any) {
	tagged(slog.LevelDebug, "→ External service call", []any{"service", service, "operation", operation}, args)
}

func ExternalServiceResult(service, operation string, err error, args ...any) {
	fixed := []any{"service", service, "operation", operation}
	if err != nil {
		tagged(slog.LevelError, "← External service call failed", append(fixed, "error", err), args)
		return
	}
	tagged(slog.LevelDebug, "← External service call succeeded", fixed, args)
}
