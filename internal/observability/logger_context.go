// Package observability carries the request-scoped logger and correlation
// ids through context so every layer logs with the same attributes.
package observability

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
	sessionIDKey
)

// ContextWithLogger attaches a non-nil logger to the context.
func ContextWithLogger(ctx context.Context, lg *slog.Logger) context.Context {
	if ctx == nil || lg == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey, lg)
}

// LoggerFromContext returns the logger stored in ctx, or slog.Default.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if lg, ok := ctx.Value(loggerKey).(*slog.Logger); ok && lg != nil {
			return lg
		}
	}
	return slog.Default()
}

// ContextWithRequestID stores a non-empty request id.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id or "".
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithSession scopes ctx to an interview session: the id is stored and the
// context logger gains session_id and user_id attributes.
func WithSession(ctx context.Context, sessionID, userID string) context.Context {
	if ctx == nil || sessionID == "" {
		return ctx
	}
	attrs := []any{slog.String("session_id", sessionID)}
	if userID != "" {
		attrs = append(attrs, slog.String("user_id", userID))
	}
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	return ContextWithLogger(ctx, LoggerFromContext(ctx).With(attrs...))
}

// SessionIDFromContext returns the session id set by WithSession or "".
func SessionIDFromContext(ctx context.Context) string {
	return stringValue(ctx, sessionIDKey)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(key).(string)
	return s
}
