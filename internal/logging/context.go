package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type contextKey string

const (
	loggerKey  contextKey = "logger"
	traceIDKey contextKey = "trace_id"
)

// GenerateTraceID generates a new request trace ID.
func GenerateTraceID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// FromContext retrieves the logger from context, falling back to the
// default logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return Default()
}

// NewContext returns a context carrying l.
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// WithTraceContext attaches a fresh trace ID to the context and returns a
// logger tagged with it.
func WithTraceContext(ctx context.Context) (context.Context, *Logger) {
	traceID := GenerateTraceID()
	l := Default().With("trace_id", traceID)
	ctx = context.WithValue(ctx, traceIDKey, traceID)
	return NewContext(ctx, l), l
}

// TraceIDFromContext returns the trace ID, if any.
func TraceIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}
