package logger

import (
	"context"

	"go.uber.org/zap"
)

// contextKey is a type for context keys used by the logger package
type contextKey string

const (
	// LoggerKey is the context key for the logger
	LoggerKey contextKey = "logger"
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// SchoolIDKey is the context key for school ID
	SchoolIDKey contextKey = "school_id"
	// UserIDKey is the context key for user ID
	UserIDKey contextKey = "user_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context, returns a no-op logger if not found
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID adds request ID to context and returns an enriched logger
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, RequestIDKey, requestID)
	enriched := logger.With(zap.String("request_id", requestID))
	return WithContext(ctx, enriched), enriched
}

// WithSchoolID adds school ID to context and returns an enriched logger
func WithSchoolID(ctx context.Context, logger *zap.Logger, schoolID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, SchoolIDKey, schoolID)
	enriched := logger.With(zap.String("school_id", schoolID))
	return WithContext(ctx, enriched), enriched
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetSchoolID retrieves the school ID from context
func GetSchoolID(ctx context.Context) string {
	if schoolID, ok := ctx.Value(SchoolIDKey).(string); ok {
		return schoolID
	}
	return ""
}
