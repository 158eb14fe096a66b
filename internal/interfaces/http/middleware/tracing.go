package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "schoolerp-backend",
		Enabled:     true,
	}
}

// Tracing returns OpenTelemetry tracing middleware with default configuration.
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig returns the otelgin middleware, which opens one span
// per request named after the route pattern. Place it early in the chain;
// TracingAttributeInjector adds the identity attributes after auth has run.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// TracingAttributeInjector enriches the request span with the request id
// and the authenticated school/user. It must run after the RequestID and
// JWT middlewares, and it marks error responses on the way out.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			if requestID := c.GetString("request_id"); requestID != "" {
				span.SetAttributes(attribute.String("request_id", requestID))
			}
			if schoolID := GetJWTSchoolID(c); schoolID != "" {
				span.SetAttributes(attribute.String("school_id", schoolID))
			}
			if userID := GetJWTUserID(c); userID != "" {
				span.SetAttributes(attribute.String("user_id", userID))
			}
		}

		c.Next()

		if span.IsRecording() {
			if status := c.Writer.Status(); status >= http.StatusBadRequest {
				span.SetStatus(codes.Error, http.StatusText(status))
				span.SetAttributes(attribute.Int("http.status_code", status))
			}
		}
	}
}
