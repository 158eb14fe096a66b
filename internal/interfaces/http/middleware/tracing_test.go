package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTestTracer installs an in-memory tracer provider and returns the span recorder.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
	})

	return sr
}

func findSpan(spans []sdktrace.ReadOnlySpan, name string) sdktrace.ReadOnlySpan {
	for _, span := range spans {
		if span.Name() == name {
			return span
		}
	}
	return nil
}

func TestTracingWithConfig_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(TracingWithConfig(TracingConfig{Enabled: false, ServiceName: "test-service"}))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTracingWithConfig_Enabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sr := setupTestTracer(t)

	router := gin.New()
	router.Use(TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "test-service"}))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	spans := sr.Ended()
	require.GreaterOrEqual(t, len(spans), 1)
	require.NotNil(t, findSpan(spans, "GET /test"), "HTTP span not found")
}

func TestTracingAttributeInjector_RequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sr := setupTestTracer(t)

	router := gin.New()
	router.Use(RequestID())
	router.Use(TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "test-service"}))
	router.Use(TracingAttributeInjector())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Request-ID", "req-abc-123")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	span := findSpan(sr.Ended(), "GET /test")
	require.NotNil(t, span)

	found := false
	for _, attr := range span.Attributes() {
		if attr.Key == "request_id" {
			assert.Equal(t, "req-abc-123", attr.Value.AsString())
			found = true
		}
	}
	assert.True(t, found, "request_id attribute not found in span")
}

func TestTracingAttributeInjector_Identity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sr := setupTestTracer(t)

	router := gin.New()
	router.Use(TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "test-service"}))
	router.Use(func(c *gin.Context) {
		c.Set(JWTUserIDKey, "user-123")
		c.Set(JWTSchoolIDKey, "school-456")
		c.Next()
	})
	router.Use(TracingAttributeInjector())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	span := findSpan(sr.Ended(), "GET /test")
	require.NotNil(t, span)

	userIDFound := false
	schoolIDFound := false
	for _, attr := range span.Attributes() {
		if attr.Key == "user_id" {
			assert.Equal(t, "user-123", attr.Value.AsString())
			userIDFound = true
		}
		if attr.Key == "school_id" {
			assert.Equal(t, "school-456", attr.Value.AsString())
			schoolIDFound = true
		}
	}
	assert.True(t, userIDFound, "user_id attribute not found in span")
	assert.True(t, schoolIDFound, "school_id attribute not found in span")
}

func TestTracingAttributeInjector_ErrorStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sr := setupTestTracer(t)

	router := gin.New()
	router.Use(TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "test-service"}))
	router.Use(TracingAttributeInjector())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	span := findSpan(sr.Ended(), "GET /test")
	require.NotNil(t, span)
	assert.Equal(t, codes.Error, span.Status().Code)
}

func TestTracingAttributeInjector_SuccessNotMarked(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sr := setupTestTracer(t)

	router := gin.New()
	router.Use(TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "test-service"}))
	router.Use(TracingAttributeInjector())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	span := findSpan(sr.Ended(), "GET /test")
	require.NotNil(t, span)
	assert.NotEqual(t, codes.Error, span.Status().Code)
}

func TestTracingAttributeInjector_NoSpan(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// No tracer provider set up, so there is no recording span
	router := gin.New()
	router.Use(TracingAttributeInjector())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDefaultTracingConfig(t *testing.T) {
	cfg := DefaultTracingConfig()

	assert.Equal(t, "schoolerp-backend", cfg.ServiceName)
	assert.True(t, cfg.Enabled)
}
