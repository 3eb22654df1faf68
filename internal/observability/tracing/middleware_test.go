package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

func TestGinMiddlewareContinuesIncomingTrace(t *testing.T) {
	SetPropagator()
	gin.SetMode(gin.TestMode)

	var got trace.SpanContext
	engine := gin.New()
	engine.Use(GinMiddleware("test"))
	engine.GET("/ping", func(c *gin.Context) {
		got = trace.SpanContextFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("traceparent", "00-0123456789abcdef0123456789abcdef-0123456789abcdef-01")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !got.IsValid() {
		t.Fatal("expected a valid span context from the traceparent header")
	}
	if got.TraceID().String() != "0123456789abcdef0123456789abcdef" {
		t.Fatalf("trace id: got %s", got.TraceID())
	}
}

func TestGinMiddlewareWithoutTraceparent(t *testing.T) {
	SetPropagator()
	gin.SetMode(gin.TestMode)

	var got trace.SpanContext
	engine := gin.New()
	engine.Use(GinMiddleware("test"))
	engine.GET("/ping", func(c *gin.Context) {
		got = trace.SpanContextFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if got.IsValid() {
		t.Fatal("expected no span context without a traceparent header")
	}
}
