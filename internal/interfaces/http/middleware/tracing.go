package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/minicrm/backend/internal/infrastructure/logger"
)

const (
	// MaxRequestIDLength bounds client-supplied request ids
	MaxRequestIDLength = 128
	// MaxActorLength bounds the actor attribute copied into spans
	MaxActorLength = 64
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "minicrm-backend",
		Enabled:     true,
	}
}

// Tracing returns OpenTelemetry tracing middleware built on otelgin.
// Span names follow "HTTP METHOD route_pattern".
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passThrough
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// SpanAttributes must run after Tracing. It adds request_id and actor to
// the server span and marks the span as an error for 4xx and 5xx responses.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}
		enrichSpan(c, span)

		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusBadRequest {
			span.SetStatus(codes.Error, statusMessage(status))
		}
	}
}

func enrichSpan(c *gin.Context, span trace.Span) {
	if requestID := requestIDFromContext(c); requestID != "" {
		span.SetAttributes(attribute.String("request_id", truncate(requestID, MaxRequestIDLength)))
	}
	if actor := c.GetHeader(logger.ActorHeader); actor != "" {
		span.SetAttributes(attribute.String("actor", truncate(actor, MaxActorLength)))
	}
}

func statusMessage(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "Internal Server Error"
	case status == http.StatusNotFound:
		return "Not Found"
	default:
		return "Client Error"
	}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
