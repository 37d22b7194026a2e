package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/minicrm/backend/internal/infrastructure/config"
	"github.com/minicrm/backend/internal/infrastructure/logger"
	"github.com/minicrm/backend/internal/infrastructure/telemetry"
	"github.com/minicrm/backend/internal/interfaces/http/middleware"
)

// EngineConfig configures the middleware chain of the API engine
type EngineConfig struct {
	HTTP    config.HTTPConfig
	Tracing middleware.TracingConfig
	// Meter may be nil, which disables HTTP metrics
	Meter *telemetry.MeterProvider
}

// NewEngine builds a gin engine with the standard middleware chain, the
// versioned API routes and the root /health endpoint.
func NewEngine(cfg EngineConfig, log *zap.Logger, h Handlers) (*gin.Engine, error) {
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(logger.Recovery(log))
	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Tracing(cfg.Tracing))
	engine.Use(middleware.SpanAttributes())
	engine.Use(middleware.HTTPMetrics(cfg.Meter))
	engine.Use(middleware.Secure())

	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	engine.GET("/health", h.System.Health)

	r := NewRouter(engine, WithAPIVersion("v1"))
	for _, group := range APIGroups(h) {
		r.Register(group)
	}
	r.Setup()

	return engine, nil
}
