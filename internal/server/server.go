// Package server exposes the HTTP ingestion and read API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fuelgrid/tanksync/internal/config"
	"github.com/fuelgrid/tanksync/internal/dip"
	"github.com/fuelgrid/tanksync/internal/observability/logger"
	"github.com/fuelgrid/tanksync/internal/observability/metrics"
	"github.com/fuelgrid/tanksync/internal/observability/tracing"
	"github.com/fuelgrid/tanksync/internal/synclog"
	"github.com/fuelgrid/tanksync/internal/telemetry/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const serviceName = "tanksync"

// Server holds handler dependencies.
type Server struct {
	cfg config.Config
	log *zap.Logger
	db  *gorm.DB

	telemetry domain.Service
	dips      *dip.Service
	syncLogs  *synclog.Recorder

	limiter *rateLimiter
}

// Params are the Server dependencies.
type Params struct {
	fx.In

	Cfg       config.Config
	Log       *zap.Logger
	DB        *gorm.DB
	Telemetry domain.Service
	Dips      *dip.Service
	SyncLogs  *synclog.Recorder
}

// NewServer constructs the HTTP server.
func NewServer(p Params) *Server {
	limit := p.Cfg.Webhook.RateLimit
	if limit <= 0 {
		limit = 120
	}
	return &Server{
		cfg:       p.Cfg,
		log:       p.Log.Named("server"),
		db:        p.DB,
		telemetry: p.Telemetry,
		dips:      p.Dips,
		syncLogs:  p.SyncLogs,
		limiter:   newRateLimiter(limit, time.Minute),
	}
}

// NewEngine builds the gin engine with the shared middleware chain. Method
// mismatches must answer 405, not 404, so HandleMethodNotAllowed is on.
func NewEngine(cfg config.Config, httpMetrics *metrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	engine.Use(tracing.GinMiddleware(serviceName))
	engine.Use(metrics.GinMiddleware(httpMetrics))

	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error":   "method_not_allowed",
			"message": "method not allowed for this endpoint",
		})
	})
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "no such endpoint",
		})
	})
	return engine
}

// RegisterAPIRoutes attaches all routes to the engine.
func (s *Server) RegisterAPIRoutes(engine *gin.Engine) {
	engine.GET("/healthz", s.Health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api/v1")

	webhooks := api.Group("/webhooks")
	webhooks.Use(s.WebhookAuthRequired())
	webhooks.POST("/telemetry", s.IngestTelemetry)

	api.POST("/dips", s.RecordDips)
	api.GET("/locations", s.ListLocations)
	api.GET("/alerts", s.ListAlerts)
}

// Health reports liveness of the process and its database connection.
func (s *Server) Health(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RunHTTP binds the engine to the configured port under the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, engine *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("http server starting", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			timeout := cfg.HTTP.ShutdownTimeout
			if timeout <= 0 {
				timeout = 10 * time.Second
			}
			shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// Module wires the HTTP surface.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server, engine *gin.Engine) {
		s.RegisterAPIRoutes(engine)
	}),
	fx.Invoke(RunHTTP),
)
