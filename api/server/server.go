package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"metricagent/api/middleware"
	"metricagent/internal/alert"
	"metricagent/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server exposes the agent's metrics and a read-only alert API over HTTP.
type Server struct {
	router    *gin.Engine
	manager   *alert.Manager
	evaluator *alert.Evaluator
	registry  *prometheus.Registry
	hostname  string
	startTime time.Time
	log       *zap.Logger
	httpSrv   *http.Server
}

func NewServer(cfg *config.Config, registry *prometheus.Registry, manager *alert.Manager, evaluator *alert.Evaluator, hostname string, log *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// Request timeout middleware
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	s := &Server{
		router:    router,
		manager:   manager,
		evaluator: evaluator,
		registry:  registry,
		hostname:  hostname,
		startTime: time.Now(),
		log:       log,
	}

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	// Prometheus exposition of the agent's own registry
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	s.router.GET("/healthz", s.health)

	rl := middleware.NewIPRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: 50,
		BurstSize:         100,
		CleanupInterval:   5 * time.Minute,
	})

	api := s.router.Group("/api/v1")
	api.Use(rl.Middleware())

	{
		api.GET("/alerts/active", s.listActiveAlerts)
		api.GET("/alerts/severity", s.alertsBySeverity)
		api.GET("/alerts/rules", s.listRules)
		api.GET("/alerts/history", s.alertHistory)
	}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.Info("starting http server", zap.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
