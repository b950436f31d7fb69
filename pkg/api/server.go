package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"slurmnode/pkg/api/middleware"
	"slurmnode/pkg/auth"
	"slurmnode/pkg/coordination"
	"slurmnode/pkg/storage"
)

// Server encapsulates the HTTP API server and its dependencies.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	log        *zap.Logger

	queue       storage.Queue
	statusStore storage.StatusStore
	logStore    storage.LogStore
	registry    coordination.Registry
	validator   *middleware.Validator

	defaultTimeout time.Duration
}

// Config holds API server configuration.
type Config struct {
	Port        string
	Queue       storage.Queue
	StatusStore storage.StatusStore
	LogStore    storage.LogStore
	Registry    coordination.Registry

	JWTService  *auth.JWTService
	APIKeyStore auth.APIKeyStore

	// DefaultTimeout applies to submissions that carry none. Zero means
	// jobs run without a deadline.
	DefaultTimeout time.Duration

	Logger *zap.Logger
}

// NewServer creates a new API server with all dependencies.
func NewServer(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	// Middleware stack (order matters)
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.TracingMiddleware("slurmnode-api"))
	router.Use(requestLogger(log))
	router.Use(middleware.RateLimitMiddleware())
	router.Use(middleware.BodySizeLimitMiddleware(1 << 20))

	s := &Server{
		router:         router,
		log:            log,
		queue:          cfg.Queue,
		statusStore:    cfg.StatusStore,
		logStore:       cfg.LogStore,
		registry:       cfg.Registry,
		validator:      middleware.NewValidator(middleware.DefaultValidatorConfig()),
		defaultTimeout: cfg.DefaultTimeout,
	}

	s.registerRoutes(cfg)

	s.httpServer = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.log.Info("starting API server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the underlying gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes(cfg Config) {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")

	authed := cfg.JWTService != nil || cfg.APIKeyStore != nil
	if authed {
		v1.Use(middleware.AuthMiddleware(middleware.AuthConfig{
			JWTService:  cfg.JWTService,
			APIKeyStore: cfg.APIKeyStore,
		}))
	}

	jobs := v1.Group("/jobs")
	{
		if authed {
			jobs.POST("", middleware.RequireRole(auth.RoleOperator), s.submitJob)
		} else {
			jobs.POST("", s.submitJob)
		}
		jobs.GET("/:id", s.getJob)
		jobs.GET("/:id/logs", s.getJobLogs)
	}

	cluster := v1.Group("/cluster")
	{
		cluster.GET("/nodes", s.listNodes)
		cluster.GET("/capacity", s.getCapacity)
	}
}

// requestLogger logs HTTP requests through the structured logger.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// healthCheck returns server health status with dependency checks.
func (s *Server) healthCheck(c *gin.Context) {
	deps := make(map[string]bool)

	deps["queue"] = s.queue != nil
	deps["status_store"] = s.statusStore != nil
	deps["registry"] = s.registry != nil

	healthy := true
	for _, ok := range deps {
		if !ok {
			healthy = false
			break
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":       status,
		"dependencies": deps,
		"timestamp":    time.Now().UTC(),
	})
}
