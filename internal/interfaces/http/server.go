// Package http exposes the approval engine over a small JSON API.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/approval-engine/internal/application/service"
)

// RequestIDHeader is echoed back on every response
const RequestIDHeader = "X-Request-ID"

// Logger is the subset of service.Logger the API needs
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds listener and timeout settings
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultServerConfig listens on :8080 with 30s read/write timeouts
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Address returns host:port
func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Server routes API calls to the engine, escalation and config services
type Server struct {
	cfg      ServerConfig
	router   *gin.Engine
	handlers *Handlers
	logger   Logger
}

// NewServer builds the router; nothing listens until Start or Serve
func NewServer(
	cfg ServerConfig,
	engine service.ApprovalEngine,
	escalations service.EscalationManager,
	configs service.ConfigService,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultServerConfig().ShutdownTimeout
	}

	handlers := NewHandlers(engine, escalations, configs, logger)
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog(logger))
	registerRoutes(router, handlers)

	return &Server{cfg: cfg, router: router, handlers: handlers, logger: logger}
}

func registerRoutes(r *gin.Engine, h *Handlers) {
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api")

	api.POST("/evaluations", h.Evaluate)

	records := api.Group("/records")
	records.GET("", h.ListRecords)
	records.GET("/:id", h.GetRecord)
	records.GET("/:id/audit", h.GetAuditTrail)
	records.GET("/:id/escalations", h.GetEscalationChain)
	records.POST("/:id/decision", h.RecordDecision)

	escalations := api.Group("/escalations")
	escalations.POST("/:id/resolve", h.ResolveEscalation)
	escalations.POST("/:id/timeout", h.ProcessTimeout)

	api.GET("/config", h.GetConfig)
	api.PUT("/config", h.UpdateConfig)
}

// requestID keeps a caller supplied id or mints one
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func accessLog(logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("HTTP request",
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}

// Start listens on the configured address and serves until ctx is done
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs on ln until ctx is done, then drains in-flight requests
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.logger.Info("HTTP server listening", "address", ln.Addr().String())

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.logger.Error("HTTP server failed", "error", err)
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown incomplete", "error", err)
		return err
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

// Router exposes the handler tree for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}
