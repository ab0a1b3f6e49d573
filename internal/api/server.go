package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"goldwatch/internal/metrics"
	"goldwatch/internal/monitor"
	"goldwatch/internal/service"
	"goldwatch/internal/storage"
)

const wsPath = "/v1/ws/triggers"

// Config wires the router's collaborators. Triggers and Hub may be nil.
type Config struct {
	Engine   *monitor.Engine
	Alerts   *service.Alerts
	Triggers storage.TriggerLog
	Hub      *Hub
	Logger   zerolog.Logger
}

// NewRouter builds the HTTP API.
func NewRouter(cfg Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog(cfg.Logger), metrics.GinMiddleware(wsPath))

	h := &handler{
		engine:   cfg.Engine,
		alerts:   cfg.Alerts,
		triggers: cfg.Triggers,
	}

	router.GET("/healthz", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.GET("/snapshot", h.snapshot)
		v1.GET("/history", h.history)
		v1.GET("/schedule", h.schedule)
		v1.GET("/triggers", h.recentTriggers)
	}
	registerAlertRoutes(v1, h)

	if cfg.Hub != nil {
		router.GET(wsPath, gin.WrapH(cfg.Hub))
	}

	return router
}

func registerAlertRoutes(router *gin.RouterGroup, h *handler) {
	alerts := router.Group("/alerts")
	{
		alerts.GET("", h.listAlerts)
		alerts.POST("", h.createAlert)
		alerts.GET("/evaluate", h.evaluateAlerts)
	}
}

// Server runs the router until its context is cancelled.
type Server struct {
	http            *http.Server
	shutdownTimeout time.Duration
	logger          zerolog.Logger
}

// NewServer binds the router to an address.
func NewServer(listen string, shutdownTimeout time.Duration, router http.Handler, logger zerolog.Logger) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &Server{
		http: &http.Server{
			Addr:              listen,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
		logger:          logger.With().Str("component", "api").Logger(),
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("listen", s.http.Addr).Msg("http api listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	s.logger.Info().Msg("http api stopped")
	return nil
}
