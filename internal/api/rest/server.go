package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/davidleathers/compliance-guard-backend/internal/infrastructure/config"
)

// Server is the HTTP front door for the compliance service.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds the router and the underlying http.Server. The gatherer is
// optional; when set, /metrics serves it.
func NewServer(cfg config.ServerConfig, handler *Handler, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	middlewares := []Middleware{
		RecoveryMiddleware(logger),
		RequestIDMiddleware(),
		LoggingMiddleware(logger.Named("http")),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = int(cfg.RateLimit)
		}
		middlewares = append(middlewares, RateLimitMiddleware(cfg.RateLimit, burst))
	}
	wrapped := Chain(mux, middlewares...)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      wrapped,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: logger.Named("server"),
	}
}

// Start blocks serving requests until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
