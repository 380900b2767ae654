// Package server provides the HTTP server implementation
package server

// @title           MedQueue API
// @version         1.0
// @description     Hospital queue and appointment API with two-factor login and account lockout.
// @x-skip-model-definitions true
//
// @description.markdown
// All API endpoints are subject to rate limiting per client IP.
// Code requests (resend-code, forgot-password) are additionally limited per account.
//
// When rate limit is exceeded:
// * Status code 429 (Too Many Requests) is returned
// * Headers:
//   - X-RateLimit-Limit: Maximum requests allowed
//   - X-RateLimit-Reset: Unix timestamp when the rate limit resets
//   - Retry-After: Seconds to wait before retrying
//
// @host            localhost:8080
// @BasePath        /api/v1
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Bearer token authentication
//
// @response 429 {object} models.ErrorResponse "Rate limit exceeded"

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"medqueue/internal/api/routes"

	"go.uber.org/zap"
)

// Server represents the HTTP server
type Server struct {
	http *http.Server
	log  *zap.Logger
}

// New creates a new server instance
func New(deps routes.Dependencies) (*Server, error) {
	port, err := strconv.Atoi(deps.Config.API.Port)
	if err != nil {
		return nil, fmt.Errorf("invalid port number: %w", err)
	}

	return &Server{
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           routes.SetupRoutes(deps),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		log: deps.Log,
	}, nil
}

// Start serves until ctx is cancelled, then drains in-flight requests
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting server", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.log.Info("shutting down server")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
