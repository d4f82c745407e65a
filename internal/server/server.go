// Package server exposes the download triggers and job status over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bhavcopy-ingest/internal/config"
	"bhavcopy-ingest/internal/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg  config.Server
	http *http.Server
}

// NewRouter wires middleware and controllers.
func NewRouter(cfg config.Server, jr JobRunner, dr DateRunner) *gin.Engine {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	r := gin.New()
	r.Use(Recovery(), RequestLogger(), RateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst))

	api := r.Group("/api")
	{
		HealthController{}.RegisterRoutes(api)
		NewBhavcopyController(jr, dr).RegisterRoutes(api)
		NewJobsController(jr).RegisterRoutes(api)
	}
	return r
}

func New(cfg config.Server, jr JobRunner, dr DateRunner) *Server {
	return &Server{
		cfg: cfg,
		http: &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewRouter(cfg, jr, dr),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run serves until ctx is done, then drains in-flight requests for up to 15s.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "HTTP server listening", "addr", s.cfg.Addr)
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
	logger.Info(shutdownCtx, "HTTP server shutting down")
	return s.http.Shutdown(shutdownCtx)
}
