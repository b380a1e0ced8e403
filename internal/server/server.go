// Package server hosts the HTTP surface: submission intake, alert lookup,
// health probes, and metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/surveypulse/surveypulse/internal/pipeline"
	"github.com/surveypulse/surveypulse/internal/platform/config"
)

// redisHealthChecker is a minimal interface for Redis health checks.
type redisHealthChecker interface {
	Ping(ctx context.Context) error
}

// postgresHealthChecker is a minimal interface for PostgreSQL health checks.
type postgresHealthChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	processor *pipeline.Processor
	alerts    alertReader
	redis     redisHealthChecker
	postgres  postgresHealthChecker
	log       *slog.Logger
	startTime time.Time
}

func NewServer(
	cfg *config.Config,
	processor *pipeline.Processor,
	alerts alertReader,
	redis redisHealthChecker,
	postgres postgresHealthChecker,
	log *slog.Logger,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())

	srv := &Server{
		echo:      e,
		config:    cfg,
		processor: processor,
		alerts:    alerts,
		redis:     redis,
		postgres:  postgres,
		log:       log,
		startTime: time.Now(),
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	s.log.Info("starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
