package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/version", s.handleVersion)

	// Submission intake
	s.echo.POST("/api/submissions", s.handleSubmit)

	// Alert lifecycle for the host application
	s.echo.GET("/api/alerts/open", s.handleGetOpenAlert)
	s.echo.POST("/api/alerts/resolve", s.handleResolveAlert)
}
