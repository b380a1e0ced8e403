package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/surveypulse/surveypulse/internal/domain"
)

// alertReader is the slice of the alert store the HTTP surface needs.
type alertReader interface {
	GetOpen(ctx context.Context, key domain.AlertKey) (domain.CTLAlert, error)
	Resolve(ctx context.Context, key domain.AlertKey, resolvedBy string, at time.Time) error
}

func alertKeyFromQuery(c echo.Context) (domain.AlertKey, error) {
	tenantID, err := uuid.Parse(c.QueryParam("tenant_id"))
	if err != nil {
		return domain.AlertKey{}, echo.NewHTTPError(http.StatusBadRequest, "tenant_id must be a UUID")
	}
	formID, err := uuid.Parse(c.QueryParam("form_id"))
	if err != nil {
		return domain.AlertKey{}, echo.NewHTTPError(http.StatusBadRequest, "form_id must be a UUID")
	}
	dimension := c.QueryParam("dimension")
	if dimension == "" {
		return domain.AlertKey{}, echo.NewHTTPError(http.StatusBadRequest, "dimension is required")
	}
	return domain.AlertKey{TenantID: tenantID, FormID: formID, Dimension: dimension}, nil
}

func (s *Server) handleGetOpenAlert(c echo.Context) error {
	key, err := alertKeyFromQuery(c)
	if err != nil {
		return err
	}

	alert, err := s.alerts.GetOpen(c.Request().Context(), key)
	if errors.Is(err, domain.ErrAlertNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "no open alert for key")
	}
	if err != nil {
		s.log.Error("failed to read open alert", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read alert")
	}

	return c.JSON(http.StatusOK, alert)
}

type resolveRequest struct {
	TenantID   uuid.UUID `json:"tenant_id"`
	FormID     uuid.UUID `json:"form_id"`
	Dimension  string    `json:"dimension"`
	ResolvedBy string    `json:"resolved_by"`
}

func (s *Server) handleResolveAlert(c echo.Context) error {
	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.TenantID == uuid.Nil || req.FormID == uuid.Nil || req.Dimension == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tenant_id, form_id, and dimension are required")
	}
	if req.ResolvedBy == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "resolved_by is required")
	}

	key := domain.AlertKey{TenantID: req.TenantID, FormID: req.FormID, Dimension: req.Dimension}
	err := s.alerts.Resolve(c.Request().Context(), key, req.ResolvedBy, time.Now().UTC())
	if errors.Is(err, domain.ErrAlertNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "no open alert for key")
	}
	if err != nil {
		s.log.Error("failed to resolve alert", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve alert")
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "resolved"})
}
