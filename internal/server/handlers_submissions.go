package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/surveypulse/surveypulse/internal/domain"
)

type submissionRequest struct {
	ID        *uuid.UUID     `json:"id"`
	TenantID  uuid.UUID      `json:"tenant_id"`
	FormID    uuid.UUID      `json:"form_id"`
	ContactID string         `json:"contact_id"`
	Data      map[string]any `json:"data"`
	CreatedAt *time.Time     `json:"created_at"`
}

type submissionResponse struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	Status       string    `json:"status"`
}

// handleSubmit accepts a submission and hands it to the pipeline. The
// response is 202: admission, classification, and correlation happen on the
// worker pool, and a rejected submission is dropped there.
func (s *Server) handleSubmit(c echo.Context) error {
	var req submissionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.TenantID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "tenant_id is required")
	}
	if req.FormID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "form_id is required")
	}
	if len(req.Data) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "data is required")
	}

	submission := &domain.Submission{
		ID:        uuid.New(),
		TenantID:  req.TenantID,
		FormID:    req.FormID,
		ContactID: req.ContactID,
		Data:      req.Data,
		CreatedAt: time.Now().UTC(),
	}
	if req.ID != nil {
		submission.ID = *req.ID
	}
	if req.CreatedAt != nil {
		submission.CreatedAt = req.CreatedAt.UTC()
	}

	if err := s.processor.Enqueue(c.Request().Context(), submission); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "submission queue unavailable")
	}

	return c.JSON(http.StatusAccepted, submissionResponse{
		SubmissionID: submission.ID,
		Status:       "queued",
	})
}
