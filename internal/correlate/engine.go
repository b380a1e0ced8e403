// Package correlate converts a classified submission into a deduplicated
// close-the-loop alert, optionally linked to a support ticket.
package correlate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/surveypulse/surveypulse/internal/domain"
	"github.com/surveypulse/surveypulse/internal/metrics"
	"github.com/surveypulse/surveypulse/internal/platform/retry"
)

var defaultRetryPolicy = retry.Policy{
	MaxAttempts:    5,
	InitialBackoff: 5 * time.Millisecond,
	MaxBackoff:     100 * time.Millisecond,
}

type Engine struct {
	alerts  domain.AlertStore
	tickets domain.TicketCreator
	clock   clockwork.Clock
	policy  retry.Policy
	log     *slog.Logger
}

func NewEngine(alerts domain.AlertStore, tickets domain.TicketCreator, clock clockwork.Clock, log *slog.Logger) *Engine {
	return &Engine{
		alerts:  alerts,
		tickets: tickets,
		clock:   clock,
		policy:  defaultRetryPolicy,
		log:     log,
	}
}

// CorrelationKey derives the dedup key for a submission: the contact identity
// when known, otherwise the submission itself (anonymous responses never
// dedup against each other).
func CorrelationKey(submission *domain.Submission) domain.AlertKey {
	dimension := submission.ContactID
	if dimension == "" {
		dimension = submission.ID.String()
	}
	return domain.AlertKey{
		TenantID:  submission.TenantID,
		FormID:    submission.FormID,
		Dimension: dimension,
	}
}

// Correlate decides whether the classification warrants a CTL alert,
// deduplicates against the existing open alert for the correlation key, and
// links a ticket to a newly created alert at most once. Racing correlations
// for the same key resolve to a single surviving alert; the loser reuses the
// winner's.
func (e *Engine) Correlate(ctx context.Context, submission *domain.Submission, classification domain.Classification, thresholds domain.AlertThresholds) (domain.CorrelationResult, error) {
	if !crossesThreshold(thresholds, classification.Sentiment) {
		return domain.CorrelationResult{}, nil
	}

	key := CorrelationKey(submission)
	now := e.clock.Now().UTC()
	candidate := domain.CTLAlert{
		ID:           uuid.New(),
		TenantID:     submission.TenantID,
		FormID:       submission.FormID,
		SubmissionID: submission.ID,
		AlertLevel:   levelFor(thresholds, classification.Sentiment.Score),
		ScoreValue:   classification.Sentiment.Score,
		ScoreType:    "sentiment",
		Sentiment:    classification.Sentiment.Sentiment,
		Status:       domain.AlertStatusOpen,
		Notes:        alertNotes(classification),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	type outcome struct {
		alert   domain.CTLAlert
		created bool
	}
	result, err := retry.Do(ctx, e.retryPolicy(), classifyStoreErr, func() (outcome, error) {
		alert, created, err := e.alerts.FindOrCreateOpen(ctx, key, candidate)
		return outcome{alert: alert, created: created}, err
	})
	if err != nil {
		return domain.CorrelationResult{}, fmt.Errorf("find-or-create alert: %w", err)
	}

	if !result.created {
		// Existing open alert wins; escalate it if this submission is
		// strictly more severe, but never touch status or ticket.
		if math.Abs(candidate.ScoreValue) > math.Abs(result.alert.ScoreValue) {
			if _, err := e.alerts.Escalate(ctx, key, candidate.ScoreValue, candidate.AlertLevel, candidate.Notes); err != nil {
				e.log.WarnContext(ctx, "alert escalation failed",
					"alert_id", result.alert.ID, "error", err)
			}
		}
		metrics.AlertsReused.Inc()
		return domain.CorrelationResult{
			AlertID:        result.alert.ID,
			ReusedExisting: true,
		}, nil
	}

	metrics.AlertsCreated.WithLabelValues(string(result.alert.AlertLevel)).Inc()
	e.log.InfoContext(ctx, "CTL alert created",
		"alert_id", result.alert.ID,
		"level", result.alert.AlertLevel,
		"score", result.alert.ScoreValue,
		"submission_id", submission.ID)

	ticketID := e.linkTicket(ctx, result.alert)

	return domain.CorrelationResult{
		AlertCreated: true,
		AlertID:      result.alert.ID,
		TicketID:     ticketID,
	}, nil
}

// linkTicket creates the support ticket for a fresh alert. Failure is logged
// and absorbed: the alert stays open with an empty ticket ID and the host may
// retry out-of-band.
func (e *Engine) linkTicket(ctx context.Context, alert domain.CTLAlert) string {
	if e.tickets == nil {
		return ""
	}

	ticketID, err := e.tickets.CreateTicket(ctx, alert)
	if err != nil {
		metrics.TicketLinkFailures.Inc()
		e.log.WarnContext(ctx, "ticket creation failed, alert kept without ticket",
			"alert_id", alert.ID, "error", err)
		return ""
	}
	if ticketID == "" {
		return ""
	}

	if err := e.alerts.SetTicket(ctx, alert.ID, ticketID); err != nil {
		metrics.TicketLinkFailures.Inc()
		e.log.WarnContext(ctx, "ticket link persist failed",
			"alert_id", alert.ID, "ticket_id", ticketID, "error", err)
		return ""
	}
	return ticketID
}

func alertNotes(classification domain.Classification) string {
	return fmt.Sprintf("sentiment %s (%.2f), persona %s",
		classification.Sentiment.Sentiment,
		classification.Sentiment.Score,
		classification.Persona.PersonaID)
}

func (e *Engine) retryPolicy() retry.Policy {
	p := e.policy
	p.OnRetry = func(_ int, _ error, _ time.Duration) {
		metrics.StoreRetries.WithLabelValues("alert").Inc()
	}
	return p
}

func classifyStoreErr(err error) retry.Action {
	if domain.IsContention(err) {
		return retry.Again
	}
	return retry.Stop
}
