package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CounterStore is the quota period counter storage. Implementations must make
// IncrementIfBelow linearizable per (quotaID, periodKey): two racing calls
// never both succeed past the limit.
type CounterStore interface {
	// IncrementIfBelow atomically increments the counter for
	// (quotaID, periodKey) unless the current count is already at or above
	// limit, creating the counter at zero if absent. Returns the count
	// after the call and whether the increment was applied.
	IncrementIfBelow(ctx context.Context, quotaID uuid.UUID, periodKey string, limit int64) (int64, bool, error)

	// Decrement undoes one increment, never going below zero. Used to roll
	// back counters touched by an admission attempt that was later
	// rejected or cancelled.
	Decrement(ctx context.Context, quotaID uuid.UUID, periodKey string) error

	// Count returns the current counter value, zero if absent.
	Count(ctx context.Context, quotaID uuid.UUID, periodKey string) (int64, error)
}

// AlertStore is the CTL alert storage. FindOrCreateOpen must be atomic per
// key: racing correlation attempts yield exactly one open alert.
type AlertStore interface {
	// FindOrCreateOpen returns the existing open alert for key, or inserts
	// candidate and returns it. The boolean reports whether candidate was
	// inserted.
	FindOrCreateOpen(ctx context.Context, key AlertKey, candidate CTLAlert) (CTLAlert, bool, error)

	// Escalate raises the open alert for key to the given severity if the
	// new score magnitude strictly exceeds the stored one. Status and
	// ticket linkage are never touched. Reports whether an update applied.
	Escalate(ctx context.Context, key AlertKey, scoreValue float64, level AlertLevel, notes string) (bool, error)

	// SetTicket links a ticket to the alert exactly once. A second call
	// for the same alert is a no-op.
	SetTicket(ctx context.Context, alertID uuid.UUID, ticketID string) error

	// GetOpen returns the open alert for key, or ErrAlertNotFound.
	GetOpen(ctx context.Context, key AlertKey) (CTLAlert, error)

	// Resolve closes the open alert for key. Invoked by the host on human
	// action; present here so stores and tests share one lifecycle.
	Resolve(ctx context.Context, key AlertKey, resolvedBy string, at time.Time) error
}

// ConfigSource supplies tenant configuration to the pipeline. Configuration
// is read-only within a pipeline run and may be cached with a bounded
// staleness window.
type ConfigSource interface {
	ActiveQuotas(ctx context.Context, tenantID, formID uuid.UUID) ([]Quota, error)
	PersonaRules(ctx context.Context, tenantID uuid.UUID) ([]PersonaRule, error)
	AlertThresholds(ctx context.Context, tenantID, formID uuid.UUID) (AlertThresholds, error)
}

// TicketCreator opens a support ticket for a newly created alert. Creation is
// fire-and-forget from the pipeline's point of view: failure leaves the alert
// open without a ticket and may be retried out-of-band.
type TicketCreator interface {
	CreateTicket(ctx context.Context, alert CTLAlert) (ticketID string, err error)
}

// Analyzer computes sentiment metadata from free-text answers. The built-in
// lexicon analyzer is deterministic; an external NLP service can be swapped in
// as long as its output is mapped into SentimentResult.
type Analyzer interface {
	AnalyzeSentiment(ctx context.Context, texts []string) (SentimentResult, error)
}
