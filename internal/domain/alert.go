package domain

import (
	"time"

	"github.com/google/uuid"
)

// AlertLevel is the severity of a CTL alert.
type AlertLevel string

const (
	AlertLevelLow    AlertLevel = "low"
	AlertLevelMedium AlertLevel = "medium"
	AlertLevelHigh   AlertLevel = "high"
)

// AlertStatus is the lifecycle state of a CTL alert. The core only ever
// creates open alerts; resolution is a human action in the host application.
type AlertStatus string

const (
	AlertStatusOpen     AlertStatus = "open"
	AlertStatusResolved AlertStatus = "resolved"
)

// CTLAlert is a close-the-loop alert: a flagged submission requiring
// follow-up, optionally linked to a support ticket.
type CTLAlert struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	FormID       uuid.UUID
	SubmissionID uuid.UUID
	AlertLevel   AlertLevel
	ScoreValue   float64
	ScoreType    string
	Sentiment    Sentiment
	Status       AlertStatus
	ResolvedAt   *time.Time
	ResolvedBy   string
	// TicketID is set at most once per alert. Empty when ticket creation
	// has not happened or failed; the alert stays open either way.
	TicketID  string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AlertKey is the correlation key for alert deduplication. At most one open
// alert exists per key.
type AlertKey struct {
	TenantID uuid.UUID
	FormID   uuid.UUID
	// Dimension is caller-supplied: typically the contact ID of the
	// responding customer, or the submission ID when no customer is known.
	Dimension string
}

// LevelBoundary maps a score magnitude floor to an alert level. Boundaries
// are evaluated highest floor first.
type LevelBoundary struct {
	MinMagnitude float64    `json:"min_magnitude"`
	Level        AlertLevel `json:"level"`
}

// AlertThresholds configure when a classification warrants an alert and how
// severe it is.
type AlertThresholds struct {
	// NegativeScore triggers an alert when the sentiment is negative and
	// the score is at or below this value (e.g. -0.5). Zero disables the
	// score trigger.
	NegativeScore float64
	// EmotionTriggers and KeywordTriggers raise an alert when the
	// classification contains any listed emotion or keyword.
	EmotionTriggers []string
	KeywordTriggers []string
	// Levels maps score magnitude to alert level. When empty, the default
	// mapping applies (>=0.75 high, >=0.5 medium, otherwise low).
	Levels []LevelBoundary
}

// CorrelationResult is the outcome of alert correlation for one submission.
type CorrelationResult struct {
	AlertCreated   bool
	AlertID        uuid.UUID
	ReusedExisting bool
	TicketID       string
}
