package domain

import "github.com/google/uuid"

// PeriodType determines how submission counts are bucketed for a quota.
type PeriodType string

const (
	PeriodDay   PeriodType = "day"
	PeriodWeek  PeriodType = "week"
	PeriodMonth PeriodType = "month"
	PeriodTotal PeriodType = "total"
)

// Valid reports whether p is one of the known period types.
func (p PeriodType) Valid() bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodTotal:
		return true
	}
	return false
}

// Quota is a configured ceiling on accepted submissions per period for a
// tenant's form. Quotas are tenant configuration: read-only to this core.
type Quota struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	FormID     uuid.UUID
	LimitValue int64
	PeriodType PeriodType
	IsActive   bool
}

// Decision is the outcome of an admission check. Rejection is a result, not
// an error: callers branch on Accepted.
type Decision struct {
	Accepted bool
	// ExhaustedQuotaID identifies the quota that rejected the submission.
	// uuid.Nil when Accepted is true.
	ExhaustedQuotaID uuid.UUID
}
