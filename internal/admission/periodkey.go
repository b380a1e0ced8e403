package admission

import (
	"fmt"
	"time"

	"github.com/surveypulse/surveypulse/internal/domain"
)

// PeriodKey derives the deterministic counter bucket for a quota period from
// the event timestamp. All buckets are computed in UTC so the same instant
// maps to the same key regardless of where it was observed.
//
//	day   -> "2026-08-28"
//	week  -> "2026-W35" (ISO 8601 week)
//	month -> "2026-08"
//	total -> "total"
func PeriodKey(p domain.PeriodType, at time.Time) string {
	t := at.UTC()
	switch p {
	case domain.PeriodDay:
		return t.Format("2006-01-02")
	case domain.PeriodWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case domain.PeriodMonth:
		return t.Format("2006-01")
	default:
		return "total"
	}
}
