// Package admission gates submissions against configured quotas before any
// further processing, with exactly-once counting under concurrent arrivals.
package admission

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/surveypulse/surveypulse/internal/domain"
	"github.com/surveypulse/surveypulse/internal/metrics"
	"github.com/surveypulse/surveypulse/internal/platform/retry"
)

var defaultRetryPolicy = retry.Policy{
	MaxAttempts:    5,
	InitialBackoff: 5 * time.Millisecond,
	MaxBackoff:     100 * time.Millisecond,
}

// Controller evaluates quotas for a submission and atomically decides
// accept/reject, updating period counters through the CounterStore.
type Controller struct {
	config   domain.ConfigSource
	counters domain.CounterStore
	policy   retry.Policy
	log      *slog.Logger
}

func NewController(config domain.ConfigSource, counters domain.CounterStore, log *slog.Logger) *Controller {
	return &Controller{
		config:   config,
		counters: counters,
		policy:   defaultRetryPolicy,
		log:      log,
	}
}

type touched struct {
	quotaID   uuid.UUID
	periodKey string
}

// Admit checks every active quota for (tenantID, formID) against the period
// derived from occurredAt. On acceptance, each quota's counter has been
// incremented exactly once. On rejection or cancellation, every counter
// touched by this attempt is rolled back so a rejected submission never
// counts against any quota.
//
// occurredAt is the event timestamp, not wall-clock at call time, so the
// decision is deterministic and replayable.
func (c *Controller) Admit(ctx context.Context, tenantID, formID uuid.UUID, occurredAt time.Time) (domain.Decision, error) {
	quotas, err := c.config.ActiveQuotas(ctx, tenantID, formID)
	if err != nil {
		return domain.Decision{}, domain.NewConfigError("load quotas", err)
	}

	if len(quotas) == 0 {
		metrics.AdmissionDecisions.WithLabelValues("accepted").Inc()
		return domain.Decision{Accepted: true}, nil
	}

	// Tightest constraint first so the most likely rejection costs the
	// fewest increments. Ties break on quota ID to keep the order stable
	// across configuration reloads.
	quotas = slices.Clone(quotas)
	slices.SortFunc(quotas, func(a, b domain.Quota) int {
		if n := cmp.Compare(a.LimitValue, b.LimitValue); n != 0 {
			return n
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})

	var incremented []touched
	for _, q := range quotas {
		if !q.IsActive {
			continue
		}

		if err := ctx.Err(); err != nil {
			c.rollback(ctx, incremented)
			return domain.Decision{}, err
		}

		// An unrecognized period type would alias into the "total" bucket
		// and count submissions against the wrong window.
		if !q.PeriodType.Valid() {
			c.rollback(ctx, incremented)
			return domain.Decision{}, domain.NewConfigError(
				fmt.Sprintf("quota %s has unknown period type %q", q.ID, q.PeriodType), nil)
		}

		key := PeriodKey(q.PeriodType, occurredAt)

		// Exhaustion is a result, not an error, so it must not trigger a
		// retry: only contention errors loop here.
		applied := false
		_, err := retry.Do(ctx, c.retryPolicy(), classifyStoreErr, func() (int64, error) {
			count, a, err := c.counters.IncrementIfBelow(ctx, q.ID, key, q.LimitValue)
			applied = a
			return count, err
		})
		if err != nil {
			c.rollback(ctx, incremented)
			return domain.Decision{}, err
		}

		if !applied {
			c.rollback(ctx, incremented)
			metrics.AdmissionDecisions.WithLabelValues("rejected").Inc()
			metrics.QuotaExhaustions.WithLabelValues(q.ID.String()).Inc()
			c.log.InfoContext(ctx, "submission rejected by quota",
				"quota_id", q.ID, "period_key", key, "limit", q.LimitValue)
			return domain.Decision{Accepted: false, ExhaustedQuotaID: q.ID}, nil
		}

		incremented = append(incremented, touched{quotaID: q.ID, periodKey: key})
	}

	metrics.AdmissionDecisions.WithLabelValues("accepted").Inc()
	return domain.Decision{Accepted: true}, nil
}

// rollback undoes the increments of a failed admission attempt. It runs on a
// context detached from cancellation: the whole point is to repair counters
// when the original context died.
func (c *Controller) rollback(ctx context.Context, incremented []touched) {
	if len(incremented) == 0 {
		return
	}
	detached := context.WithoutCancel(ctx)
	for i := len(incremented) - 1; i >= 0; i-- {
		t := incremented[i]
		err := retry.DoVoid(detached, c.retryPolicy(), classifyStoreErr, func() error {
			return c.counters.Decrement(detached, t.quotaID, t.periodKey)
		})
		if err != nil {
			c.log.ErrorContext(ctx, "counter rollback failed",
				"quota_id", t.quotaID, "period_key", t.periodKey, "error", err)
			continue
		}
		metrics.CounterRollbacks.Inc()
	}
}

func (c *Controller) retryPolicy() retry.Policy {
	p := c.policy
	p.OnRetry = func(_ int, _ error, _ time.Duration) {
		metrics.StoreRetries.WithLabelValues("counter").Inc()
	}
	return p
}

func classifyStoreErr(err error) retry.Action {
	if domain.IsContention(err) {
		return retry.Again
	}
	return retry.Stop
}
