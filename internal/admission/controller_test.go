package admission_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surveypulse/surveypulse/internal/admission"
	"github.com/surveypulse/surveypulse/internal/domain"
	"github.com/surveypulse/surveypulse/internal/store/memory"
)

var testTime = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newQuota(tenantID, formID uuid.UUID, limit int64, period domain.PeriodType) domain.Quota {
	return domain.Quota{
		ID:         uuid.New(),
		TenantID:   tenantID,
		FormID:     formID,
		LimitValue: limit,
		PeriodType: period,
		IsActive:   true,
	}
}

func TestAdmit_NoQuotasAcceptsUnconditionally(t *testing.T) {
	tenantID, formID := uuid.New(), uuid.New()
	cfg := memory.NewConfigSource()
	counters := memory.NewCounterStore()
	ctrl := admission.NewController(cfg, counters, discardLogger())

	dec, err := ctrl.Admit(context.Background(), tenantID, formID, testTime)
	require.NoError(t, err)
	assert.True(t, dec.Accepted)
}

func TestAdmit_DailyQuotaScenario(t *testing.T) {
	// Quota{limit=2, day}: three same-day submissions decide [true, true, false].
	tenantID, formID := uuid.New(), uuid.New()
	quota := newQuota(tenantID, formID, 2, domain.PeriodDay)

	cfg := memory.NewConfigSource()
	cfg.SetQuotas(tenantID, formID, []domain.Quota{quota})
	counters := memory.NewCounterStore()
	ctrl := admission.NewController(cfg, counters, discardLogger())

	var decisions []bool
	for i := 0; i < 3; i++ {
		dec, err := ctrl.Admit(context.Background(), tenantID, formID, testTime)
		require.NoError(t, err)
		decisions = append(decisions, dec.Accepted)
	}
	assert.Equal(t, []bool{true, true, false}, decisions)

	count, err := counters.Count(context.Background(), quota.ID, "2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestAdmit_ReportsExhaustedQuota(t *testing.T) {
	tenantID, formID := uuid.New(), uuid.New()
	quota := newQuota(tenantID, formID, 1, domain.PeriodDay)

	cfg := memory.NewConfigSource()
	cfg.SetQuotas(tenantID, formID, []domain.Quota{quota})
	ctrl := admission.NewController(cfg, memory.NewCounterStore(), discardLogger())

	_, err := ctrl.Admit(context.Background(), tenantID, formID, testTime)
	require.NoError(t, err)

	dec, err := ctrl.Admit(context.Background(), tenantID, formID, testTime)
	require.NoError(t, err)
	assert.False(t, dec.Accepted)
	assert.Equal(t, quota.ID, dec.ExhaustedQuotaID)
}

func TestAdmit_NextPeriodResetsQuota(t *testing.T) {
	tenantID, formID := uuid.New(), uuid.New()
	quota := newQuota(tenantID, formID, 1, domain.PeriodDay)

	cfg := memory.NewConfigSource()
	cfg.SetQuotas(tenantID, formID, []domain.Quota{quota})
	ctrl := admission.NewController(cfg, memory.NewCounterStore(), discardLogger())

	dec, err := ctrl.Admit(context.Background(), tenantID, formID, testTime)
	require.NoError(t, err)
	require.True(t, dec.Accepted)

	dec, err = ctrl.Admit(context.Background(), tenantID, formID, testTime)
	require.NoError(t, err)
	require.False(t, dec.Accepted)

	dec, err = ctrl.Admit(context.Background(), tenantID, formID, testTime.Add(24*time.Hour))
	require.NoError(t, err)
	assert.True(t, dec.Accepted)
}

func TestAdmit_RejectionRollsBackOtherCounters(t *testing.T) {
	// A wide monthly quota passes first, then the tight daily quota
	// rejects. The monthly counter must be rolled back.
	tenantID, formID := uuid.New(), uuid.New()
	daily := newQuota(tenantID, formID, 1, domain.PeriodDay)
	monthly := newQuota(tenantID, formID, 100, domain.PeriodMonth)

	cfg := memory.NewConfigSource()
	cfg.SetQuotas(tenantID, formID, []domain.Quota{monthly, daily})
	counters := memory.NewCounterStore()
	ctrl := admission.NewController(cfg, counters, discardLogger())

	dec, err := ctrl.Admit(context.Background(), tenantID, formID, testTime)
	require.NoError(t, err)
	require.True(t, dec.Accepted)

	dec, err = ctrl.Admit(context.Background(), tenantID, formID, testTime)
	require.NoError(t, err)
	require.False(t, dec.Accepted)
	assert.Equal(t, daily.ID, dec.ExhaustedQuotaID)

	monthCount, err := counters.Count(context.Background(), monthly.ID, "2026-08")
	require.NoError(t, err)
	assert.Equal(t, int64(1), monthCount, "rejected submission must not count against the monthly quota")

	dayCount, err := counters.Count(context.Background(), daily.ID, "2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, int64(1), dayCount)
}

func TestAdmit_TightestQuotaCheckedFirst(t *testing.T) {
	// Both quotas are exhausted; the one with the smaller limit must be
	// the one reported.
	tenantID, formID := uuid.New(), uuid.New()
	tight := newQuota(tenantID, formID, 1, domain.PeriodDay)
	wide := newQuota(tenantID, formID, 2, domain.PeriodDay)

	cfg := memory.NewConfigSource()
	cfg.SetQuotas(tenantID, formID, []domain.Quota{wide, tight})
	counters := memory.NewCounterStore()
	ctrl := admission.NewController(cfg, counters, discardLogger())

	dec, err := ctrl.Admit(context.Background(), tenantID, formID, testTime)
	require.NoError(t, err)
	require.True(t, dec.Accepted)

	dec, err = ctrl.Admit(context.Background(), tenantID, formID, testTime)
	require.NoError(t, err)
	require.False(t, dec.Accepted)
	assert.Equal(t, tight.ID, dec.ExhaustedQuotaID)

	// The wide quota was never touched on the failing attempt.
	wideCount, err := counters.Count(context.Background(), wide.ID, "2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, int64(1), wideCount)
}

func TestAdmit_ConcurrentAdmissionsHonorLimitExactly(t *testing.T) {
	// limit=N means exactly N concurrent admissions succeed in one period,
	// regardless of concurrency degree.
	tenantID, formID := uuid.New(), uuid.New()
	const limit = 20
	quota := newQuota(tenantID, formID, limit, domain.PeriodDay)

	cfg := memory.NewConfigSource()
	cfg.SetQuotas(tenantID, formID, []domain.Quota{quota})
	counters := memory.NewCounterStore()
	ctrl := admission.NewController(cfg, counters, discardLogger())

	const attempts = 200
	var accepted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dec, err := ctrl.Admit(context.Background(), tenantID, formID, testTime)
			assert.NoError(t, err)
			if dec.Accepted {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(limit), accepted.Load())

	count, err := counters.Count(context.Background(), quota.ID, "2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, int64(limit), count)
}

func TestAdmit_ConfigFailureIsFatal(t *testing.T) {
	cause := errors.New("database unreachable")
	cfg := &failingConfigSource{err: cause}
	ctrl := admission.NewController(cfg, memory.NewCounterStore(), discardLogger())

	_, err := ctrl.Admit(context.Background(), uuid.New(), uuid.New(), testTime)
	require.Error(t, err)
	assert.True(t, domain.IsConfigError(err))
	assert.ErrorIs(t, err, cause)
}

func TestAdmit_UnknownPeriodTypeIsFatal(t *testing.T) {
	// Without the guard, an unknown period type would count against the
	// "total" bucket instead of its configured window.
	tenantID, formID := uuid.New(), uuid.New()
	tight := newQuota(tenantID, formID, 5, domain.PeriodDay)
	broken := newQuota(tenantID, formID, 50, domain.PeriodType("fortnight"))

	cfg := memory.NewConfigSource()
	cfg.SetQuotas(tenantID, formID, []domain.Quota{tight, broken})
	counters := memory.NewCounterStore()
	ctrl := admission.NewController(cfg, counters, discardLogger())

	_, err := ctrl.Admit(context.Background(), tenantID, formID, testTime)
	require.Error(t, err)
	assert.True(t, domain.IsConfigError(err))
	assert.Contains(t, err.Error(), "fortnight")

	// The tight quota incremented before the broken one was hit; the
	// failed attempt must not leave that count behind.
	count, err := counters.Count(context.Background(), tight.ID, "2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	count, err = counters.Count(context.Background(), broken.ID, "total")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestAdmit_CancellationRollsBackIncrements(t *testing.T) {
	tenantID, formID := uuid.New(), uuid.New()
	first := newQuota(tenantID, formID, 5, domain.PeriodDay)
	second := newQuota(tenantID, formID, 50, domain.PeriodMonth)

	cfg := memory.NewConfigSource()
	cfg.SetQuotas(tenantID, formID, []domain.Quota{first, second})
	counters := memory.NewCounterStore()
	cancelling := &cancelAfterFirstIncrement{CounterStore: counters}
	ctrl := admission.NewController(cfg, cancelling, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cancelling.cancel = cancel

	_, err := ctrl.Admit(ctx, tenantID, formID, testTime)
	require.ErrorIs(t, err, context.Canceled)

	// The increment applied before cancellation was rolled back.
	count, err := counters.Count(context.Background(), first.ID, "2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestAdmit_ContentionIsRetriedNotSurfaced(t *testing.T) {
	tenantID, formID := uuid.New(), uuid.New()
	quota := newQuota(tenantID, formID, 5, domain.PeriodDay)

	cfg := memory.NewConfigSource()
	cfg.SetQuotas(tenantID, formID, []domain.Quota{quota})
	flaky := &contendingCounterStore{
		CounterStore: memory.NewCounterStore(),
		failures:     2,
	}
	ctrl := admission.NewController(cfg, flaky, discardLogger())

	dec, err := ctrl.Admit(context.Background(), tenantID, formID, testTime)
	require.NoError(t, err)
	assert.True(t, dec.Accepted)
	assert.GreaterOrEqual(t, flaky.calls.Load(), int64(3))
}

// --- test doubles ---

type failingConfigSource struct {
	err error
}

func (f *failingConfigSource) ActiveQuotas(context.Context, uuid.UUID, uuid.UUID) ([]domain.Quota, error) {
	return nil, f.err
}

func (f *failingConfigSource) PersonaRules(context.Context, uuid.UUID) ([]domain.PersonaRule, error) {
	return nil, f.err
}

func (f *failingConfigSource) AlertThresholds(context.Context, uuid.UUID, uuid.UUID) (domain.AlertThresholds, error) {
	return domain.AlertThresholds{}, f.err
}

// contendingCounterStore fails the first N increments with a contention error.
type contendingCounterStore struct {
	*memory.CounterStore
	failures int64
	calls    atomic.Int64
}

func (s *contendingCounterStore) IncrementIfBelow(ctx context.Context, quotaID uuid.UUID, periodKey string, limit int64) (int64, bool, error) {
	if s.calls.Add(1) <= s.failures {
		return 0, false, domain.NewContentionError("increment", errors.New("simulated race"))
	}
	return s.CounterStore.IncrementIfBelow(ctx, quotaID, periodKey, limit)
}

// cancelAfterFirstIncrement cancels the admission context right after the
// first successful increment, forcing the rollback path.
type cancelAfterFirstIncrement struct {
	*memory.CounterStore
	cancel context.CancelFunc
	done   atomic.Bool
}

func (s *cancelAfterFirstIncrement) IncrementIfBelow(ctx context.Context, quotaID uuid.UUID, periodKey string, limit int64) (int64, bool, error) {
	count, ok, err := s.CounterStore.IncrementIfBelow(ctx, quotaID, periodKey, limit)
	if ok && !s.done.Swap(true) {
		s.cancel()
	}
	return count, ok, err
}
