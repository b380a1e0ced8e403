package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surveypulse/surveypulse/internal/admission"
	"github.com/surveypulse/surveypulse/internal/classify"
	"github.com/surveypulse/surveypulse/internal/correlate"
	"github.com/surveypulse/surveypulse/internal/domain"
	"github.com/surveypulse/surveypulse/internal/store/memory"
)

type fixture struct {
	processor *Processor
	config    *memory.ConfigSource
	counters  *memory.CounterStore
	alerts    *memory.AlertStore
	tickets   *stubTickets
	clock     *clockwork.FakeClock
	tenantID  uuid.UUID
	formID    uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	f := &fixture{
		config:   memory.NewConfigSource(),
		counters: memory.NewCounterStore(),
		alerts:   memory.NewAlertStore(clock),
		tickets:  &stubTickets{},
		clock:    clock,
		tenantID: uuid.New(),
		formID:   uuid.New(),
	}
	ctrl := admission.NewController(f.config, f.counters, log)
	classifier := classify.NewEngine(classify.NewLexiconAnalyzer(), f.config, log)
	correlator := correlate.NewEngine(f.alerts, f.tickets, clock, log)
	f.processor = NewProcessor(ctrl, classifier, correlator, f.config, 2, log)
	return f
}

func (f *fixture) submission(text string) *domain.Submission {
	return &domain.Submission{
		ID:        uuid.New(),
		TenantID:  f.tenantID,
		FormID:    f.formID,
		ContactID: "contact-1",
		Data:      map[string]any{"feedback": text},
		CreatedAt: f.clock.Now(),
	}
}

type stubTickets struct{ created int }

func (s *stubTickets) CreateTicket(context.Context, domain.CTLAlert) (string, error) {
	s.created++
	return "TCK-1", nil
}

func TestProcess_AcceptClassifyNoAlert(t *testing.T) {
	f := newFixture(t)
	sub := f.submission("this product is great, I love it")

	result, err := f.processor.Process(context.Background(), sub)
	require.NoError(t, err)

	assert.True(t, result.Decision.Accepted)
	assert.Equal(t, domain.SentimentPositive, result.Classification.Sentiment.Sentiment)
	assert.Equal(t, domain.GeneralPersonaID, result.Classification.Persona.PersonaID)
	assert.False(t, result.Correlation.AlertCreated)
	require.NotNil(t, sub.Analysis)
}

func TestProcess_DailyQuotaExhausted(t *testing.T) {
	f := newFixture(t)
	quotaID := uuid.New()
	f.config.SetQuotas(f.tenantID, f.formID, []domain.Quota{{
		ID:         quotaID,
		TenantID:   f.tenantID,
		FormID:     f.formID,
		LimitValue: 2,
		PeriodType: domain.PeriodDay,
		IsActive:   true,
	}})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		result, err := f.processor.Process(ctx, f.submission("fine"))
		require.NoError(t, err)
		assert.True(t, result.Decision.Accepted)
	}

	result, err := f.processor.Process(ctx, f.submission("fine"))
	require.NoError(t, err)
	assert.False(t, result.Decision.Accepted)
	assert.Equal(t, quotaID, result.Decision.ExhaustedQuotaID)

	// Next day the counter keys change and submissions flow again.
	f.clock.Advance(24 * time.Hour)
	result, err = f.processor.Process(ctx, f.submission("fine"))
	require.NoError(t, err)
	assert.True(t, result.Decision.Accepted)
}

func TestProcess_NegativeSubmissionRaisesAlertWithTicket(t *testing.T) {
	f := newFixture(t)
	f.config.SetAlertThresholds(f.tenantID, f.formID, domain.AlertThresholds{
		NegativeScore: -0.3,
	})

	result, err := f.processor.Process(context.Background(), f.submission(
		"terrible awful experience, I am very angry and disappointed"))
	require.NoError(t, err)

	require.True(t, result.Correlation.AlertCreated)
	assert.Equal(t, "TCK-1", result.Correlation.TicketID)
	assert.Equal(t, 1, f.tickets.created)

	// Same contact again: the open alert is reused, no second ticket.
	result, err = f.processor.Process(context.Background(), f.submission(
		"still terrible, still angry"))
	require.NoError(t, err)
	assert.False(t, result.Correlation.AlertCreated)
	assert.True(t, result.Correlation.ReusedExisting)
	assert.Equal(t, 1, f.tickets.created)
}

func TestProcess_CancelledBeforeAdmissionRollsBack(t *testing.T) {
	f := newFixture(t)
	f.config.SetQuotas(f.tenantID, f.formID, []domain.Quota{{
		ID:         uuid.New(),
		TenantID:   f.tenantID,
		FormID:     f.formID,
		LimitValue: 5,
		PeriodType: domain.PeriodDay,
		IsActive:   true,
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.processor.Process(ctx, f.submission("hello"))
	require.Error(t, err)

	// The cancelled run must not consume quota.
	for i := 0; i < 5; i++ {
		result, err := f.processor.Process(context.Background(), f.submission("hello"))
		require.NoError(t, err)
		assert.True(t, result.Decision.Accepted)
	}
}

func TestProcessor_EnqueueRunsJobs(t *testing.T) {
	f := newFixture(t)
	quotaID := uuid.New()
	f.config.SetQuotas(f.tenantID, f.formID, []domain.Quota{{
		ID:         quotaID,
		TenantID:   f.tenantID,
		FormID:     f.formID,
		LimitValue: 3,
		PeriodType: domain.PeriodDay,
		IsActive:   true,
	}})

	f.processor.Start()
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, f.processor.Enqueue(ctx, f.submission("hello")))
	}
	f.processor.Stop()

	// Exactly the quota limit was admitted regardless of worker interleaving.
	count, err := f.counters.Count(ctx, quotaID, "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestCachedConfigSource_ServesStaleUntilTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	backing := memory.NewConfigSource()
	tenantID, formID := uuid.New(), uuid.New()
	quota := domain.Quota{ID: uuid.New(), LimitValue: 10, PeriodType: domain.PeriodDay, IsActive: true}
	backing.SetQuotas(tenantID, formID, []domain.Quota{quota})

	cached := NewCachedConfigSource(backing, 10*time.Second, clock)
	ctx := context.Background()

	quotas, err := cached.ActiveQuotas(ctx, tenantID, formID)
	require.NoError(t, err)
	require.Len(t, quotas, 1)

	// Update the backing source: the cache keeps serving the old value.
	backing.SetQuotas(tenantID, formID, nil)
	quotas, err = cached.ActiveQuotas(ctx, tenantID, formID)
	require.NoError(t, err)
	assert.Len(t, quotas, 1)

	clock.Advance(11 * time.Second)
	quotas, err = cached.ActiveQuotas(ctx, tenantID, formID)
	require.NoError(t, err)
	assert.Empty(t, quotas)
}

func TestCachedConfigSource_InvalidateForcesRefresh(t *testing.T) {
	clock := clockwork.NewFakeClock()
	backing := memory.NewConfigSource()
	tenantID, formID := uuid.New(), uuid.New()
	backing.SetAlertThresholds(tenantID, formID, domain.AlertThresholds{NegativeScore: -0.5})

	cached := NewCachedConfigSource(backing, time.Minute, clock)
	ctx := context.Background()

	th, err := cached.AlertThresholds(ctx, tenantID, formID)
	require.NoError(t, err)
	assert.InDelta(t, -0.5, th.NegativeScore, 1e-9)

	backing.SetAlertThresholds(tenantID, formID, domain.AlertThresholds{NegativeScore: -0.7})
	cached.Invalidate(tenantID, formID)

	th, err = cached.AlertThresholds(ctx, tenantID, formID)
	require.NoError(t, err)
	assert.InDelta(t, -0.7, th.NegativeScore, 1e-9)
}

// gatedConfigSource blocks the first quota load until released so a test can
// pile up concurrent cache misses behind it.
type gatedConfigSource struct {
	inner   domain.ConfigSource
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	loads   atomic.Int64
}

func newGatedConfigSource(inner domain.ConfigSource) *gatedConfigSource {
	return &gatedConfigSource{
		inner:   inner,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *gatedConfigSource) ActiveQuotas(ctx context.Context, tenantID, formID uuid.UUID) ([]domain.Quota, error) {
	s.loads.Add(1)
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.inner.ActiveQuotas(ctx, tenantID, formID)
}

func (s *gatedConfigSource) PersonaRules(ctx context.Context, tenantID uuid.UUID) ([]domain.PersonaRule, error) {
	return s.inner.PersonaRules(ctx, tenantID)
}

func (s *gatedConfigSource) AlertThresholds(ctx context.Context, tenantID, formID uuid.UUID) (domain.AlertThresholds, error) {
	return s.inner.AlertThresholds(ctx, tenantID, formID)
}

func TestCachedConfigSource_CollapsesConcurrentMisses(t *testing.T) {
	clock := clockwork.NewFakeClock()
	backing := memory.NewConfigSource()
	tenantID, formID := uuid.New(), uuid.New()
	quota := domain.Quota{ID: uuid.New(), LimitValue: 10, PeriodType: domain.PeriodDay, IsActive: true}
	backing.SetQuotas(tenantID, formID, []domain.Quota{quota})

	gated := newGatedConfigSource(backing)
	cached := NewCachedConfigSource(gated, time.Minute, clock)
	ctx := context.Background()

	var wg sync.WaitGroup
	load := func() {
		defer wg.Done()
		quotas, err := cached.ActiveQuotas(ctx, tenantID, formID)
		assert.NoError(t, err)
		assert.Len(t, quotas, 1)
	}

	wg.Add(1)
	go load()
	<-gated.entered

	// The leader is inside the source now, so every further miss on the
	// same form must join its flight instead of loading again.
	for i := 0; i < 19; i++ {
		wg.Add(1)
		go load()
	}
	time.Sleep(50 * time.Millisecond)
	close(gated.release)
	wg.Wait()

	assert.EqualValues(t, 1, gated.loads.Load())

	// A warm cache is served without touching the source at all.
	quotas, err := cached.ActiveQuotas(ctx, tenantID, formID)
	require.NoError(t, err)
	assert.Len(t, quotas, 1)
	assert.EqualValues(t, 1, gated.loads.Load())
}
