package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surveypulse/surveypulse/internal/domain"
)

func newTestAlert(key domain.AlertKey, score float64) domain.CTLAlert {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return domain.CTLAlert{
		ID:           uuid.New(),
		TenantID:     key.TenantID,
		FormID:       key.FormID,
		SubmissionID: uuid.New(),
		AlertLevel:   domain.AlertLevelMedium,
		ScoreValue:   score,
		ScoreType:    "sentiment",
		Sentiment:    domain.SentimentNegative,
		Status:       domain.AlertStatusOpen,
		Notes:        "negative sentiment detected",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestAlertStore_FindOrCreateOpen(t *testing.T) {
	client := setupTestClient(t)
	store := NewAlertStore(client, clockwork.NewRealClock())
	ctx := context.Background()

	key := domain.AlertKey{TenantID: uuid.New(), FormID: uuid.New(), Dimension: "contact-1"}
	candidate := newTestAlert(key, -0.6)

	stored, created, err := store.FindOrCreateOpen(ctx, key, candidate)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, candidate.ID, stored.ID)

	// Second candidate for the same key is dropped in favour of the first.
	second := newTestAlert(key, -0.9)
	stored, created, err = store.FindOrCreateOpen(ctx, key, second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, candidate.ID, stored.ID)
	assert.InDelta(t, -0.6, stored.ScoreValue, 1e-9)

	// A different dimension opens its own alert.
	other := domain.AlertKey{TenantID: key.TenantID, FormID: key.FormID, Dimension: "contact-2"}
	_, created, err = store.FindOrCreateOpen(ctx, other, newTestAlert(other, -0.5))
	require.NoError(t, err)
	assert.True(t, created)
}

func TestAlertStore_EscalateOnlyOnStrictlyWorseScore(t *testing.T) {
	client := setupTestClient(t)
	store := NewAlertStore(client, clockwork.NewRealClock())
	ctx := context.Background()

	key := domain.AlertKey{TenantID: uuid.New(), FormID: uuid.New(), Dimension: "contact-1"}
	_, _, err := store.FindOrCreateOpen(ctx, key, newTestAlert(key, -0.6))
	require.NoError(t, err)

	// Equal magnitude does not escalate.
	applied, err := store.Escalate(ctx, key, -0.6, domain.AlertLevelHigh, "same")
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = store.Escalate(ctx, key, -0.85, domain.AlertLevelHigh, "worse")
	require.NoError(t, err)
	assert.True(t, applied)

	alert, err := store.GetOpen(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertLevelHigh, alert.AlertLevel)
	assert.InDelta(t, -0.85, alert.ScoreValue, 1e-9)
	assert.Equal(t, "worse", alert.Notes)
	assert.Equal(t, domain.AlertStatusOpen, alert.Status)
}

func TestAlertStore_SetTicketAtMostOnce(t *testing.T) {
	client := setupTestClient(t)
	store := NewAlertStore(client, clockwork.NewRealClock())
	ctx := context.Background()

	key := domain.AlertKey{TenantID: uuid.New(), FormID: uuid.New(), Dimension: "contact-1"}
	alert := newTestAlert(key, -0.6)
	_, _, err := store.FindOrCreateOpen(ctx, key, alert)
	require.NoError(t, err)

	require.NoError(t, store.SetTicket(ctx, alert.ID, "TCK-100"))
	require.NoError(t, store.SetTicket(ctx, alert.ID, "TCK-999"))

	got, err := store.GetOpen(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "TCK-100", got.TicketID)

	assert.ErrorIs(t, store.SetTicket(ctx, uuid.New(), "TCK-1"), domain.ErrAlertNotFound)
}

func TestAlertStore_ResolveReopensDedupKey(t *testing.T) {
	client := setupTestClient(t)
	store := NewAlertStore(client, clockwork.NewRealClock())
	ctx := context.Background()

	key := domain.AlertKey{TenantID: uuid.New(), FormID: uuid.New(), Dimension: "contact-1"}
	first := newTestAlert(key, -0.6)
	_, _, err := store.FindOrCreateOpen(ctx, key, first)
	require.NoError(t, err)

	resolvedAt := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Resolve(ctx, key, "agent@example.com", resolvedAt))

	_, err = store.GetOpen(ctx, key)
	assert.ErrorIs(t, err, domain.ErrAlertNotFound)

	// The next qualifying submission opens a fresh alert.
	second := newTestAlert(key, -0.7)
	stored, created, err := store.FindOrCreateOpen(ctx, key, second)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, second.ID, stored.ID)

	assert.ErrorIs(t, store.Resolve(ctx, domain.AlertKey{
		TenantID: uuid.New(), FormID: uuid.New(), Dimension: "nobody",
	}, "agent", resolvedAt), domain.ErrAlertNotFound)
}

func TestAlertStore_ConcurrentFindOrCreateYieldsOneAlert(t *testing.T) {
	client := setupTestClient(t)
	store := NewAlertStore(client, clockwork.NewRealClock())
	ctx := context.Background()

	key := domain.AlertKey{TenantID: uuid.New(), FormID: uuid.New(), Dimension: "contact-1"}

	const racers = 50
	var created atomic.Int64
	ids := make([]uuid.UUID, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stored, wasCreated, err := store.FindOrCreateOpen(ctx, key, newTestAlert(key, -0.6))
			assert.NoError(t, err)
			if wasCreated {
				created.Add(1)
			}
			ids[i] = stored.ID
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), created.Load())
	for i := 1; i < racers; i++ {
		assert.Equal(t, ids[0], ids[i])
	}
}
