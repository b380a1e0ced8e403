package memory

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/surveypulse/surveypulse/internal/domain"
)

// AlertStore keeps CTL alerts in memory with one open alert per correlation
// key.
type AlertStore struct {
	mu    sync.Mutex
	clock clockwork.Clock
	open  map[domain.AlertKey]*domain.CTLAlert
	byID  map[uuid.UUID]*domain.CTLAlert
}

func NewAlertStore(clock clockwork.Clock) *AlertStore {
	return &AlertStore{
		clock: clock,
		open:  make(map[domain.AlertKey]*domain.CTLAlert),
		byID:  make(map[uuid.UUID]*domain.CTLAlert),
	}
}

func (s *AlertStore) FindOrCreateOpen(_ context.Context, key domain.AlertKey, candidate domain.CTLAlert) (domain.CTLAlert, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.open[key]; ok {
		return *existing, false, nil
	}

	candidate.Status = domain.AlertStatusOpen
	stored := candidate
	s.open[key] = &stored
	s.byID[stored.ID] = &stored
	return stored, true, nil
}

func (s *AlertStore) Escalate(_ context.Context, key domain.AlertKey, scoreValue float64, level domain.AlertLevel, notes string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.open[key]
	if !ok {
		return false, nil
	}
	if math.Abs(scoreValue) <= math.Abs(alert.ScoreValue) {
		return false, nil
	}

	alert.ScoreValue = scoreValue
	alert.AlertLevel = level
	alert.Notes = notes
	alert.UpdatedAt = s.clock.Now().UTC()
	return true, nil
}

func (s *AlertStore) SetTicket(_ context.Context, alertID uuid.UUID, ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.byID[alertID]
	if !ok {
		return domain.ErrAlertNotFound
	}
	if alert.TicketID != "" {
		return nil
	}
	alert.TicketID = ticketID
	alert.UpdatedAt = s.clock.Now().UTC()
	return nil
}

func (s *AlertStore) GetOpen(_ context.Context, key domain.AlertKey) (domain.CTLAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.open[key]
	if !ok {
		return domain.CTLAlert{}, domain.ErrAlertNotFound
	}
	return *alert, nil
}

func (s *AlertStore) Resolve(_ context.Context, key domain.AlertKey, resolvedBy string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.open[key]
	if !ok {
		return domain.ErrAlertNotFound
	}

	resolvedAt := at.UTC()
	alert.Status = domain.AlertStatusResolved
	alert.ResolvedAt = &resolvedAt
	alert.ResolvedBy = resolvedBy
	alert.UpdatedAt = s.clock.Now().UTC()
	delete(s.open, key)
	return nil
}
