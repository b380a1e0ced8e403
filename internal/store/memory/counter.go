// Package memory provides in-process implementations of the counter, alert,
// and configuration stores for single-instance deployments and tests. Unlike
// the Redis stores these are not shared across instances, but they keep the
// same atomicity contract: every method is linearizable per key.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type counterKey struct {
	QuotaID   uuid.UUID
	PeriodKey string
}

// CounterStore keeps quota period counters in a mutex-guarded map.
type CounterStore struct {
	mu     sync.Mutex
	counts map[counterKey]int64
}

func NewCounterStore() *CounterStore {
	return &CounterStore{counts: make(map[counterKey]int64)}
}

func (s *CounterStore) IncrementIfBelow(_ context.Context, quotaID uuid.UUID, periodKey string, limit int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := counterKey{QuotaID: quotaID, PeriodKey: periodKey}
	count := s.counts[k]
	if count >= limit {
		return count, false, nil
	}
	count++
	s.counts[k] = count
	return count, true, nil
}

func (s *CounterStore) Decrement(_ context.Context, quotaID uuid.UUID, periodKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := counterKey{QuotaID: quotaID, PeriodKey: periodKey}
	if s.counts[k] > 0 {
		s.counts[k]--
	}
	return nil
}

func (s *CounterStore) Count(_ context.Context, quotaID uuid.UUID, periodKey string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[counterKey{QuotaID: quotaID, PeriodKey: periodKey}], nil
}
