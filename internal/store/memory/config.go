package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/surveypulse/surveypulse/internal/domain"
)

type formKey struct {
	TenantID uuid.UUID
	FormID   uuid.UUID
}

// ConfigSource serves static tenant configuration from memory. Used in
// single-instance mode and as the configuration fake in tests.
type ConfigSource struct {
	mu         sync.RWMutex
	quotas     map[formKey][]domain.Quota
	rules      map[uuid.UUID][]domain.PersonaRule
	thresholds map[formKey]domain.AlertThresholds
}

func NewConfigSource() *ConfigSource {
	return &ConfigSource{
		quotas:     make(map[formKey][]domain.Quota),
		rules:      make(map[uuid.UUID][]domain.PersonaRule),
		thresholds: make(map[formKey]domain.AlertThresholds),
	}
}

func (s *ConfigSource) SetQuotas(tenantID, formID uuid.UUID, quotas []domain.Quota) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotas[formKey{tenantID, formID}] = quotas
}

func (s *ConfigSource) SetPersonaRules(tenantID uuid.UUID, rules []domain.PersonaRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[tenantID] = rules
}

func (s *ConfigSource) SetAlertThresholds(tenantID, formID uuid.UUID, th domain.AlertThresholds) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thresholds[formKey{tenantID, formID}] = th
}

func (s *ConfigSource) ActiveQuotas(_ context.Context, tenantID, formID uuid.UUID) ([]domain.Quota, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []domain.Quota
	for _, q := range s.quotas[formKey{tenantID, formID}] {
		if q.IsActive {
			active = append(active, q)
		}
	}
	return active, nil
}

func (s *ConfigSource) PersonaRules(_ context.Context, tenantID uuid.UUID) ([]domain.PersonaRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules[tenantID], nil
}

func (s *ConfigSource) AlertThresholds(_ context.Context, tenantID, formID uuid.UUID) (domain.AlertThresholds, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.thresholds[formKey{tenantID, formID}], nil
}
