package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/surveypulse/surveypulse/internal/domain"
)

// CachedConfigSource wraps a ConfigSource with a TTL cache keyed by
// (tenant, form). Quotas, persona rules, and thresholds change rarely
// compared to submission volume, so a short TTL removes almost all
// config reads from the hot path while keeping updates visible within
// one TTL window.
type CachedConfigSource struct {
	source domain.ConfigSource
	ttl    time.Duration
	clock  clockwork.Clock

	// group collapses concurrent misses for the same key into one source
	// load, so an expired entry under N workers costs one read, not N.
	group singleflight.Group

	mu    sync.RWMutex
	forms map[formKey]*formEntry
	rules map[uuid.UUID]*rulesEntry
}

type formKey struct {
	tenantID uuid.UUID
	formID   uuid.UUID
}

// formEntry caches the per-form config reads. Persona rules are tenant
// scoped, so they live in a separate map.
type formEntry struct {
	quotas     []domain.Quota
	thresholds domain.AlertThresholds
	expiresAt  time.Time
}

type rulesEntry struct {
	rules     []domain.PersonaRule
	expiresAt time.Time
}

func NewCachedConfigSource(source domain.ConfigSource, ttl time.Duration, clock clockwork.Clock) *CachedConfigSource {
	return &CachedConfigSource{
		source: source,
		ttl:    ttl,
		clock:  clock,
		forms:  make(map[formKey]*formEntry),
		rules:  make(map[uuid.UUID]*rulesEntry),
	}
}

func (c *CachedConfigSource) ActiveQuotas(ctx context.Context, tenantID, formID uuid.UUID) ([]domain.Quota, error) {
	entry, err := c.loadForm(ctx, tenantID, formID)
	if err != nil {
		return nil, err
	}
	return entry.quotas, nil
}

func (c *CachedConfigSource) PersonaRules(ctx context.Context, tenantID uuid.UUID) ([]domain.PersonaRule, error) {
	c.mu.RLock()
	entry, ok := c.rules[tenantID]
	c.mu.RUnlock()
	if ok && c.clock.Now().Before(entry.expiresAt) {
		return entry.rules, nil
	}

	v, err, _ := c.group.Do("rules:"+tenantID.String(), func() (any, error) {
		c.mu.RLock()
		entry, ok := c.rules[tenantID]
		c.mu.RUnlock()
		if ok && c.clock.Now().Before(entry.expiresAt) {
			return entry, nil
		}

		rules, err := c.source.PersonaRules(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		fresh := &rulesEntry{rules: rules, expiresAt: c.clock.Now().Add(c.ttl)}
		c.mu.Lock()
		c.rules[tenantID] = fresh
		c.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*rulesEntry).rules, nil
}

func (c *CachedConfigSource) AlertThresholds(ctx context.Context, tenantID, formID uuid.UUID) (domain.AlertThresholds, error) {
	entry, err := c.loadForm(ctx, tenantID, formID)
	if err != nil {
		return domain.AlertThresholds{}, err
	}
	return entry.thresholds, nil
}

// Invalidate removes a form's cached config, forcing the next read to
// hit the underlying source. Called when an operator edits config.
func (c *CachedConfigSource) Invalidate(tenantID, formID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.forms, formKey{tenantID: tenantID, formID: formID})
	delete(c.rules, tenantID)
}

func (c *CachedConfigSource) loadForm(ctx context.Context, tenantID, formID uuid.UUID) (*formEntry, error) {
	key := formKey{tenantID: tenantID, formID: formID}

	c.mu.RLock()
	entry, ok := c.forms[key]
	c.mu.RUnlock()
	if ok && c.clock.Now().Before(entry.expiresAt) {
		return entry, nil
	}

	v, err, _ := c.group.Do("form:"+tenantID.String()+":"+formID.String(), func() (any, error) {
		// A joined caller may arrive after the winner stored the entry.
		c.mu.RLock()
		entry, ok := c.forms[key]
		c.mu.RUnlock()
		if ok && c.clock.Now().Before(entry.expiresAt) {
			return entry, nil
		}

		quotas, err := c.source.ActiveQuotas(ctx, tenantID, formID)
		if err != nil {
			return nil, err
		}
		thresholds, err := c.source.AlertThresholds(ctx, tenantID, formID)
		if err != nil {
			return nil, err
		}

		fresh := &formEntry{
			quotas:     quotas,
			thresholds: thresholds,
			expiresAt:  c.clock.Now().Add(c.ttl),
		}
		c.mu.Lock()
		c.forms[key] = fresh
		c.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*formEntry), nil
}
