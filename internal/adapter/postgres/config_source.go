package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/surveypulse/surveypulse/internal/domain"
)

// ConfigSource implements domain.ConfigSource on the tenant configuration
// tables. It is read-only: quota, rule, and threshold management happens in
// the host application, this service only consumes them.
type ConfigSource struct {
	pool *pgxpool.Pool
}

func NewConfigSource(pool *pgxpool.Pool) *ConfigSource {
	return &ConfigSource{pool: pool}
}

func (s *ConfigSource) ActiveQuotas(ctx context.Context, tenantID, formID uuid.UUID) ([]domain.Quota, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, form_id, limit_value, period_type, is_active
		FROM quotas
		WHERE tenant_id = $1 AND form_id = $2 AND is_active`,
		tenantID, formID)
	if err != nil {
		return nil, fmt.Errorf("failed to query quotas: %w", err)
	}
	defer rows.Close()

	var quotas []domain.Quota
	for rows.Next() {
		var q domain.Quota
		var periodType string
		if err := rows.Scan(&q.ID, &q.TenantID, &q.FormID, &q.LimitValue, &periodType, &q.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan quota: %w", err)
		}
		q.PeriodType = domain.PeriodType(periodType)
		quotas = append(quotas, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read quotas: %w", err)
	}
	return quotas, nil
}

func (s *ConfigSource) PersonaRules(ctx context.Context, tenantID uuid.UUID) ([]domain.PersonaRule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, label, score, clauses
		FROM persona_rules
		WHERE tenant_id = $1
		ORDER BY id`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query persona rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.PersonaRule
	for rows.Next() {
		var r domain.PersonaRule
		var clauses []byte
		if err := rows.Scan(&r.ID, &r.Label, &r.Score, &clauses); err != nil {
			return nil, fmt.Errorf("failed to scan persona rule: %w", err)
		}
		if err := json.Unmarshal(clauses, &r.Clauses); err != nil {
			return nil, fmt.Errorf("failed to decode clauses of rule %s: %w", r.ID, err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read persona rules: %w", err)
	}
	return rules, nil
}

func (s *ConfigSource) AlertThresholds(ctx context.Context, tenantID, formID uuid.UUID) (domain.AlertThresholds, error) {
	var th domain.AlertThresholds
	var levels []byte
	err := s.pool.QueryRow(ctx, `
		SELECT negative_score, emotion_triggers, keyword_triggers, levels
		FROM alert_thresholds
		WHERE tenant_id = $1 AND form_id = $2`,
		tenantID, formID).
		Scan(&th.NegativeScore, &th.EmotionTriggers, &th.KeywordTriggers, &levels)
	if errors.Is(err, pgx.ErrNoRows) {
		// No thresholds configured means no alerting for this form.
		return domain.AlertThresholds{}, nil
	}
	if err != nil {
		return domain.AlertThresholds{}, fmt.Errorf("failed to query alert thresholds: %w", err)
	}
	if err := json.Unmarshal(levels, &th.Levels); err != nil {
		return domain.AlertThresholds{}, fmt.Errorf("failed to decode level boundaries: %w", err)
	}
	return th, nil
}
