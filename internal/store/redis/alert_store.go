package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/surveypulse/surveypulse/internal/domain"
)

// Alert key layout:
//
//	ctl:open:<tenant>:<form>:<dimension>  JSON of the open alert for that key
//	ctl:alert:<alert_uuid>                name of the key currently holding the alert
//	ctl:resolved:<alert_uuid>             JSON of a resolved alert
//
// The open key is the deduplication point: at most one open alert per
// correlation key. The scripts build resolved/mapping key names from the
// stored alert id, which rules out Redis Cluster but matches the
// single-instance deployment this service targets.

// findOrCreateAlertScript returns the open alert for the key if one exists,
// otherwise stores the candidate. Racing correlation attempts therefore
// agree on one alert.
// KEYS: [1]=open key, [2]=id mapping key of the candidate
// ARGV: [1]=candidate JSON
// Returns {created, alert JSON}.
var findOrCreateAlertScript = goredis.NewScript(`
local existing = redis.call('GET', KEYS[1])
if existing then
  return {0, existing}
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], KEYS[1])
return {1, ARGV[1]}
`)

// escalateAlertScript raises severity only when the new score magnitude
// strictly exceeds the stored one. Status and ticket linkage are untouched.
// ARGV: [1]=score, [2]=level, [3]=notes, [4]=updated_at
var escalateAlertScript = goredis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return 0
end
local alert = cjson.decode(raw)
local new_score = tonumber(ARGV[1])
if math.abs(new_score) <= math.abs(alert.score_value) then
  return 0
end
alert.score_value = new_score
alert.alert_level = ARGV[2]
alert.notes = ARGV[3]
alert.updated_at = ARGV[4]
redis.call('SET', KEYS[1], cjson.encode(alert))
return 1
`)

// setTicketScript links a ticket at most once. A second call returns 0
// without touching the stored ticket id.
// KEYS: [1]=id mapping key
// ARGV: [1]=ticket id, [2]=updated_at
var setTicketScript = goredis.NewScript(`
local target = redis.call('GET', KEYS[1])
if not target then
  return -1
end
local raw = redis.call('GET', target)
if not raw then
  return -1
end
local alert = cjson.decode(raw)
if alert.ticket_id ~= nil and alert.ticket_id ~= '' then
  return 0
end
alert.ticket_id = ARGV[1]
alert.updated_at = ARGV[2]
redis.call('SET', target, cjson.encode(alert))
return 1
`)

// resolveAlertScript closes the open alert and moves it out of the
// deduplication key so the next qualifying submission opens a fresh alert.
// ARGV: [1]=resolved_at, [2]=resolved_by, [3]=updated_at
var resolveAlertScript = goredis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return -1
end
local alert = cjson.decode(raw)
alert.status = 'resolved'
alert.resolved_at = ARGV[1]
alert.resolved_by = ARGV[2]
alert.updated_at = ARGV[3]
local resolved_key = 'ctl:resolved:' .. alert.id
redis.call('DEL', KEYS[1])
redis.call('SET', resolved_key, cjson.encode(alert))
redis.call('SET', 'ctl:alert:' .. alert.id, resolved_key)
return 1
`)

// AlertStore implements domain.AlertStore on Redis with Lua-scripted
// transitions.
type AlertStore struct {
	rdb   *goredis.Client
	clock clockwork.Clock
}

func NewAlertStore(client *Client, clock clockwork.Clock) *AlertStore {
	return &AlertStore{rdb: client.rdb, clock: clock}
}

// redisAlert is the JSON shape stored in Redis. Field names are stable
// because the Lua scripts address them directly.
type redisAlert struct {
	ID           uuid.UUID          `json:"id"`
	TenantID     uuid.UUID          `json:"tenant_id"`
	FormID       uuid.UUID          `json:"form_id"`
	SubmissionID uuid.UUID          `json:"submission_id"`
	AlertLevel   domain.AlertLevel  `json:"alert_level"`
	ScoreValue   float64            `json:"score_value"`
	ScoreType    string             `json:"score_type"`
	Sentiment    domain.Sentiment   `json:"sentiment"`
	Status       domain.AlertStatus `json:"status"`
	ResolvedAt   *time.Time         `json:"resolved_at,omitempty"`
	ResolvedBy   string             `json:"resolved_by"`
	TicketID     string             `json:"ticket_id"`
	Notes        string             `json:"notes"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

func toRedisAlert(a domain.CTLAlert) redisAlert {
	return redisAlert{
		ID:           a.ID,
		TenantID:     a.TenantID,
		FormID:       a.FormID,
		SubmissionID: a.SubmissionID,
		AlertLevel:   a.AlertLevel,
		ScoreValue:   a.ScoreValue,
		ScoreType:    a.ScoreType,
		Sentiment:    a.Sentiment,
		Status:       a.Status,
		ResolvedAt:   a.ResolvedAt,
		ResolvedBy:   a.ResolvedBy,
		TicketID:     a.TicketID,
		Notes:        a.Notes,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func (r redisAlert) toDomain() domain.CTLAlert {
	return domain.CTLAlert{
		ID:           r.ID,
		TenantID:     r.TenantID,
		FormID:       r.FormID,
		SubmissionID: r.SubmissionID,
		AlertLevel:   r.AlertLevel,
		ScoreValue:   r.ScoreValue,
		ScoreType:    r.ScoreType,
		Sentiment:    r.Sentiment,
		Status:       r.Status,
		ResolvedAt:   r.ResolvedAt,
		ResolvedBy:   r.ResolvedBy,
		TicketID:     r.TicketID,
		Notes:        r.Notes,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func openKey(key domain.AlertKey) string {
	return "ctl:open:" + key.TenantID.String() + ":" + key.FormID.String() + ":" + key.Dimension
}

func alertIDKey(alertID uuid.UUID) string {
	return "ctl:alert:" + alertID.String()
}

func (s *AlertStore) FindOrCreateOpen(ctx context.Context, key domain.AlertKey, candidate domain.CTLAlert) (domain.CTLAlert, bool, error) {
	candidate.Status = domain.AlertStatusOpen
	payload, err := json.Marshal(toRedisAlert(candidate))
	if err != nil {
		return domain.CTLAlert{}, false, fmt.Errorf("encode alert: %w", err)
	}

	result, err := findOrCreateAlertScript.Run(ctx, s.rdb,
		[]string{openKey(key), alertIDKey(candidate.ID)},
		string(payload),
	).Slice()
	if err != nil {
		return domain.CTLAlert{}, false, fmt.Errorf("find-or-create alert: %w", err)
	}
	if len(result) != 2 {
		return domain.CTLAlert{}, false, fmt.Errorf("find-or-create alert: unexpected script reply %v", result)
	}

	created := result[0].(int64) == 1
	var stored redisAlert
	if err := json.Unmarshal([]byte(result[1].(string)), &stored); err != nil {
		return domain.CTLAlert{}, false, fmt.Errorf("decode alert: %w", err)
	}
	return stored.toDomain(), created, nil
}

func (s *AlertStore) Escalate(ctx context.Context, key domain.AlertKey, scoreValue float64, level domain.AlertLevel, notes string) (bool, error) {
	applied, err := escalateAlertScript.Run(ctx, s.rdb,
		[]string{openKey(key)},
		scoreValue, string(level), notes, s.clock.Now().UTC().Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("escalate alert: %w", err)
	}
	return applied == 1, nil
}

func (s *AlertStore) SetTicket(ctx context.Context, alertID uuid.UUID, ticketID string) error {
	result, err := setTicketScript.Run(ctx, s.rdb,
		[]string{alertIDKey(alertID)},
		ticketID, s.clock.Now().UTC().Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return fmt.Errorf("set ticket on alert %s: %w", alertID, err)
	}
	if result == -1 {
		return domain.ErrAlertNotFound
	}
	return nil
}

func (s *AlertStore) GetOpen(ctx context.Context, key domain.AlertKey) (domain.CTLAlert, error) {
	raw, err := s.rdb.Get(ctx, openKey(key)).Result()
	if err == goredis.Nil {
		return domain.CTLAlert{}, domain.ErrAlertNotFound
	}
	if err != nil {
		return domain.CTLAlert{}, fmt.Errorf("read open alert: %w", err)
	}
	var stored redisAlert
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return domain.CTLAlert{}, fmt.Errorf("decode alert: %w", err)
	}
	return stored.toDomain(), nil
}

func (s *AlertStore) Resolve(ctx context.Context, key domain.AlertKey, resolvedBy string, at time.Time) error {
	now := s.clock.Now().UTC().Format(time.RFC3339Nano)
	result, err := resolveAlertScript.Run(ctx, s.rdb,
		[]string{openKey(key)},
		at.UTC().Format(time.RFC3339Nano), resolvedBy, now,
	).Int64()
	if err != nil {
		return fmt.Errorf("resolve alert: %w", err)
	}
	if result == -1 {
		return domain.ErrAlertNotFound
	}
	return nil
}
