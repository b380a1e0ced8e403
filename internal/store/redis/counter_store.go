package redis

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Counter keys are plain string counters, one per (quota, period):
//
//	quota:counter:<quota_uuid>:<period_key>
//
// Period keys roll over naturally (a new day means a new key), so rejected
// periods need no cleanup beyond normal expiry.

// incrIfBelowScript checks the counter against the limit and increments only
// when below. The check and the increment happen in one script execution, so
// two racing submissions can never both pass the last free slot.
// ARGV: [1]=limit
// Returns {count_after, applied}.
var incrIfBelowScript = goredis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count >= tonumber(ARGV[1]) then
  return {count, 0}
end
count = redis.call('INCR', KEYS[1])
return {count, 1}
`)

// decrementFloorScript undoes one increment without ever going negative.
// A rollback racing a fresh period key must not leave -1 behind.
var decrementFloorScript = goredis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count <= 0 then
  return 0
end
return redis.call('DECR', KEYS[1])
`)

// CounterStore implements domain.CounterStore on Redis string counters.
type CounterStore struct {
	rdb *goredis.Client
}

func NewCounterStore(client *Client) *CounterStore {
	return &CounterStore{rdb: client.rdb}
}

func counterKey(quotaID uuid.UUID, periodKey string) string {
	return "quota:counter:" + quotaID.String() + ":" + periodKey
}

func (s *CounterStore) IncrementIfBelow(ctx context.Context, quotaID uuid.UUID, periodKey string, limit int64) (int64, bool, error) {
	key := counterKey(quotaID, periodKey)
	result, err := incrIfBelowScript.Run(ctx, s.rdb, []string{key}, limit).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("increment counter %s: %w", key, err)
	}
	if len(result) != 2 {
		return 0, false, fmt.Errorf("increment counter %s: unexpected script reply %v", key, result)
	}
	return result[0], result[1] == 1, nil
}

func (s *CounterStore) Decrement(ctx context.Context, quotaID uuid.UUID, periodKey string) error {
	key := counterKey(quotaID, periodKey)
	if err := decrementFloorScript.Run(ctx, s.rdb, []string{key}).Err(); err != nil {
		return fmt.Errorf("decrement counter %s: %w", key, err)
	}
	return nil
}

func (s *CounterStore) Count(ctx context.Context, quotaID uuid.UUID, periodKey string) (int64, error) {
	key := counterKey(quotaID, periodKey)
	count, err := s.rdb.Get(ctx, key).Int64()
	if err == goredis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read counter %s: %w", key, err)
	}
	return count, nil
}
