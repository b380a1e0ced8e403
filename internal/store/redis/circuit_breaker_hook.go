package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	goredis "github.com/redis/go-redis/v9"

	"github.com/surveypulse/surveypulse/internal/metrics"
)

// CircuitBreakerHook implements redis.Hook to stop cascading failures when
// Redis becomes unavailable or slow. It rides the same hooks infrastructure
// as MetricsHook, so every command issued by the counter and alert stores is
// covered without wrapping the client.
//
// Script calls fail fast while the circuit is open: they mutate quota
// counters and alert state, and answering them from anywhere but Redis would
// break exactly-once counting. Plain GETs fall back to a short-lived read
// cache so Count and GetOpen keep answering during recovery.
type CircuitBreakerHook struct {
	cb    circuitbreaker.CircuitBreaker[any]
	cache *readCache
}

var _ goredis.Hook = (*CircuitBreakerHook)(nil)

type readCache struct {
	mu     sync.RWMutex
	values map[string]cachedRead
}

type cachedRead struct {
	data     string
	storedAt time.Time
}

const readCacheTTL = 2 * time.Minute

// NewCircuitBreakerHook builds the breaker with the store-facing settings:
// opens at a 60% failure rate over a 10s rolling window (min 5 requests) and
// probes again after 30s; one half-open success closes it.
func NewCircuitBreakerHook() *CircuitBreakerHook {
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("redis circuit breaker state changed",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			metrics.CircuitBreakerStateChanges.WithLabelValues("redis", e.NewState.String()).Inc()
			metrics.CircuitBreakerState.WithLabelValues("redis").Set(stateToFloat(e.NewState))
		}).
		Build()

	return &CircuitBreakerHook{
		cb:    cb,
		cache: &readCache{values: make(map[string]cachedRead)},
	}
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

func (h *CircuitBreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if !h.cb.TryAcquirePermit() {
			return nil, fmt.Errorf("redis circuit breaker open: %w", circuitbreaker.ErrOpen)
		}
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.cb.RecordError(err)
			return nil, err
		}
		h.cb.RecordSuccess()
		return conn, nil
	}
}

func (h *CircuitBreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		if !h.cb.TryAcquirePermit() {
			return h.fallback(cmd)
		}

		err := next(ctx, cmd)
		// redis.Nil is an absent key, not a Redis failure.
		if err != nil && !errors.Is(err, goredis.Nil) {
			h.cb.RecordError(err)
			return err
		}
		h.cb.RecordSuccess()
		h.cacheRead(cmd)
		return err
	}
}

func (h *CircuitBreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		if !h.cb.TryAcquirePermit() {
			return fmt.Errorf("redis circuit breaker open: %w", circuitbreaker.ErrOpen)
		}
		err := next(ctx, cmds)
		if err != nil {
			h.cb.RecordError(err)
			return err
		}
		h.cb.RecordSuccess()
		return nil
	}
}

// fallback serves plain GETs from the read cache while the circuit is open.
// Everything else fails fast.
func (h *CircuitBreakerHook) fallback(cmd goredis.Cmder) error {
	if cmd.Name() == "get" {
		if val, ok := h.cachedValue(cmd); ok {
			if c, isString := cmd.(*goredis.StringCmd); isString {
				slog.Debug("redis circuit breaker open, serving cached read",
					"key", fmt.Sprintf("%v", cmd.Args()[1]))
				c.SetVal(val)
				return nil
			}
		}
	}
	return fmt.Errorf("redis circuit breaker open: %w", circuitbreaker.ErrOpen)
}

func (h *CircuitBreakerHook) cacheRead(cmd goredis.Cmder) {
	if cmd.Name() != "get" || len(cmd.Args()) < 2 {
		return
	}
	c, ok := cmd.(*goredis.StringCmd)
	if !ok {
		return
	}
	val, err := c.Result()
	if err != nil || val == "" {
		return
	}
	key := fmt.Sprintf("%v", cmd.Args()[1])
	h.cache.mu.Lock()
	h.cache.values[key] = cachedRead{data: val, storedAt: time.Now()}
	h.cache.mu.Unlock()
}

func (h *CircuitBreakerHook) cachedValue(cmd goredis.Cmder) (string, bool) {
	args := cmd.Args()
	if len(args) < 2 {
		return "", false
	}
	key := fmt.Sprintf("%v", args[1])

	h.cache.mu.RLock()
	defer h.cache.mu.RUnlock()
	entry, ok := h.cache.values[key]
	if !ok || time.Since(entry.storedAt) > readCacheTTL {
		return "", false
	}
	return entry.data, true
}

// State exposes the breaker state for tests and monitoring.
func (h *CircuitBreakerHook) State() circuitbreaker.State {
	return h.cb.State()
}
