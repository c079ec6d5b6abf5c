// Package cache provides Redis-based caching of apartment and booking
// labels for exports, with graceful degradation: when Redis is unavailable
// lookups fall through to the database.
//
// Period open/closed status is deliberately never cached: the period check
// is always the storage layer's row-locked read.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"rental-ledger/config"
	"rental-ledger/internal/export"
	"rental-ledger/internal/logging"
)

const (
	keyApartmentTitle = "apartment:%s:title"
	keyBookingRef     = "booking:%s:ref"
)

// LabelCache wraps a database-backed LabelSource with a Redis layer. It
// keeps a small circuit breaker so a dead Redis degrades to direct
// database lookups instead of failing exports.
type LabelCache struct {
	client *redis.Client
	next   export.LabelSource
	ttl    time.Duration
	log    *logging.Logger

	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures   int
	checkInterval time.Duration
}

var _ export.LabelSource = (*LabelCache)(nil)

// NewLabelCache creates a label cache over next. The returned cache is
// usable even when the initial Redis connection fails; it starts degraded.
func NewLabelCache(cfg config.RedisConfig, next export.LabelSource, log *logging.Logger) *LabelCache {
	lc := &LabelCache{
		next:          next,
		ttl:           time.Duration(cfg.LabelTTLMin) * time.Minute,
		log:           log.WithComponent("label-cache"),
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}
	if !cfg.Enabled {
		return lc
	}

	lc.client = redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := lc.client.Ping(ctx).Err(); err != nil {
		lc.log.Warn().Err(err).Msg("initial Redis connection failed, label cache degraded")
		return lc
	}
	lc.healthy = true
	lc.lastCheck = time.Now()
	lc.log.Info().Str("address", cfg.Address).Msg("Redis label cache connected")
	return lc
}

func (lc *LabelCache) isHealthy() bool {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return lc.client != nil && lc.healthy
}

func (lc *LabelCache) recordFailure() {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.failureCount++
	if lc.failureCount >= lc.maxFailures {
		if lc.healthy {
			lc.log.Warn().Int("failures", lc.failureCount).Msg("circuit breaker open, Redis marked unhealthy")
		}
		lc.healthy = false
	}
}

func (lc *LabelCache) recordSuccess() {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if !lc.healthy {
		lc.log.Info().Msg("circuit breaker closed, Redis recovered")
	}
	lc.healthy = true
	lc.failureCount = 0
	lc.lastCheck = time.Now()
}

func (lc *LabelCache) checkHealth() {
	lc.mu.RLock()
	shouldCheck := lc.client != nil && !lc.healthy && time.Since(lc.lastCheck) >= lc.checkInterval
	lc.mu.RUnlock()
	if !shouldCheck {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := lc.client.Ping(ctx).Err(); err == nil {
			lc.recordSuccess()
		} else {
			lc.mu.Lock()
			lc.lastCheck = time.Now()
			lc.mu.Unlock()
		}
	}()
}

// lookup resolves a batch through Redis first and falls back to next for
// the misses, writing those back with the configured TTL.
func (lc *LabelCache) lookup(
	ctx context.Context,
	keyFormat string,
	ids []string,
	fetch func(context.Context, []string) (map[string]string, error),
) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	lc.checkHealth()
	missing := ids

	if lc.isHealthy() {
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = fmt.Sprintf(keyFormat, id)
		}
		vals, err := lc.client.MGet(ctx, keys...).Result()
		if err != nil {
			lc.recordFailure()
		} else {
			lc.recordSuccess()
			missing = missing[:0]
			for i, v := range vals {
				if s, ok := v.(string); ok {
					out[ids[i]] = s
				} else {
					missing = append(missing, ids[i])
				}
			}
		}
	}

	if len(missing) == 0 {
		return out, nil
	}
	fetched, err := fetch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, label := range fetched {
		out[id] = label
	}

	if lc.isHealthy() && len(fetched) > 0 {
		pipe := lc.client.Pipeline()
		for id, label := range fetched {
			pipe.Set(ctx, fmt.Sprintf(keyFormat, id), label, lc.ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			lc.recordFailure()
		}
	}
	return out, nil
}

// ApartmentTitles resolves apartment ids to titles, cache first.
func (lc *LabelCache) ApartmentTitles(ctx context.Context, ids []string) (map[string]string, error) {
	return lc.lookup(ctx, keyApartmentTitle, ids, lc.next.ApartmentTitles)
}

// BookingRefs resolves booking ids to labels, cache first.
func (lc *LabelCache) BookingRefs(ctx context.Context, ids []string) (map[string]string, error) {
	return lc.lookup(ctx, keyBookingRef, ids, lc.next.BookingRefs)
}

// InvalidateApartment drops a cached apartment title after a rename.
func (lc *LabelCache) InvalidateApartment(ctx context.Context, id string) {
	if !lc.isHealthy() {
		return
	}
	if err := lc.client.Del(ctx, fmt.Sprintf(keyApartmentTitle, id)).Err(); err != nil {
		lc.recordFailure()
	}
}
