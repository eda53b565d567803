// Package pinguard locks PIN entry for a phone number after repeated wrong
// attempts.
package pinguard

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Guard tracks failed PIN attempts per key (a phone number).
type Guard interface {
	// Locked reports whether PIN entry is currently blocked for key.
	Locked(ctx context.Context, key string) (bool, error)
	// Fail records a wrong PIN and reports whether key is now locked.
	Fail(ctx context.Context, key string) (bool, error)
	// Reset clears the failure history after a correct PIN.
	Reset(ctx context.Context, key string) error
}

// Memory is an in-process Guard. Each key gets a non-refilling bucket of
// maxAttempts tokens that is replaced once the window since the first
// failure has passed, the same fixed window the Redis guard keeps.
type Memory struct {
	burst  int
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	byKey map[string]*entry
	hits  uint64
}

type entry struct {
	limiter *rate.Limiter
	opened  time.Time
}

// NewMemory allows maxAttempts wrong PINs per window.
func NewMemory(maxAttempts int, window time.Duration, now func() time.Time) *Memory {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &Memory{
		burst:  maxAttempts,
		window: window,
		now:    now,
		byKey:  make(map[string]*entry),
	}
}

func (m *Memory) live(e *entry, now time.Time) bool {
	return e != nil && now.Sub(e.opened) < m.window
}

func (m *Memory) Locked(_ context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.byKey[key]
	if !m.live(e, now) {
		return false, nil
	}
	return e.limiter.TokensAt(now) < 1, nil
}

func (m *Memory) Fail(_ context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.byKey[key]
	if !m.live(e, now) {
		// Limit 0 never refills; the window resets the bucket instead.
		e = &entry{limiter: rate.NewLimiter(0, m.burst), opened: now}
		m.byKey[key] = e
	}
	allowed := e.limiter.AllowN(now, 1)

	m.hits++
	if m.hits%256 == 0 {
		for k, v := range m.byKey {
			if !m.live(v, now) {
				delete(m.byKey, k)
			}
		}
	}

	return !allowed || e.limiter.TokensAt(now) < 1, nil
}

func (m *Memory) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byKey, strings.TrimSpace(key))
	return nil
}

// Redis is a Guard shared by every replica: a counter per key expiring after
// the lockout window.
type Redis struct {
	cache       *redis.Client
	maxAttempts int64
	window      time.Duration
}

const redisKeyPrefix = "ussd:pinfail:"

// NewRedis allows maxAttempts wrong PINs per window.
func NewRedis(cache *redis.Client, maxAttempts int, window time.Duration) *Redis {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &Redis{cache: cache, maxAttempts: int64(maxAttempts), window: window}
}

func (r *Redis) Locked(ctx context.Context, key string) (bool, error) {
	v, err := r.cache.Get(ctx, redisKeyPrefix+key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return false, err
	}
	return n >= r.maxAttempts, nil
}

func (r *Redis) Fail(ctx context.Context, key string) (bool, error) {
	k := redisKeyPrefix + key
	cnt, err := r.cache.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		if err := r.cache.Expire(ctx, k, r.window).Err(); err != nil {
			return false, err
		}
	}
	return cnt >= r.maxAttempts, nil
}

func (r *Redis) Reset(ctx context.Context, key string) error {
	return r.cache.Del(ctx, redisKeyPrefix+key).Err()
}
