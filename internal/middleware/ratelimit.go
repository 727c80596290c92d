// Package middleware carries the HTTP cross-cutting concerns: rate
// limiting, bearer authentication, and trace-id propagation.
package middleware

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter admits or rejects a request for a client id.
type RateLimiter interface {
	Allow(ctx context.Context, clientID string) bool
}

// MemoryRateLimiter is a per-client sliding window over the last 60
// seconds.
type MemoryRateLimiter struct {
	limit int

	mu     sync.Mutex
	events map[string][]time.Time
	now    func() time.Time
	lastGC time.Time
}

// NewMemoryRateLimiter builds the in-memory limiter. limit <= 0 disables
// limiting (every call admitted).
func NewMemoryRateLimiter(limit int) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		limit:  limit,
		events: make(map[string][]time.Time),
		now:    time.Now,
	}
}

const slidingWindow = 60 * time.Second

func (m *MemoryRateLimiter) Allow(ctx context.Context, clientID string) bool {
	if m.limit <= 0 {
		return true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-slidingWindow)

	window := m.events[clientID]
	kept := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= m.limit {
		m.events[clientID] = kept
		return false
	}
	m.events[clientID] = append(kept, now)
	m.maybeGC(now, cutoff)
	return true
}

// maybeGC drops idle client entries once a minute so the map stays bounded.
func (m *MemoryRateLimiter) maybeGC(now time.Time, cutoff time.Time) {
	if now.Sub(m.lastGC) < slidingWindow {
		return
	}
	m.lastGC = now
	for id, window := range m.events {
		live := false
		for _, ts := range window {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(m.events, id)
		}
	}
}

// RedisRateLimiter is a fixed one-minute window per client backed by a
// shared Redis counter.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	prefix string
	logger *log.Logger
	now    func() time.Time
}

// NewRedisRateLimiter builds the Redis-backed limiter.
func NewRedisRateLimiter(client *redis.Client, limit int, prefix string) *RedisRateLimiter {
	if prefix == "" {
		prefix = "immcad:ratelimit"
	}
	return &RedisRateLimiter{
		client: client,
		limit:  limit,
		prefix: prefix,
		logger: log.New(log.Writer(), "[RATELIMIT] ", log.LstdFlags),
		now:    time.Now,
	}
}

// Allow increments the current minute bucket. The key expires shortly
// after the window so idle buckets clean themselves up. A Redis failure
// admits the request; availability wins over strictness here.
func (r *RedisRateLimiter) Allow(ctx context.Context, clientID string) bool {
	if r.limit <= 0 {
		return true
	}

	bucket := r.now().Unix() / 60
	key := fmt.Sprintf("%s:%s:%d", r.prefix, clientID, bucket)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		r.logger.Printf("redis incr failed, admitting request: %v", err)
		return true
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, 65*time.Second).Err(); err != nil {
			r.logger.Printf("redis expire failed: %v", err)
		}
	}
	return count <= int64(r.limit)
}

// BuildRateLimiter prefers Redis when a URL is configured and reachable,
// degrading to the in-memory limiter on any failure.
func BuildRateLimiter(ctx context.Context, redisURL string, limit int) RateLimiter {
	logger := log.New(log.Writer(), "[RATELIMIT] ", log.LstdFlags)

	if redisURL == "" {
		return NewMemoryRateLimiter(limit)
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Printf("invalid REDIS_URL, using in-memory rate limiter: %v", err)
		return NewMemoryRateLimiter(limit)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Printf("redis unreachable, using in-memory rate limiter: %v", err)
		return NewMemoryRateLimiter(limit)
	}

	logger.Printf("rate limiting backed by redis")
	return NewRedisRateLimiter(client, limit, "")
}
