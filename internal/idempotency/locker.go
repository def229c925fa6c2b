// Package idempotency guards against the same ticket being submitted twice
// while the first submission is still in flight.
package idempotency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Locker acquires a short-lived exclusive claim on a ticket id
type Locker interface {
	// Acquire returns false when another submission already holds the claim
	Acquire(ctx context.Context, ticketID string) (bool, error)
	Close() error
}

// Key returns the lock key for a ticket
func Key(ticketID string) string {
	return "lock:ticket:" + ticketID
}

// RedisLocker stores claims in Redis with SET NX and a TTL, so claims are
// shared by every orchestrator instance using the same Redis.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisLocker connects to the Redis instance at url
func NewRedisLocker(ctx context.Context, url string, ttl time.Duration, logger zerolog.Logger) (*RedisLocker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}

	logger.Info().Str("addr", opts.Addr).Dur("ttl", ttl).Msg("redis idempotency locker initialized")
	return &RedisLocker{client: client, ttl: ttl, logger: logger}, nil
}

// Acquire claims ticketID for the configured TTL
func (l *RedisLocker) Acquire(ctx context.Context, ticketID string) (bool, error) {
	ok, err := l.client.SetNX(ctx, Key(ticketID), "processing", l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock for %s: %w", ticketID, err)
	}
	return ok, nil
}

// Close releases the Redis connection pool
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

// minSweepSize is the map size below which expired claims are left in place
const minSweepSize = 1024

// MemoryLocker is the single-process fallback when Redis is not configured
type MemoryLocker struct {
	mu      sync.Mutex
	ttl     time.Duration
	expires map[string]time.Time
	sweepAt int
	now     func() time.Time
}

// NewMemoryLocker creates an in-process locker
func NewMemoryLocker(ttl time.Duration) *MemoryLocker {
	return &MemoryLocker{
		ttl:     ttl,
		expires: make(map[string]time.Time),
		sweepAt: minSweepSize,
		now:     time.Now,
	}
}

// Acquire claims ticketID for the configured TTL
func (l *MemoryLocker) Acquire(_ context.Context, ticketID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := Key(ticketID)
	if exp, held := l.expires[key]; held && now.Before(exp) {
		return false, nil
	}
	l.expires[key] = now.Add(l.ttl)

	if len(l.expires) >= l.sweepAt {
		l.sweep(now)
	}
	return true, nil
}

// sweep drops expired claims and moves the next sweep out to twice the
// surviving size, so its cost is amortized over the acquires in between.
// Must be called with mu held.
func (l *MemoryLocker) sweep(now time.Time) {
	for key, exp := range l.expires {
		if !now.Before(exp) {
			delete(l.expires, key)
		}
	}
	l.sweepAt = 2 * len(l.expires)
	if l.sweepAt < minSweepSize {
		l.sweepAt = minSweepSize
	}
}

// Close is a no-op
func (l *MemoryLocker) Close() error { return nil }

// New picks the Redis locker when url is set and the in-process one otherwise
func New(ctx context.Context, url string, ttl time.Duration, logger zerolog.Logger) (Locker, error) {
	if url == "" {
		logger.Info().Msg("Redis disabled (REDIS_URL not set), using in-process idempotency locks")
		return NewMemoryLocker(ttl), nil
	}
	return NewRedisLocker(ctx, url, ttl, logger)
}
