package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aimerfeng/ChallengeHive/internal/cache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Result contains the result of a rate limit check
type Result struct {
	Allowed    bool
	Remaining  int64
	Limit      int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// Limiter decides whether a request identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// RedisLimiter implements sliding window rate limiting shared across replicas
type RedisLimiter struct {
	redis  *cache.Redis
	limit  int
	window time.Duration
}

// NewRedisLimiter creates a sliding window limiter allowing limit requests per window
func NewRedisLimiter(r *cache.Redis, limit int, window time.Duration) *RedisLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{redis: r, limit: limit, window: window}
}

// Allow records the request and reports whether it fits in the window.
// Redis failures fail open.
func (r *RedisLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	now := time.Now()
	windowStart := now.Add(-r.window)
	redisKey := fmt.Sprintf("ratelimit:sliding:%s", key)

	pipe := r.redis.Client.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
	countCmd := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to check rate limit")
		return &Result{Allowed: true, Remaining: int64(r.limit), Limit: r.limit}, nil
	}

	current := countCmd.Val()
	result := &Result{
		Limit:   r.limit,
		ResetAt: now.Add(r.window),
	}

	if current >= int64(r.limit) {
		result.Allowed = false
		oldest, err := r.redis.Client.ZRangeWithScores(ctx, redisKey, 0, 0).Result()
		if err == nil && len(oldest) > 0 {
			oldestTime := time.Unix(0, int64(oldest[0].Score))
			result.RetryAfter = oldestTime.Add(r.window).Sub(now)
			if result.RetryAfter <= 0 {
				result.RetryAfter = time.Second
			}
		} else {
			result.RetryAfter = r.window
		}
		return result, nil
	}

	member := fmt.Sprintf("%d-%s", now.UnixNano(), key)
	if err := r.redis.Client.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: member,
	}).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to add rate limit entry")
	}
	r.redis.Client.Expire(ctx, redisKey, r.window*2)

	result.Allowed = true
	result.Remaining = int64(r.limit) - current - 1
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	return result, nil
}

// Reset clears the window for key
func (r *RedisLimiter) Reset(ctx context.Context, key string) error {
	return r.redis.Client.Del(ctx, fmt.Sprintf("ratelimit:sliding:%s", key)).Err()
}

// LocalLimiter is an in-process token bucket per key, used when Redis is disabled.
// Keys idle long enough for their bucket to refill are swept on access.
type LocalLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*localEntry
	limit     rate.Limit
	burst     int
	perMin    int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type localEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter allows requestsPerMinute sustained with the given burst
func NewLocalLimiter(requestsPerMinute, burst int) *LocalLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(float64(requestsPerMinute) / 60.0)

	// A bucket idle for this long is full again, so dropping it loses nothing.
	idle := time.Minute
	if limit > 0 {
		if refill := time.Duration(float64(burst) / float64(limit) * float64(time.Second)); refill > idle {
			idle = refill
		}
	}

	return &LocalLimiter{
		limiters: make(map[string]*localEntry),
		limit:    limit,
		burst:    burst,
		perMin:   requestsPerMinute,
		idleTTL:  idle,
		now:      time.Now,
	}
}

func (l *LocalLimiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.idleTTL {
		for k, e := range l.limiters {
			if now.Sub(e.lastSeen) >= l.idleTTL {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.limiters[key]
	if !ok {
		e = &localEntry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.lim
}

// Allow consumes one token for key
func (l *LocalLimiter) Allow(_ context.Context, key string) (*Result, error) {
	now := l.now()
	lim := l.get(key, now)
	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return &Result{Allowed: false, Limit: l.perMin, RetryAfter: time.Minute}, nil
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return &Result{
			Allowed:    false,
			Limit:      l.perMin,
			RetryAfter: delay,
			ResetAt:    now.Add(delay),
		}, nil
	}
	return &Result{
		Allowed:   true,
		Limit:     l.perMin,
		Remaining: int64(lim.TokensAt(now)),
		ResetAt:   now.Add(time.Minute),
	}, nil
}
