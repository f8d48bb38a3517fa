package httpexec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"archie-core-marketplace-layer/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Limiter paces outbound calls per marketplace
type Limiter interface {
	Wait(ctx context.Context, m domain.Marketplace, limits domain.RateLimits) error
}

// LocalLimiter keeps one token bucket per marketplace, shared by every adapter in the process.
// A bucket refills at rpm/60 tokens per second with a burst of 1, which spaces calls 60/rpm seconds apart.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[domain.Marketplace]*rate.Limiter
}

func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{limiters: make(map[domain.Marketplace]*rate.Limiter)}
}

func (l *LocalLimiter) Wait(ctx context.Context, m domain.Marketplace, limits domain.RateLimits) error {
	if limits.RequestsPerMinute <= 0 {
		return nil
	}
	return l.limiter(m, limits.RequestsPerMinute).Wait(ctx)
}

func (l *LocalLimiter) limiter(m domain.Marketplace, rpm int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	every := rate.Limit(float64(rpm) / 60)
	lim, ok := l.limiters[m]
	if !ok {
		lim = rate.NewLimiter(every, 1)
		l.limiters[m] = lim
	} else if lim.Limit() != every {
		lim.SetLimit(every)
	}
	return lim
}

// RedisLimiter enforces the per-minute quota across processes with a fixed one-minute
// window counter per marketplace, on top of the in-process spacing of LocalLimiter.
type RedisLimiter struct {
	client *redis.Client
	local  *LocalLimiter
	prefix string
	logger zerolog.Logger
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, prefix string, logger zerolog.Logger) *RedisLimiter {
	if prefix == "" {
		prefix = "marketplace:ratelimit"
	}
	return &RedisLimiter{
		client: client,
		local:  NewLocalLimiter(),
		prefix: prefix,
		logger: logger,
		now:    time.Now,
	}
}

func (l *RedisLimiter) Wait(ctx context.Context, m domain.Marketplace, limits domain.RateLimits) error {
	if limits.RequestsPerMinute <= 0 {
		return nil
	}
	if err := l.local.Wait(ctx, m, limits); err != nil {
		return err
	}

	for {
		now := l.now()
		window := now.Truncate(time.Minute)
		key := fmt.Sprintf("%s:%s:%d", l.prefix, m, window.Unix())

		pipe := l.client.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, 2*time.Minute)
		if _, err := pipe.Exec(ctx); err != nil {
			// Fall back to local pacing when the shared counter is unavailable
			l.logger.Warn().Err(err).Str("marketplace", string(m)).Msg("Shared rate limiter unavailable")
			return nil
		}
		if incr.Val() <= int64(limits.RequestsPerMinute) {
			return nil
		}

		wait := window.Add(time.Minute).Sub(now)
		l.logger.Debug().
			Str("marketplace", string(m)).
			Dur("wait", wait).
			Msg("Shared rate limit window exhausted, waiting")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Unpaced never waits. It backs RATE_LIMIT_BACKEND=none.
type Unpaced struct{}

func (Unpaced) Wait(ctx context.Context, m domain.Marketplace, limits domain.RateLimits) error {
	return ctx.Err()
}
