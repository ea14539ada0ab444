package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config tunes one fixed window.
type Config struct {
	Enabled bool
	Max     int
	Window  time.Duration
}

// Limiter counts hits per (scope, subject) in fixed windows.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	config Config
}

// New returns a Limiter. A nil client or disabled config yields a limiter
// that always allows.
func New(client redis.UniversalClient, prefix string, cfg Config) *Limiter {
	prefix = strings.TrimSuffix(prefix, ":")
	if prefix == "" {
		prefix = "ac"
	}
	return &Limiter{redis: client, prefix: prefix, config: cfg}
}

// Enabled reports whether the limiter is configured and has Redis to count in.
func (l *Limiter) Enabled() bool {
	return l != nil && l.redis != nil && l.config.Enabled && l.config.Max > 0 && l.config.Window > 0
}

// Allow records one hit and returns *LimitError once the window's budget is
// spent. An empty subject is never limited.
func (l *Limiter) Allow(ctx context.Context, scope, subject string) error {
	if !l.Enabled() || subject == "" {
		return nil
	}
	key := l.key(scope, subject)

	count, err := l.incrementWithTTL(ctx, key, l.config.Window)
	if err != nil {
		return err
	}
	if count <= int64(l.config.Max) {
		return nil
	}

	ttl, err := l.redis.PTTL(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl <= 0 {
		ttl = l.config.Window
	}
	return &LimitError{RetryAfter: ttl}
}

// Hits returns the current window's count for (scope, subject).
func (l *Limiter) Hits(ctx context.Context, scope, subject string) (int, error) {
	if !l.Enabled() {
		return 0, nil
	}
	count, err := l.redis.Get(ctx, l.key(scope, subject)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

// Reset clears the window for (scope, subject).
func (l *Limiter) Reset(ctx context.Context, scope, subject string) error {
	if !l.Enabled() {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(scope, subject)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) key(scope, subject string) string {
	return l.prefix + ":rl:" + scope + ":" + subject
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: only the first hit sets the expiry.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}
