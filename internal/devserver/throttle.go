package devserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrThrottled is returned once a key exceeds its budget for the window.
var ErrThrottled = errors.New("too many attempts")

// throttle is a fixed-window Redis counter. A zero limit disables it.
type throttle struct {
	redis  redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

func newThrottle(rdb redis.UniversalClient, prefix string, limit int, window time.Duration) *throttle {
	return &throttle{redis: rdb, prefix: prefix, limit: limit, window: window}
}

// Allow counts one attempt for key.
func (t *throttle) Allow(ctx context.Context, key string) error {
	if t == nil || t.limit <= 0 {
		return nil
	}

	k := t.prefix + ":throttle:" + key
	count, err := t.redis.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// The window starts at the first hit.
	if count == 1 {
		if err := t.redis.PExpire(ctx, k, t.window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count > int64(t.limit) {
		return ErrThrottled
	}
	return nil
}
