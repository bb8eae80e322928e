package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "academy:ratelimit:"

// FixedWindowLimiter counts requests per key in windows that reset on expiry.
type FixedWindowLimiter struct {
	rdb redis.Cmdable
}

func NewFixedWindowLimiter(rdb redis.Cmdable) *FixedWindowLimiter {
	return &FixedWindowLimiter{rdb: rdb}
}

// IsAllowed increments the window counter and arms its expiry on the first hit.
func (l *FixedWindowLimiter) IsAllowed(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	key = keyPrefix + key

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis INCR failed: %w", err)
	}

	if count == 1 {
		if err := l.rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("redis EXPIRE failed: %w", err)
		}
	}

	return count <= int64(limit), nil
}

// SlidingWindowLimiter keeps one sorted-set member per request and counts those inside the window.
type SlidingWindowLimiter struct {
	rdb redis.Cmdable
	now func() time.Time
}

func NewSlidingWindowLimiter(rdb redis.Cmdable) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{rdb: rdb, now: time.Now}
}

func (l *SlidingWindowLimiter) IsAllowed(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	key = keyPrefix + key
	now := l.now().UnixNano()
	windowStart := now - window.Nanoseconds()

	var card *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
		card = pipe.ZCard(ctx, key)
		pipe.Expire(ctx, key, window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis sliding window failed: %w", err)
	}

	return card.Val() <= int64(limit), nil
}
