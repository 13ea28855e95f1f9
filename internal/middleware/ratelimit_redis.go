package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter はRedisのINCRによる固定ウィンドウ方式のレート制限。
// 複数インスタンスで同じ上限を共有できる。
type RedisRateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	prefix string
	now    func() time.Time
}

var _ KeyLimiter = (*RedisRateLimiter)(nil)

// NewRedisRateLimiter はwindowあたりlimit件まで許可するRedisRateLimiterを生成する。
func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	if window < time.Second {
		window = time.Second
	}
	return &RedisRateLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		prefix: "batepapo:rl",
		now:    time.Now,
	}
}

// Allow は現在のウィンドウのカウンタを1増やし、上限以内ならtrueを返す。
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	windowSec := int64(l.window / time.Second)
	bucket := l.now().Unix() / windowSec
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, bucket)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	return incr.Val() <= l.limit, nil
}

// RetryAfter はウィンドウ長を返す。
func (l *RedisRateLimiter) RetryAfter() time.Duration {
	return l.window
}
