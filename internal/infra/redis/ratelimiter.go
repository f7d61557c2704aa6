package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/widget-claims/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "claims:ratelimit:"

// countScript drops entries that fell out of the window and returns what is left.
var countScript = goredis.NewScript(`
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", "(" .. ARGV[1])
return redis.call("ZCARD", KEYS[1])
`)

var recordScript = goredis.NewScript(`
redis.call("ZADD", KEYS[1], ARGV[1], ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return 1
`)

var _ ratelimit.Limiter = (*RedisClaimLimiter)(nil)

// RedisClaimLimiter keeps a sliding window of accepted submissions per identity
// in a sorted set scored by submission time in milliseconds.
type RedisClaimLimiter struct {
	client *goredis.Client
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewRedisClaimLimiter(client *goredis.Client, limit int, window time.Duration) (*RedisClaimLimiter, error) {
	return newRedisClaimLimiter(client, limit, window, time.Now)
}

func newRedisClaimLimiter(
	client *goredis.Client,
	limit int,
	window time.Duration,
	nowFn func() time.Time,
) (*RedisClaimLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if limit <= 0 {
		limit = ratelimit.DefaultLimit
	}
	if window <= 0 {
		window = ratelimit.DefaultWindow
	}
	if nowFn == nil {
		nowFn = time.Now
	}

	return &RedisClaimLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		now:    nowFn,
	}, nil
}

func (r *RedisClaimLimiter) IsLimited(ctx context.Context, identityHash string) (bool, error) {
	key, err := limiterKey(identityHash)
	if err != nil {
		return false, err
	}

	cutoff := r.now().UTC().Add(-r.window).UnixMilli()
	count, err := countScript.Run(ctx, r.client, []string{key}, cutoff).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}

	return count >= r.limit, nil
}

func (r *RedisClaimLimiter) Record(ctx context.Context, identityHash string, at time.Time) error {
	key, err := limiterKey(identityHash)
	if err != nil {
		return err
	}

	member := fmt.Sprintf("%d-%s", at.UTC().UnixMilli(), uuid.NewString())
	_, err = recordScript.Run(ctx, r.client, []string{key}, at.UTC().UnixMilli(), member, r.window.Milliseconds()).Result()
	if err != nil {
		return fmt.Errorf("failed to record submission: %w", err)
	}
	return nil
}

func limiterKey(identityHash string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(identityHash))
	if normalized == "" {
		return "", fmt.Errorf("identity hash is required")
	}
	return keyPrefix + normalized, nil
}
