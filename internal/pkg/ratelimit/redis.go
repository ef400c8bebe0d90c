package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-otp-onboarding/internal/pkg/id"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript trims entries older than the window, rejects when the
// window is full and otherwise records the request, all in one round trip.
// Returns {allowed, remaining, oldest_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local current = redis.call('ZCARD', key)
if current >= limit then
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	return {0, 0, tonumber(oldest[2])}
end

redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window)
return {1, limit - current - 1, 0}
`)

// Redis is a rolling-window limiter shared by every process using the same
// Redis instance.
type Redis struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedis(client *redis.Client, prefix string, limit int, window time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, limit: limit, window: window, now: time.Now}
}

func (r *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	now := r.now().UnixMilli()
	res, err := slidingWindowScript.Run(ctx, r.client,
		[]string{fmt.Sprintf("%s:%s", r.prefix, key)},
		now, r.window.Milliseconds(), r.limit, id.New(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}
	if res[0] == 1 {
		return Decision{Allowed: true, Remaining: int(res[1])}, nil
	}
	retry := time.Duration(res[2]+r.window.Milliseconds()-now) * time.Millisecond
	if retry < 0 {
		retry = 0
	}
	return Decision{RetryAfter: retry}, nil
}
