package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowLua は直近windowミリ秒のリクエストをソート済みセットで数える。
// 拒否したリクエストは記録しない。戻り値は {許可:1/拒否:0, 再試行までのミリ秒}。
const slidingWindowLua = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
local count = redis.call("ZCARD", key)
if count >= limit then
  local retry = window
  local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
  if oldest[2] then
    retry = tonumber(oldest[2]) + window - now
  end
  return {0, retry}
end

redis.call("ZADD", key, now, member)
redis.call("PEXPIRE", key, window)
return {1, 0}
`

// RedisLimiter はRedisのスライディングウィンドウによるKeyLimiter。
// 複数のAPIレプリカで同じ上限を共有する。
type RedisLimiter struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
	script *redis.Script
}

// NewRedisLimiter はRedisLimiterを生成する。
func NewRedisLimiter(rdb *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "dealsapi:ratelimit"
	}
	return &RedisLimiter{
		rdb:    rdb,
		prefix: prefix,
		limit:  limit,
		window: window,
		now:    time.Now,
		script: redis.NewScript(slidingWindowLua),
	}
}

// Allow はKeyLimiterを実装する。
func (rl *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := rl.now().UnixMilli()
	res, err := rl.script.Run(ctx, rl.rdb,
		[]string{rl.prefix + ":" + key},
		now, rl.window.Milliseconds(), rl.limit, strconv.FormatInt(now, 10)+"-"+uuid.NewString(),
	).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit eval: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) < 2 {
		return false, 0, fmt.Errorf("ratelimit invalid result: %v", res)
	}
	allowed := toInt64(values[0]) == 1
	retryAfter := time.Duration(toInt64(values[1])) * time.Millisecond
	return allowed, retryAfter, nil
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if parsed, err := strconv.ParseInt(t, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}
