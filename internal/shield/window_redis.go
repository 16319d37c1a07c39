package shield

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript trims the key's sorted set to the window, admits the hit
// when under the limit, and returns {allowed, count, reset_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', '(' .. (now - window))
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, member)
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)

local reset = 0
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  reset = tonumber(oldest[2]) + window - now
end
return {allowed, count, reset}
`)

// RedisWindowStore keeps sliding windows in Redis sorted sets, one per key.
type RedisWindowStore struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

// RedisWindowOption configures a RedisWindowStore.
type RedisWindowOption func(*RedisWindowStore)

// WithRedisPrefix namespaces every key.
func WithRedisPrefix(prefix string) RedisWindowOption {
	return func(s *RedisWindowStore) { s.prefix = strings.Trim(prefix, ":") }
}

// WithRedisClock overrides time.Now.
func WithRedisClock(now func() time.Time) RedisWindowOption {
	return func(s *RedisWindowStore) { s.now = now }
}

// NewRedisWindowStore builds a store on an existing client.
func NewRedisWindowStore(rdb redis.UniversalClient, opts ...RedisWindowOption) *RedisWindowStore {
	s := &RedisWindowStore{rdb: rdb, prefix: "gate:window", now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisWindowStore) Hit(ctx context.Context, key string, limit int64, window time.Duration) (WindowResult, error) {
	if s == nil || s.rdb == nil {
		return WindowResult{}, errors.New("redis window store not configured")
	}
	if limit <= 0 || window <= 0 {
		return WindowResult{}, errors.New("invalid limit or window")
	}

	nowMS := s.now().UnixMilli()
	raw, err := slidingWindowScript.Run(ctx, s.rdb,
		[]string{s.prefix + ":" + key},
		nowMS, window.Milliseconds(), limit, fmt.Sprintf("%d-%s", nowMS, uuid.NewString()),
	).Int64Slice()
	if err != nil {
		return WindowResult{}, fmt.Errorf("sliding window script: %w", err)
	}
	if len(raw) != 3 {
		return WindowResult{}, fmt.Errorf("sliding window script: unexpected reply length %d", len(raw))
	}

	count := raw[1]
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	resetIn := time.Duration(raw[2]) * time.Millisecond
	if resetIn < 0 {
		resetIn = 0
	}
	return WindowResult{Allowed: raw[0] == 1, Count: count, Remaining: remaining, ResetIn: resetIn}, nil
}
