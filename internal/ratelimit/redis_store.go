package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "ratelimit:"

// slidingWindowScript keeps one sorted-set member per accepted request, scored
// by its timestamp in milliseconds. Trimming, counting and recording happen in
// one script so concurrent callers cannot both take the last slot.
//
// KEYS[1] key
// ARGV    now_ms, window_ms, limit, member, consume (1|0)
// returns {allowed, count, reset_ms}
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  allowed = 1
  if ARGV[5] == '1' then
    redis.call('ZADD', key, now, ARGV[4])
    redis.call('PEXPIRE', key, window)
    count = count + 1
  end
end

local reset = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  reset = tonumber(oldest[2]) + window
end
return {allowed, count, reset}
`)

type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, keyPrefix: defaultKeyPrefix}
}

// NewRedisStoreFromURL connects to a redis:// or rediss:// URL. A non-empty
// token overrides the password embedded in the URL.
func NewRedisStoreFromURL(ctx context.Context, rawURL string, token string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if token != "" {
		opts.Password = token
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStore(client), nil
}

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error) {
	return s.run(ctx, key, limit, window, now, true)
}

func (s *RedisStore) Peek(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error) {
	return s.run(ctx, key, limit, window, now, false)
}

func (s *RedisStore) run(ctx context.Context, key string, limit int, window time.Duration, now time.Time, consume bool) (Result, error) {
	flag := "0"
	if consume {
		flag = "1"
	}
	values, err := slidingWindowScript.Run(ctx, s.client,
		[]string{s.keyPrefix + key},
		now.UnixMilli(),
		window.Milliseconds(),
		limit,
		fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString()),
		flag,
	).Int64Slice()
	if err != nil {
		return Result{}, err
	}
	if len(values) != 3 {
		return Result{}, fmt.Errorf("unexpected sliding window reply: %v", values)
	}

	count := int(values[1])
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   values[0] == 1,
		Count:     count,
		Remaining: remaining,
		Reset:     time.UnixMilli(values[2]),
	}, nil
}
