package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	dErrors "gatehouse/pkg/domain-errors"
)

// reserveScript checks then increments in one atomic step. A reservation at
// or above the ceiling returns the untouched count.
var reserveScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])

local current = tonumber(redis.call('GET', key) or '0')
if current >= limit then
    return {current, 0}
end

current = redis.call('INCR', key)
if ttl > 0 then
    redis.call('PEXPIRE', key, ttl)
end
return {current, 1}
`)

// releaseScript decrements without going below zero.
var releaseScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current <= 0 then
    return 0
end
return redis.call('DECR', KEYS[1])
`)

// RedisStore backs quota counters with a shared cache, so the external
// ceiling holds across service instances.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Reserve(ctx context.Context, key string, limit int, ttl time.Duration) (int, bool, error) {
	raw, err := reserveScript.Run(ctx, s.client, []string{key}, limit, ttl.Milliseconds()).Slice()
	if err != nil {
		return 0, false, dErrors.Wrap(err, dErrors.CodeInternal, "quota reservation failed")
	}
	if len(raw) != 2 {
		return 0, false, dErrors.New(dErrors.CodeInternal, "quota reservation returned malformed reply")
	}
	count, _ := raw[0].(int64)
	admitted, _ := raw[1].(int64)
	return int(count), admitted == 1, nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, s.client, []string{key}).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "quota release failed")
	}
	return nil
}

func (s *RedisStore) Add(ctx context.Context, key string, delta int, ttl time.Duration) error {
	pipe := s.client.Pipeline()
	pipe.IncrBy(ctx, key, int64(delta))
	if ttl > 0 {
		pipe.PExpire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "quota counter update failed")
	}
	return nil
}

func (s *RedisStore) Count(ctx context.Context, key string) (int, error) {
	count, err := s.client.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "quota counter read failed")
	}
	return count, nil
}
