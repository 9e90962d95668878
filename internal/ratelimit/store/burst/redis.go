package burst

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	dErrors "gatehouse/pkg/domain-errors"
)

// takeScript implements refill-then-consume atomically. Bucket state is a
// hash of {tokens, refilled_at_ms}; the key expires once a full refill's
// worth of idle time has passed, since a full bucket equals a fresh one.
var takeScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_per_ms = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call('HMGET', key, 'tokens', 'refilled_at_ms')
local tokens = tonumber(state[1])
local refilled_at = tonumber(state[2])
if tokens == nil then
    tokens = capacity
    refilled_at = now
end

local elapsed = now - refilled_at
if elapsed > 0 then
    tokens = math.min(capacity, tokens + elapsed * refill_per_ms)
end

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

redis.call('HSET', key, 'tokens', tokens, 'refilled_at_ms', now)
redis.call('PEXPIRE', key, math.ceil(capacity / refill_per_ms))
return allowed
`)

// RedisStore backs token buckets with a shared cache so burst protection
// holds across service instances.
type RedisStore struct {
	client redis.Scripter
}

func NewRedisStore(client redis.Scripter) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Take(ctx context.Context, key string, capacity int, refillPerSecond float64, now time.Time) (bool, error) {
	allowed, err := takeScript.Run(ctx, s.client, []string{key},
		capacity,
		refillPerSecond/1000.0,
		now.UnixMilli(),
	).Int64()
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "token bucket check failed")
	}
	return allowed == 1, nil
}
