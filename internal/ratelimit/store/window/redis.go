package window

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	dErrors "gatehouse/pkg/domain-errors"
)

// allowScript prunes, checks and records in one atomic step so concurrent
// callers on the same key cannot slip past the limit together. Scores are
// unix milliseconds; each admission gets a unique member.
var allowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)
if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    return {0, count, oldest[2]}
end

redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
return {1, count + 1, oldest[2]}
`)

// RedisStore backs sliding windows with one sorted set per key, for
// enforcement shared across service instances.
type RedisStore struct {
	client redis.Scripter
}

func NewRedisStore(client redis.Scripter) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Slot, error) {
	member := make([]byte, 8)
	if _, err := rand.Read(member); err != nil {
		return Slot{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate window member")
	}

	raw, err := allowScript.Run(ctx, s.client, []string{key},
		now.UnixMilli(),
		window.Milliseconds(),
		limit,
		hex.EncodeToString(member),
	).Slice()
	if err != nil {
		return Slot{}, dErrors.Wrap(err, dErrors.CodeInternal, "sliding window check failed")
	}
	if len(raw) != 3 {
		return Slot{}, dErrors.New(dErrors.CodeInternal, "sliding window check returned malformed reply")
	}

	allowed, _ := raw[0].(int64)
	count, _ := raw[1].(int64)
	slot := Slot{
		Allowed: allowed == 1,
		Count:   int(count),
	}
	if oldest, ok := raw[2].(string); ok {
		ms, parseErr := strconv.ParseFloat(oldest, 64)
		if parseErr == nil {
			slot.OldestAt = time.UnixMilli(int64(ms))
		}
	}
	return slot, nil
}
