package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "revoked:"

// RedisList is a revocation set shared across instances. Each JTI becomes a
// key with a server-side TTL, so expiry needs no cleanup worker.
type RedisList struct {
	client redis.Cmdable
}

func NewRedisList(client redis.Cmdable) *RedisList {
	return &RedisList{client: client}
}

func (l *RedisList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := l.client.Set(ctx, keyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke jti: %w", err)
	}
	return nil
}

func (l *RedisList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := l.client.Exists(ctx, keyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check jti revocation: %w", err)
	}
	return n > 0, nil
}

func (l *RedisList) RevokeAll(ctx context.Context, jtis []string, ttl time.Duration) error {
	if ttl <= 0 || len(jtis) == 0 {
		return nil
	}
	pipe := l.client.Pipeline()
	for _, jti := range jtis {
		pipe.Set(ctx, keyPrefix+jti, "1", ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("revoke session jtis: %w", err)
	}
	return nil
}
