// Package revocation tracks revoked token JTIs. Entries carry a TTL equal to
// the token's remaining lifetime, so the set never outlives the tokens it
// blocks and never grows unbounded.
package revocation

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// List manages revoked token JTIs.
type List interface {
	// Revoke adds a token JTI to the revocation set with a TTL.
	Revoke(ctx context.Context, jti string, ttl time.Duration) error

	// IsRevoked checks if a token JTI is in the revocation set.
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// RevokeAll revokes every listed JTI, typically all tokens of a session.
	RevokeAll(ctx context.Context, jtis []string, ttl time.Duration) error
}

// InMemoryList is a ttlcache-backed revocation set for single-instance
// deployments and tests. Expired entries are evicted automatically.
type InMemoryList struct {
	cache *ttlcache.Cache[string, struct{}]
}

// NewInMemoryList creates an in-memory revocation list and starts its
// eviction loop. Call Stop when the list is no longer needed.
func NewInMemoryList() *InMemoryList {
	cache := ttlcache.New[string, struct{}]()
	go cache.Start()
	return &InMemoryList{cache: cache}
}

func (l *InMemoryList) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		// Token already expired; nothing to block.
		return nil
	}
	l.cache.Set(jti, struct{}{}, ttl)
	return nil
}

func (l *InMemoryList) IsRevoked(_ context.Context, jti string) (bool, error) {
	return l.cache.Has(jti), nil
}

func (l *InMemoryList) RevokeAll(ctx context.Context, jtis []string, ttl time.Duration) error {
	for _, jti := range jtis {
		if err := l.Revoke(ctx, jti, ttl); err != nil {
			return err
		}
	}
	return nil
}

// Stop terminates the eviction loop.
func (l *InMemoryList) Stop() {
	l.cache.Stop()
}
