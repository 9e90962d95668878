package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeySanitization(t *testing.T) {
	tests := []struct {
		name       string
		scope      Scope
		identifier string
		want       string
	}{
		{"plain ip", ScopeIP, "203.0.113.9", "ratelimit:ip:203.0.113.9"},
		{"ipv6 colons escaped", ScopeIP, "2001:db8::1", "ratelimit:ip:2001_cdb8_c_c1"},
		{"underscore escaped", ScopeEndpoint, "auth_login", "ratelimit:endpoint:auth__login"},
		{"global", ScopeGlobal, "all", "ratelimit:global:all"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Key(tt.scope, tt.identifier))
		})
	}
}

func TestKeyCollisionResistance(t *testing.T) {
	// An identifier crafted to look like another scope's key must not
	// produce the same string as the genuine key.
	crafted := Key(ScopeIP, "x:principal:abc")
	genuine := Key(ScopePrincipal, "abc")
	assert.NotEqual(t, crafted, genuine)

	a := Key(ScopeIP, "a_c")
	b := Key(ScopeIP, "a:")
	assert.NotEqual(t, a, b)
}

func TestMoreRestrictiveThan(t *testing.T) {
	now := time.Now()

	tight := &Result{Allowed: true, Remaining: 1, ResetAt: now}
	loose := &Result{Allowed: true, Remaining: 50, ResetAt: now}
	assert.True(t, tight.MoreRestrictiveThan(loose))
	assert.False(t, loose.MoreRestrictiveThan(tight))

	rejected := &Result{Allowed: false, Remaining: 0}
	assert.True(t, rejected.MoreRestrictiveThan(tight))

	later := &Result{Allowed: true, Remaining: 1, ResetAt: now.Add(time.Minute)}
	assert.True(t, later.MoreRestrictiveThan(tight))

	assert.True(t, loose.MoreRestrictiveThan(nil))
}
