// Package models defines the rate limiter's scopes, keys and check results.
package models

import (
	"strings"
	"time"
)

// Scope identifies which dimension of the request a limit applies to. A
// request may be checked against several scopes; all of them must pass.
type Scope string

const (
	ScopeGlobal    Scope = "global"
	ScopeIP        Scope = "ip"
	ScopePrincipal Scope = "principal"
	ScopeEndpoint  Scope = "endpoint"
)

// Result is the outcome of evaluating one scope's sliding window.
type Result struct {
	Scope      Scope
	Identifier string
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	// RetryAfter is populated on rejections: how long until the oldest
	// counted request ages out of the window.
	RetryAfter time.Duration
}

// Decision aggregates the per-scope results of one rate-limit evaluation.
// Binding is the most restrictive scope evaluated, which is the one whose
// metadata goes into the response headers.
type Decision struct {
	Allowed bool
	Binding *Result
	Results []*Result
}

// MoreRestrictiveThan orders results by how close the client is to
// exhaustion: fewer remaining requests binds tighter, with the later reset
// breaking ties.
func (r *Result) MoreRestrictiveThan(other *Result) bool {
	if other == nil {
		return true
	}
	if !r.Allowed != !other.Allowed {
		return !r.Allowed
	}
	if r.Remaining != other.Remaining {
		return r.Remaining < other.Remaining
	}
	return r.ResetAt.After(other.ResetAt)
}

// Key builds the counter-store key for a scope and identifier. Identifiers
// are escaped so a crafted value cannot collide with another scope's key.
func Key(scope Scope, identifier string) string {
	return "ratelimit:" + string(scope) + ":" + sanitize(identifier)
}

// BurstKey builds the token-bucket key for an identifier.
func BurstKey(identifier string) string {
	return "burst:" + sanitize(identifier)
}

// sanitize escapes the key separator characters. `_` doubles itself so the
// escaping stays unambiguous, then `:` maps to `_c`.
func sanitize(identifier string) string {
	identifier = strings.ReplaceAll(identifier, "_", "__")
	return strings.ReplaceAll(identifier, ":", "_c")
}
