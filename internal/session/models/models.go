// Package models defines the session aggregate: one logical authenticated
// login instance, potentially spanning many access/refresh token issuances.
package models

import (
	"time"

	id "gatehouse/pkg/domain"
)

// Session tracks one authenticated device/login instance. The rotation
// counter binds the session to its refresh-token chain: every refresh
// advances it, and a refresh token carrying a stale counter is a replay.
type Session struct {
	ID          id.SessionID   `json:"id"`
	PrincipalID id.PrincipalID `json:"principal_id"`

	// Device metadata captured at login for the sessions listing.
	DeviceName        string `json:"device_name,omitempty"`
	DeviceFingerprint string `json:"device_fingerprint,omitempty"`

	Scopes []string `json:"scopes,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
	ExpiresAt  time.Time `json:"expires_at"`

	// Rotation strictly increases; it never resets for the life of the session.
	Rotation int `json:"rotation"`

	// JTIs of the most recently minted token pair, blacklisted when the
	// session is revoked so unexpired tokens die with it.
	AccessTokenJTI  string `json:"access_token_jti,omitempty"`
	RefreshTokenJTI string `json:"refresh_token_jti,omitempty"`

	Revoked   bool       `json:"revoked"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Revoke marks the session revoked. Returns false when the session was
// already revoked, letting callers keep revocation idempotent.
func (s *Session) Revoke(now time.Time) bool {
	if s.Revoked {
		return false
	}
	s.Revoked = true
	s.RevokedAt = &now
	return true
}

// RecordActivity updates the last-activity timestamp.
func (s *Session) RecordActivity(at time.Time) {
	s.LastSeenAt = at
}

// ApplyTokenJTIs records the most recent token pair bound to this session.
func (s *Session) ApplyTokenJTIs(accessJTI, refreshJTI string) {
	if accessJTI != "" {
		s.AccessTokenJTI = accessJTI
	}
	if refreshJTI != "" {
		s.RefreshTokenJTI = refreshJTI
	}
}

// IsExpired reports whether the session itself has aged out.
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(now)
}
