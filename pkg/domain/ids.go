// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "gatehouse/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a PrincipalID where a
// SessionID is expected.
type (
	PrincipalID uuid.UUID
	SessionID   uuid.UUID
)

// AccountID identifies a connected upstream account whose external API budget
// is tracked by the quota subsystem. Upstream providers assign these, so the
// type is an opaque string rather than a UUID.
type AccountID string

// New functions - used when minting fresh identifiers.

func NewPrincipalID() PrincipalID { return PrincipalID(uuid.New()) }
func NewSessionID() SessionID     { return SessionID(uuid.New()) }

// Parse functions - use at trust boundaries (handlers, token claims).

func ParsePrincipalID(s string) (PrincipalID, error) {
	id, err := parseUUID(s, "principal ID")
	return PrincipalID(id), err
}

func ParseSessionID(s string) (SessionID, error) {
	id, err := parseUUID(s, "session ID")
	return SessionID(id), err
}

func ParseAccountID(s string) (AccountID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "account ID cannot be empty")
	}
	return AccountID(s), nil
}

// String methods - for logging and debugging.

func (id PrincipalID) String() string { return uuid.UUID(id).String() }
func (id SessionID) String() string   { return uuid.UUID(id).String() }
func (id AccountID) String() string   { return string(id) }

// IsNil checks - used for service-layer validation.

func (id PrincipalID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id AccountID) IsNil() bool   { return id == "" }

// parseUUID is the shared validation logic. Nil UUIDs are allowed here; use
// IsNil() at the service layer so store lookups can return proper "not found"
// errors consistently.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}
