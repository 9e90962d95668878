// Package credentials provides an in-process credential source. Production
// deployments are expected to supply their own source backed by a user
// store; the interface is the contract, not this implementation.
package credentials

import (
	"context"
	"strings"
	"sync"

	"gatehouse/internal/auth/models"
	id "gatehouse/pkg/domain"
	dErrors "gatehouse/pkg/domain-errors"
)

// Hasher is the password hashing dependency used at registration.
type Hasher interface {
	Hash(ctx context.Context, password string) (string, error)
}

// InMemorySource keeps credentials keyed by lowercased username.
type InMemorySource struct {
	mu     sync.RWMutex
	byName map[string]*models.Credential
	hasher Hasher
}

func NewInMemorySource(hasher Hasher) *InMemorySource {
	return &InMemorySource{
		byName: make(map[string]*models.Credential),
		hasher: hasher,
	}
}

// Register hashes the password and stores a new credential. The password
// strength policy lives in the hasher; a weak secret fails here with the
// hasher's weak_secret error.
func (s *InMemorySource) Register(ctx context.Context, username, password string, scopes []string) (*models.Credential, error) {
	username = normalize(username)
	if username == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "username cannot be empty")
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, err
	}

	credential := &models.Credential{
		PrincipalID:  id.NewPrincipalID(),
		Username:     username,
		PasswordHash: hash,
		Scopes:       scopes,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[username]; exists {
		return nil, dErrors.New(dErrors.CodeConflict, "username is already taken")
	}
	s.byName[username] = credential
	return credential, nil
}

// SetPassword replaces a credential's hash. The old hash is superseded,
// never deleted from any external system of record.
func (s *InMemorySource) SetPassword(ctx context.Context, username, password string) error {
	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	credential, exists := s.byName[normalize(username)]
	if !exists {
		return dErrors.New(dErrors.CodeNotFound, "credential not found")
	}
	credential.PasswordHash = hash
	return nil
}

func (s *InMemorySource) FindByUsername(_ context.Context, username string) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	credential, exists := s.byName[normalize(username)]
	if !exists {
		return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
	}
	cloned := *credential
	return &cloned, nil
}

func normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
