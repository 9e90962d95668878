package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"gatehouse/internal/session/models"
	id "gatehouse/pkg/domain"
	dErrors "gatehouse/pkg/domain-errors"
)

const (
	sessionKeyPrefix   = "session:"
	principalKeyPrefix = "principal_sessions:"
	expiryIndexKey     = "session_expiries"

	// Rotation races retry the optimistic transaction a few times before
	// giving up; genuine replays fail on the counter compare, not here.
	maxTxRetries = 5
)

// RedisStore persists sessions as JSON blobs with a per-principal index and
// an expiry-sorted index for pruning. Rotation advances run as optimistic
// WATCH transactions keyed by the single session, so concurrent refreshes of
// the same token serialize while unrelated sessions proceed.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Create(ctx context.Context, session *models.Session) error {
	if session == nil || session.ID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "session is missing an ID")
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode session")
	}

	key := sessionKey(session.ID)
	ok, err := s.client.SetNX(ctx, key, payload, 0).Result()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store session")
	}
	if !ok {
		return dErrors.New(dErrors.CodeConflict, "session already exists")
	}

	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, principalKey(session.PrincipalID), session.ID.String())
	if !session.ExpiresAt.IsZero() {
		pipe.ZAdd(ctx, expiryIndexKey, redis.Z{
			Score:  float64(session.ExpiresAt.Unix()),
			Member: session.ID.String(),
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to index session")
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	return s.get(ctx, s.client, sessionID)
}

func (s *RedisStore) ListByPrincipal(ctx context.Context, principalID id.PrincipalID) ([]*models.Session, error) {
	members, err := s.client.SMembers(ctx, principalKey(principalID)).Result()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list principal sessions")
	}

	out := make([]*models.Session, 0, len(members))
	for _, member := range members {
		sessionID, err := id.ParseSessionID(member)
		if err != nil {
			continue
		}
		session, err := s.get(ctx, s.client, sessionID)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, session)
	}
	return out, nil
}

func (s *RedisStore) Touch(ctx context.Context, sessionID id.SessionID, at time.Time) error {
	return s.mutate(ctx, sessionID, func(session *models.Session) error {
		if at.After(session.LastSeenAt) {
			session.RecordActivity(at)
		}
		return nil
	})
}

func (s *RedisStore) Revoke(ctx context.Context, sessionID id.SessionID, at time.Time) (*models.Session, error) {
	var final *models.Session
	err := s.mutate(ctx, sessionID, func(session *models.Session) error {
		session.Revoke(at)
		final = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return final, nil
}

func (s *RedisStore) IsRevoked(ctx context.Context, sessionID id.SessionID) (bool, error) {
	session, err := s.get(ctx, s.client, sessionID)
	if err != nil {
		return false, err
	}
	return session.Revoked, nil
}

func (s *RedisStore) AdvanceRotation(ctx context.Context, sessionID id.SessionID, rot Rotation) (*models.Session, error) {
	var final *models.Session
	err := s.mutate(ctx, sessionID, func(session *models.Session) error {
		if session.Rotation != rot.Expected {
			final = session
			return ErrRotationMismatch
		}
		session.Rotation++
		session.ApplyTokenJTIs(rot.AccessTokenJTI, rot.RefreshTokenJTI)
		session.RecordActivity(rot.At)
		final = session
		return nil
	})
	if err != nil {
		return final, err
	}
	return final, nil
}

func (s *RedisStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	max := strconv.FormatInt(cutoff.Unix(), 10)
	members, err := s.client.ZRangeByScore(ctx, expiryIndexKey, &redis.ZRangeBy{Min: "-inf", Max: max}).Result()
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to scan expired sessions")
	}

	removed := 0
	for _, member := range members {
		sessionID, parseErr := id.ParseSessionID(member)
		if parseErr == nil {
			if session, getErr := s.get(ctx, s.client, sessionID); getErr == nil {
				s.client.SRem(ctx, principalKey(session.PrincipalID), member)
			}
			s.client.Del(ctx, sessionKey(sessionID))
		}
		s.client.ZRem(ctx, expiryIndexKey, member)
		removed++
	}
	return removed, nil
}

// mutate runs fn against the stored session inside a WATCH transaction so
// the read-modify-write is atomic with respect to the session key.
func (s *RedisStore) mutate(ctx context.Context, sessionID id.SessionID, fn func(*models.Session) error) error {
	key := sessionKey(sessionID)

	txn := func(tx *redis.Tx) error {
		session, err := s.get(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if err := fn(session); err != nil {
			return err
		}
		payload, err := json.Marshal(session)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode session")
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, redis.KeepTTL)
			return nil
		})
		return err
	}

	for range maxTxRetries {
		err := s.client.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return dErrors.New(dErrors.CodeConflict, "session update contention")
}

type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) get(ctx context.Context, client redisGetter, sessionID id.SessionID) (*models.Session, error) {
	payload, err := client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	var session models.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to decode session")
	}
	return &session, nil
}

func sessionKey(sessionID id.SessionID) string {
	return sessionKeyPrefix + sessionID.String()
}

func principalKey(principalID id.PrincipalID) string {
	return principalKeyPrefix + principalID.String()
}
