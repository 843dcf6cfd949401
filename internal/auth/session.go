package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// sessionKeyPrefix is the prefix for all session keys in Redis.
const sessionKeyPrefix = "chatowl:session:"

// ErrSessionNotFound is returned when a session token is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore validates session tokens against Redis. The host platform
// writes sessions on login; ChatOwl only reads them.
type SessionStore struct {
	rdb *redis.Client
}

// NewSessionStore creates a session store backed by the given Redis client.
func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

func sessionKey(token string) string {
	return sessionKeyPrefix + token
}

// Validate looks up a session token and returns the user ID it belongs to.
func (s *SessionStore) Validate(ctx context.Context, token string) (string, error) {
	userID, err := s.rdb.Get(ctx, sessionKey(token)).Result()
	if err == redis.Nil {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("looking up session: %w", err)
	}
	return userID, nil
}

// Create stores a new session and returns its token. Used by tests and by
// host-side provisioning tooling.
func (s *SessionStore) Create(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	token := uuid.New().String()
	if err := s.rdb.Set(ctx, sessionKey(token), userID, ttl).Err(); err != nil {
		return "", fmt.Errorf("storing session: %w", err)
	}
	return token, nil
}

// Revoke deletes a session token.
func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
