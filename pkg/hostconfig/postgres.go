package hostconfig

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wisbric/chatowl/internal/db"
)

// PostgresStore implements Store on top of the app_config and user_config tables.
type PostgresStore struct {
	dbtx db.DBTX
}

// NewPostgresStore creates a config store backed by the given database connection.
func NewPostgresStore(dbtx db.DBTX) *PostgresStore {
	return &PostgresStore{dbtx: dbtx}
}

// GetAppValue returns the app-level value for key, or "" when unset.
func (s *PostgresStore) GetAppValue(ctx context.Context, key string) (string, error) {
	var value string
	err := s.dbtx.QueryRow(ctx,
		`SELECT value FROM app_config WHERE key = $1`, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading app config %q: %w", key, err)
	}
	return value, nil
}

// SetAppValue upserts an app-level value.
func (s *PostgresStore) SetAppValue(ctx context.Context, key, value string) error {
	_, err := s.dbtx.Exec(ctx,
		`INSERT INTO app_config (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("writing app config %q: %w", key, err)
	}
	return nil
}

// GetUserValue returns the user-level value for key, or "" when unset.
func (s *PostgresStore) GetUserValue(ctx context.Context, userID, key string) (string, error) {
	var value string
	err := s.dbtx.QueryRow(ctx,
		`SELECT value FROM user_config WHERE user_id = $1 AND key = $2`, userID, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading user config %q: %w", key, err)
	}
	return value, nil
}

// SetUserValue upserts a user-level value.
func (s *PostgresStore) SetUserValue(ctx context.Context, userID, key, value string) error {
	_, err := s.dbtx.Exec(ctx,
		`INSERT INTO user_config (user_id, key, value) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		userID, key, value,
	)
	if err != nil {
		return fmt.Errorf("writing user config %q: %w", key, err)
	}
	return nil
}

// DeleteUserValue removes a user-level value.
func (s *PostgresStore) DeleteUserValue(ctx context.Context, userID, key string) error {
	_, err := s.dbtx.Exec(ctx,
		`DELETE FROM user_config WHERE user_id = $1 AND key = $2`, userID, key,
	)
	if err != nil {
		return fmt.Errorf("deleting user config %q: %w", key, err)
	}
	return nil
}
