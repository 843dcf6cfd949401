package share

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wisbric/chatowl/internal/db"
)

// Store provides database operations for shares.
type Store struct {
	dbtx db.DBTX
}

// NewStore creates a share Store backed by the given database connection.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const shareColumns = `id, token, file_id, owner_id, permission, expires_at, password_hash, created_at`

func scanShare(row pgx.Row) (Share, error) {
	var s Share
	err := row.Scan(&s.ID, &s.Token, &s.FileID, &s.OwnerID, &s.Permission, &s.ExpiresAt, &s.PasswordHash, &s.CreatedAt)
	return s, err
}

// Create inserts a new share and returns the stored row.
func (s *Store) Create(ctx context.Context, sh Share) (Share, error) {
	row := s.dbtx.QueryRow(ctx,
		`INSERT INTO shares (token, file_id, owner_id, permission, expires_at, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+shareColumns,
		sh.Token, sh.FileID, sh.OwnerID, sh.Permission, sh.ExpiresAt, sh.PasswordHash,
	)
	created, err := scanShare(row)
	if err != nil {
		return Share{}, fmt.Errorf("creating share: %w", err)
	}
	return created, nil
}

// GetByToken returns the share with the given public token.
func (s *Store) GetByToken(ctx context.Context, token string) (Share, error) {
	row := s.dbtx.QueryRow(ctx,
		`SELECT `+shareColumns+` FROM shares WHERE token = $1`, token,
	)
	sh, err := scanShare(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Share{}, ErrNotFound
	}
	if err != nil {
		return Share{}, fmt.Errorf("getting share: %w", err)
	}
	return sh, nil
}
