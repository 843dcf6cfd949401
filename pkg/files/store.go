package files

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wisbric/chatowl/internal/db"
)

// Store implements Storage on Postgres. Content lives in a bytea column;
// ChatOwl files are attachments headed for a chat channel, not bulk storage.
type Store struct {
	dbtx db.DBTX
}

// NewStore creates a file store backed by the given database connection.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const fileColumns = `id, owner_id, name, content_type, size, content, created_at`

func scanFile(row pgx.Row) (File, error) {
	var f File
	err := row.Scan(&f.ID, &f.OwnerID, &f.Name, &f.ContentType, &f.Size, &f.Content, &f.CreatedAt)
	return f, err
}

// Create stores a new file owned by ownerID.
func (s *Store) Create(ctx context.Context, ownerID, name, contentType string, content []byte) (File, error) {
	row := s.dbtx.QueryRow(ctx,
		`INSERT INTO files (owner_id, name, content_type, size, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+fileColumns,
		ownerID, name, contentType, int64(len(content)), content,
	)
	f, err := scanFile(row)
	if err != nil {
		return File{}, fmt.Errorf("creating file: %w", err)
	}
	return f, nil
}

// Get returns the file only if it is owned by ownerID.
func (s *Store) Get(ctx context.Context, ownerID string, id uuid.UUID) (File, error) {
	f, err := s.GetAny(ctx, id)
	if err != nil {
		return File{}, err
	}
	if f.OwnerID != ownerID {
		return File{}, ErrNotPermitted
	}
	return f, nil
}

// GetAny returns the file regardless of owner.
func (s *Store) GetAny(ctx context.Context, id uuid.UUID) (File, error) {
	row := s.dbtx.QueryRow(ctx,
		`SELECT `+fileColumns+` FROM files WHERE id = $1`, id,
	)
	f, err := scanFile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return File{}, ErrNotFound
	}
	if err != nil {
		return File{}, fmt.Errorf("getting file: %w", err)
	}
	return f, nil
}
