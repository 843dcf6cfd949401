// Package files provides the host platform's file storage: metadata and
// content, scoped to an owning user.
package files

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no file exists with the given ID.
var ErrNotFound = errors.New("file not found")

// ErrNotPermitted is returned when the file exists but belongs to another user.
var ErrNotPermitted = errors.New("file access not permitted")

// File is a stored file with its content.
type File struct {
	ID          uuid.UUID
	OwnerID     string
	Name        string
	ContentType string
	Size        int64
	Content     []byte
	CreatedAt   time.Time
}

// Storage stores and retrieves files.
type Storage interface {
	// Create stores a new file owned by ownerID.
	Create(ctx context.Context, ownerID, name, contentType string, content []byte) (File, error)
	// Get returns the file only if it is owned by ownerID.
	Get(ctx context.Context, ownerID string, id uuid.UUID) (File, error)
	// GetAny returns the file regardless of owner. Used by the public share
	// endpoint, where access is granted by the share token instead.
	GetAny(ctx context.Context, id uuid.UUID) (File, error)
}
