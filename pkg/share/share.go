// Package share creates and serves public share links for stored files.
package share

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Permission bits, matching the host platform's sharing permission model.
const (
	PermissionRead   = 1
	PermissionUpdate = 2
)

// ErrExpired is returned when a share link is past its expiration date.
var ErrExpired = errors.New("share link expired")

// ErrPasswordRequired is returned when a password-protected share is
// accessed without the correct password.
var ErrPasswordRequired = errors.New("share password required or incorrect")

// ErrNotFound is returned for unknown share tokens.
var ErrNotFound = errors.New("share not found")

// Share is a public link granting access to one file.
type Share struct {
	ID           uuid.UUID
	Token        string
	FileID       uuid.UUID
	OwnerID      string
	Permission   int
	ExpiresAt    *time.Time
	PasswordHash []byte
	CreatedAt    time.Time
}

// ParsePermission maps the API-level permission name to permission bits.
func ParsePermission(name string) (int, error) {
	switch name {
	case "view":
		return PermissionRead, nil
	case "edit":
		return PermissionRead | PermissionUpdate, nil
	default:
		return 0, fmt.Errorf("unknown permission %q", name)
	}
}

// Creator creates public share links. The Mattermost service depends on this
// narrow interface rather than the full Service.
type Creator interface {
	CreateLink(ctx context.Context, ownerID string, fileID uuid.UUID, permission int, expiresAt *time.Time, password string) (string, error)
}
