package share

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/wisbric/chatowl/pkg/files"
)

// Repository is the persistence interface the service needs.
type Repository interface {
	Create(ctx context.Context, sh Share) (Share, error)
	GetByToken(ctx context.Context, token string) (Share, error)
}

// Service creates and resolves public share links.
type Service struct {
	repo          Repository
	storage       files.Storage
	publicBaseURL string
}

// NewService creates a share Service. publicBaseURL is the externally
// reachable base address used to build link URLs.
func NewService(repo Repository, storage files.Storage, publicBaseURL string) *Service {
	return &Service{
		repo:          repo,
		storage:       storage,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// CreateLink creates a public share for the given file and returns its URL.
// The file must exist and be owned by ownerID.
func (s *Service) CreateLink(ctx context.Context, ownerID string, fileID uuid.UUID, permission int, expiresAt *time.Time, password string) (string, error) {
	if _, err := s.storage.Get(ctx, ownerID, fileID); err != nil {
		return "", fmt.Errorf("resolving file to share: %w", err)
	}

	sh := Share{
		Token:      uuid.New().String(),
		FileID:     fileID,
		OwnerID:    ownerID,
		Permission: permission,
		ExpiresAt:  expiresAt,
	}

	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return "", fmt.Errorf("hashing share password: %w", err)
		}
		sh.PasswordHash = hash
	}

	created, err := s.repo.Create(ctx, sh)
	if err != nil {
		return "", err
	}

	return s.publicBaseURL + "/s/" + created.Token, nil
}

// Resolve validates a share token and, when the share is password-protected
// or expired, the corresponding access rules. It returns the shared file.
func (s *Service) Resolve(ctx context.Context, token, password string) (files.File, error) {
	sh, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return files.File{}, err
	}

	if sh.ExpiresAt != nil && time.Now().After(*sh.ExpiresAt) {
		return files.File{}, ErrExpired
	}

	if len(sh.PasswordHash) > 0 {
		if password == "" {
			return files.File{}, ErrPasswordRequired
		}
		if err := bcrypt.CompareHashAndPassword(sh.PasswordHash, []byte(password)); err != nil {
			if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				return files.File{}, ErrPasswordRequired
			}
			return files.File{}, fmt.Errorf("checking share password: %w", err)
		}
	}

	// Access is granted by the token, not by the requesting user.
	f, err := s.storage.GetAny(ctx, sh.FileID)
	if err != nil {
		return files.File{}, fmt.Errorf("loading shared file: %w", err)
	}
	return f, nil
}
