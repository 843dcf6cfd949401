package files

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is an in-memory Storage for tests.
type MemoryStorage struct {
	mu    sync.RWMutex
	files map[uuid.UUID]File
}

// NewMemoryStorage creates an empty in-memory file storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{files: map[uuid.UUID]File{}}
}

func (s *MemoryStorage) Create(_ context.Context, ownerID, name, contentType string, content []byte) (File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := File{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(content)),
		Content:     content,
		CreatedAt:   time.Now(),
	}
	s.files[f.ID] = f
	return f, nil
}

func (s *MemoryStorage) Get(ctx context.Context, ownerID string, id uuid.UUID) (File, error) {
	f, err := s.GetAny(ctx, id)
	if err != nil {
		return File{}, err
	}
	if f.OwnerID != ownerID {
		return File{}, ErrNotPermitted
	}
	return f, nil
}

func (s *MemoryStorage) GetAny(_ context.Context, id uuid.UUID) (File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[id]
	if !ok {
		return File{}, ErrNotFound
	}
	return f, nil
}
