package storage

import (
	"context"
	"fmt"
	"sync"
)

type memObject struct {
	data        []byte
	contentType string
	metadata    map[string]string
}

// MemoryStore is an in-memory ObjectStore for tests and local development.
// Blobs are copied on write and on read so callers cannot alias the stored
// bytes.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memObject
}

// NewMemoryStore creates an empty in-memory object store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memObject)}
}

var _ ObjectStore = (*MemoryStore)(nil)

func (s *MemoryStore) Put(_ context.Context, key string, data []byte, opt PutOptions) error {
	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memObject{data: cp, contentType: opt.ContentType, metadata: opt.Metadata}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	cp := make([]byte, len(obj.data))
	copy(cp, obj.data)
	return cp, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// Len reports the number of stored blobs. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
