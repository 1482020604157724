package registry

import (
	"context"
	"sort"
	"sync"

	"mediavault/internal/model"
)

// MemoryRegistry is an in-memory MediaRegistry for tests and local
// development. Objects are copied on write and on read so callers never
// share the stored struct.
type MemoryRegistry struct {
	mu      sync.RWMutex
	objects map[string]model.MediaObject
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{objects: make(map[string]model.MediaObject)}
}

var _ MediaRegistry = (*MemoryRegistry)(nil)

func (r *MemoryRegistry) Create(_ context.Context, obj *model.MediaObject) (*model.MediaObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[obj.ID] = *obj
	stored := r.objects[obj.ID]
	return &stored, nil
}

func (r *MemoryRegistry) FindByID(_ context.Context, id string) (*model.MediaObject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.objects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &obj, nil
}

func (r *MemoryRegistry) ListByOwner(_ context.Context, ownerID string, pq PageQuery) (*PageResult[model.MediaObject], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]model.MediaObject, 0)
	for _, obj := range r.objects {
		if obj.OwnerID == ownerID {
			items = append(items, obj)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	total := len(items)
	if pq.Offset >= total {
		return &PageResult[model.MediaObject]{Items: []model.MediaObject{}, Total: total}, nil
	}
	end := pq.Offset + pq.Limit
	if pq.Limit <= 0 || end > total {
		end = total
	}
	return &PageResult[model.MediaObject]{Items: items[pq.Offset:end], Total: total}, nil
}

func (r *MemoryRegistry) UpdateModeration(_ context.Context, id string, status model.ModerationStatus, verified bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj, ok := r.objects[id]
	if !ok {
		return ErrNotFound
	}
	if obj.ModerationStatus.Terminal() {
		return ErrAlreadyModerated
	}
	obj.ModerationStatus = status
	obj.Verified = verified
	r.objects[id] = obj
	return nil
}

func (r *MemoryRegistry) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.objects, id)
	return nil
}
