package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediavault/internal/model"
)

func newMedia(id, owner string) *model.MediaObject {
	return &model.MediaObject{
		ID:               id,
		OwnerID:          owner,
		OriginalName:     "photo.jpg",
		MimeType:         "image/jpeg",
		SizeBytes:        1234,
		StoragePointer:   "media/" + id,
		Encrypted:        true,
		ModerationStatus: model.ModerationPending,
		CreatedAt:        time.Now().UTC(),
	}
}

func TestMemoryRegistry_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()

	stored, err := r.Create(ctx, newMedia("m1", "u1"))
	require.NoError(t, err)
	assert.Equal(t, "m1", stored.ID)

	got, err := r.FindByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.OwnerID)
	assert.Equal(t, model.ModerationPending, got.ModerationStatus)

	// Mutating the returned copy must not alter the stored record.
	got.OwnerID = "intruder"
	again, err := r.FindByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "u1", again.OwnerID)
}

func TestMemoryRegistry_FindMissing(t *testing.T) {
	_, err := NewMemoryRegistry().FindByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRegistry_UpdateModeration(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()
	_, err := r.Create(ctx, newMedia("m1", "u1"))
	require.NoError(t, err)

	require.NoError(t, r.UpdateModeration(ctx, "m1", model.ModerationApproved, true))

	got, err := r.FindByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, model.ModerationApproved, got.ModerationStatus)
	assert.True(t, got.Verified)

	// Terminal states are never transitioned out of.
	err = r.UpdateModeration(ctx, "m1", model.ModerationRejected, false)
	assert.ErrorIs(t, err, ErrAlreadyModerated)

	got, err = r.FindByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, model.ModerationApproved, got.ModerationStatus)
	assert.True(t, got.Verified)
}

func TestMemoryRegistry_UpdateModerationMissing(t *testing.T) {
	err := NewMemoryRegistry().UpdateModeration(context.Background(), "ghost", model.ModerationApproved, true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRegistry_Delete(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()
	_, err := r.Create(ctx, newMedia("m1", "u1"))
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, "m1"))
	_, err = r.FindByID(ctx, "m1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing record is not an error.
	assert.NoError(t, r.Delete(ctx, "m1"))
}

func TestMemoryRegistry_ListByOwner(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		m := newMedia(fmt.Sprintf("m%d", i), "u1")
		m.CreatedAt = base.Add(time.Duration(i) * time.Second)
		_, err := r.Create(ctx, m)
		require.NoError(t, err)
	}
	_, err := r.Create(ctx, newMedia("other", "u2"))
	require.NoError(t, err)

	res, err := r.ListByOwner(ctx, "u1", PageQuery{Limit: 3, Offset: 0})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
	require.Len(t, res.Items, 3)
	// Newest first
	assert.Equal(t, "m4", res.Items[0].ID)

	res, err = r.ListByOwner(ctx, "u1", PageQuery{Limit: 3, Offset: 3})
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)

	res, err = r.ListByOwner(ctx, "u1", PageQuery{Limit: 3, Offset: 99})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, 5, res.Total)
}

func TestMemoryRegistry_ConcurrentModeration(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()
	_, err := r.Create(ctx, newMedia("m1", "u1"))
	require.NoError(t, err)

	// Racing workers: exactly one transition may win.
	var wg sync.WaitGroup
	var approved, rejected, conflicts int
	var mu sync.Mutex
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := model.ModerationApproved
			if i%2 == 1 {
				status = model.ModerationRejected
			}
			err := r.UpdateModeration(ctx, "m1", status, status == model.ModerationApproved)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && status == model.ModerationApproved:
				approved++
			case err == nil:
				rejected++
			default:
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, approved+rejected)
	assert.Equal(t, 9, conflicts)
}
