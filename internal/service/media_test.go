package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mediavault/internal/access"
	"mediavault/internal/crypto"
	"mediavault/internal/extract"
	"mediavault/internal/model"
	"mediavault/internal/registry"
	registrymocks "mediavault/internal/registry/mocks"
	"mediavault/internal/storage"
	storagemocks "mediavault/internal/storage/mocks"
	"mediavault/internal/validate"
)

// recordingEnqueuer captures moderation submissions without running workers.
type recordingEnqueuer struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (r *recordingEnqueuer) Enqueue(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.ids = append(r.ids, id)
	return nil
}

func (r *recordingEnqueuer) enqueued() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fixture struct {
	svc    MediaService
	reg    *registry.MemoryRegistry
	store  *storage.MemoryStore
	cipher crypto.Cipher
	queue  *recordingEnqueuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := registry.NewMemoryRegistry()
	store := storage.NewMemoryStore()
	cipher, err := crypto.NewAESGCMWithIterations([]byte("service-test-secret"), 1000)
	require.NoError(t, err)
	queue := &recordingEnqueuer{}
	broker := access.NewBroker(reg, store, cipher, nil, time.Minute)
	validator := validate.New(validate.DefaultMaxSizeBytes, validate.DefaultAllowedMimeTypes())
	svc := NewMediaService(validator, cipher, store, reg, extract.New(), queue, broker)
	return &fixture{svc: svc, reg: reg, store: store, cipher: cipher, queue: queue}
}

func TestUpload_ValidImageFullPipeline(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	data := pngBytes(t, 640, 480)

	results := fx.svc.Upload(ctx, "alice", []UploadFile{
		{Name: "beach.png", ContentType: "image/png", Data: data},
	}, UploadOptions{Encrypt: true, GenerateThumbnail: true})

	require.Len(t, results, 1)
	res := results[0]
	require.NoError(t, res.Err)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "beach.png", res.OriginalName)
	assert.Equal(t, int64(len(data)), res.Size)
	assert.Equal(t, "media/"+res.ID, res.EncryptedURL)
	assert.Equal(t, "thumbs/"+res.ID, res.ThumbnailURL)

	// Blob at rest is the sealed envelope, not the plaintext.
	envelope, err := fx.store.Get(ctx, res.EncryptedURL)
	require.NoError(t, err)
	assert.NotEqual(t, data, envelope)
	plaintext, err := fx.cipher.Decrypt(envelope)
	require.NoError(t, err)
	assert.Equal(t, data, plaintext)

	obj, err := fx.reg.FindByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", obj.OwnerID)
	assert.Equal(t, model.ModerationPending, obj.ModerationStatus)
	assert.False(t, obj.Verified)
	assert.True(t, obj.Encrypted)
	require.NotNil(t, obj.Dimensions)
	assert.Equal(t, 640, obj.Dimensions.Width)
	assert.Equal(t, 480, obj.Dimensions.Height)

	assert.Equal(t, []string{res.ID}, fx.queue.enqueued())
}

func TestUpload_OversizedFileLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	results := fx.svc.Upload(ctx, "alice", []UploadFile{
		{Name: "huge.bin", ContentType: "image/jpeg", Data: make([]byte, 60<<20)},
	}, UploadOptions{Encrypt: true, GenerateThumbnail: true})

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, validate.ErrFileTooLarge)
	assert.Empty(t, results[0].ID)

	assert.Equal(t, 0, fx.store.Len())
	page, err := fx.reg.ListByOwner(ctx, "alice", registry.PageQuery{Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, fx.queue.enqueued())
}

func TestUpload_UnsupportedTypeRejected(t *testing.T) {
	fx := newFixture(t)

	results := fx.svc.Upload(context.Background(), "alice", []UploadFile{
		{Name: "run.exe", ContentType: "application/octet-stream", Data: []byte{0x4d, 0x5a}},
	}, UploadOptions{Encrypt: true, GenerateThumbnail: true})

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, validate.ErrUnsupportedType)
	assert.Equal(t, 0, fx.store.Len())
}

func TestUpload_BatchReportsPerItemOutcomes(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	good := pngBytes(t, 32, 32)

	results := fx.svc.Upload(ctx, "alice", []UploadFile{
		{Name: "ok1.png", ContentType: "image/png", Data: good},
		{Name: "bad.tiff", ContentType: "image/tiff", Data: []byte("II*")},
		{Name: "ok2.png", ContentType: "image/png", Data: good},
	}, UploadOptions{Encrypt: true, GenerateThumbnail: false})

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "ok1.png", results[0].OriginalName)
	assert.ErrorIs(t, results[1].Err, validate.ErrUnsupportedType)
	assert.Equal(t, "bad.tiff", results[1].OriginalName)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, "ok2.png", results[2].OriginalName)

	page, err := fx.reg.ListByOwner(ctx, "alice", registry.PageQuery{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, fx.queue.enqueued(), 2)
}

func TestUpload_EncryptOptOutStoresPlaintext(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	data := pngBytes(t, 16, 16)

	results := fx.svc.Upload(ctx, "alice", []UploadFile{
		{Name: "open.png", ContentType: "image/png", Data: data},
	}, UploadOptions{Encrypt: false, GenerateThumbnail: false})

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	blob, err := fx.store.Get(ctx, results[0].EncryptedURL)
	require.NoError(t, err)
	assert.Equal(t, data, blob)

	obj, err := fx.reg.FindByID(ctx, results[0].ID)
	require.NoError(t, err)
	assert.False(t, obj.Encrypted)
}

func TestUpload_ThumbnailSkippedForNonImages(t *testing.T) {
	fx := newFixture(t)

	results := fx.svc.Upload(context.Background(), "alice", []UploadFile{
		{Name: "clip.mp4", ContentType: "video/mp4", Data: []byte("not a real container")},
	}, UploadOptions{Encrypt: true, GenerateThumbnail: true})

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Empty(t, results[0].ThumbnailURL)
	assert.Equal(t, 1, fx.store.Len())
}

func TestUpload_MissingOwner(t *testing.T) {
	fx := newFixture(t)

	results := fx.svc.Upload(context.Background(), "", []UploadFile{
		{Name: "a.png", ContentType: "image/png", Data: pngBytes(t, 8, 8)},
	}, UploadOptions{Encrypt: true, GenerateThumbnail: false})

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, ErrOwnerRequired)
}

func TestUpload_QueueFullIsNotAnUploadFailure(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.queue.err = errors.New("moderation queue full")

	results := fx.svc.Upload(ctx, "alice", []UploadFile{
		{Name: "a.png", ContentType: "image/png", Data: pngBytes(t, 8, 8)},
	}, UploadOptions{Encrypt: true, GenerateThumbnail: false})

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	obj, err := fx.reg.FindByID(ctx, results[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.ModerationPending, obj.ModerationStatus)
}

func TestUpload_RegistryFailureCleansUpBlobs(t *testing.T) {
	ctx := context.Background()

	store := new(storagemocks.MockObjectStore)
	reg := new(registrymocks.MockMediaRegistry)
	cipher, err := crypto.NewAESGCMWithIterations([]byte("service-test-secret"), 1000)
	require.NoError(t, err)
	queue := &recordingEnqueuer{}
	broker := access.NewBroker(reg, store, cipher, nil, time.Minute)
	validator := validate.New(validate.DefaultMaxSizeBytes, validate.DefaultAllowedMimeTypes())
	svc := NewMediaService(validator, cipher, store, reg, extract.New(), queue, broker)

	store.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "media/") || strings.HasPrefix(key, "thumbs/")
	}), mock.Anything, mock.Anything).Return(nil)
	reg.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
	store.On("Delete", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "media/")
	})).Return(nil)
	store.On("Delete", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "thumbs/")
	})).Return(nil)

	results := svc.Upload(ctx, "alice", []UploadFile{
		{Name: "a.png", ContentType: "image/png", Data: pngBytes(t, 64, 64)},
	}, UploadOptions{Encrypt: true, GenerateThumbnail: true})

	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	assert.Contains(t, results[0].Err.Error(), "register media")

	// Both the envelope and the thumbnail blob must be rolled back.
	store.AssertNumberOfCalls(t, "Delete", 2)
	assert.Empty(t, queue.enqueued())
}

// cancelAwareStore refuses work once the request context is cancelled, the
// way the MinIO client does.
type cancelAwareStore struct {
	inner *storage.MemoryStore
}

func (s *cancelAwareStore) Put(ctx context.Context, key string, data []byte, opt storage.PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.inner.Put(ctx, key, data, opt)
}

func (s *cancelAwareStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.inner.Get(ctx, key)
}

func (s *cancelAwareStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.inner.Delete(ctx, key)
}

// abortingRegistry simulates a client abort landing mid-pipeline: Create
// observes the upload's context getting cancelled and fails.
type abortingRegistry struct {
	*registry.MemoryRegistry
	cancel context.CancelFunc
}

func (r *abortingRegistry) Create(ctx context.Context, obj *model.MediaObject) (*model.MediaObject, error) {
	r.cancel()
	return nil, ctx.Err()
}

func TestUpload_AbortedRequestStillCleansUpBlobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inner := storage.NewMemoryStore()
	store := &cancelAwareStore{inner: inner}
	reg := &abortingRegistry{MemoryRegistry: registry.NewMemoryRegistry(), cancel: cancel}
	cipher, err := crypto.NewAESGCMWithIterations([]byte("service-test-secret"), 1000)
	require.NoError(t, err)
	queue := &recordingEnqueuer{}
	broker := access.NewBroker(reg, store, cipher, nil, time.Minute)
	validator := validate.New(validate.DefaultMaxSizeBytes, validate.DefaultAllowedMimeTypes())
	svc := NewMediaService(validator, cipher, store, reg, extract.New(), queue, broker)

	results := svc.Upload(ctx, "alice", []UploadFile{
		{Name: "a.png", ContentType: "image/png", Data: pngBytes(t, 64, 64)},
	}, UploadOptions{Encrypt: true, GenerateThumbnail: true})

	require.Len(t, results, 1)
	require.Error(t, results[0].Err)

	// Both the envelope and the thumbnail must be rolled back even though
	// the request context is already cancelled.
	assert.Equal(t, 0, inner.Len())
	assert.Empty(t, queue.enqueued())
}

func TestDelete_OwnerCascade(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	results := fx.svc.Upload(ctx, "alice", []UploadFile{
		{Name: "a.png", ContentType: "image/png", Data: pngBytes(t, 64, 64)},
	}, UploadOptions{Encrypt: true, GenerateThumbnail: true})
	require.NoError(t, results[0].Err)
	require.Equal(t, 2, fx.store.Len())

	require.NoError(t, fx.svc.Delete(ctx, results[0].ID, "alice"))

	assert.Equal(t, 0, fx.store.Len())
	_, err := fx.reg.FindByID(ctx, results[0].ID)
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestDelete_NonOwnerDenied(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	results := fx.svc.Upload(ctx, "alice", []UploadFile{
		{Name: "a.png", ContentType: "image/png", Data: pngBytes(t, 8, 8)},
	}, UploadOptions{Encrypt: true, GenerateThumbnail: false})
	require.NoError(t, results[0].Err)

	err := fx.svc.Delete(ctx, results[0].ID, "mallory")
	assert.ErrorIs(t, err, access.ErrDenied)

	// The object survives the failed attempt.
	_, findErr := fx.reg.FindByID(ctx, results[0].ID)
	assert.NoError(t, findErr)
}

func TestDelete_MissingMedia(t *testing.T) {
	fx := newFixture(t)
	err := fx.svc.Delete(context.Background(), "no-such-id", "alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAccess_OwnerRoundTrip(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	data := pngBytes(t, 64, 64)

	results := fx.svc.Upload(ctx, "alice", []UploadFile{
		{Name: "a.png", ContentType: "image/png", Data: data},
	}, UploadOptions{Encrypt: true, GenerateThumbnail: false})
	require.NoError(t, results[0].Err)

	grant, err := fx.svc.Access(ctx, results[0].ID, "alice")
	require.NoError(t, err)

	token := strings.TrimPrefix(grant.URL, "/api/media/view/")
	got, contentType, err := fx.svc.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, "image/png", contentType)
}

func TestAccess_BlankIdentifiers(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.Access(context.Background(), "", "alice")
	assert.ErrorIs(t, err, access.ErrDenied)
	_, err = fx.svc.Access(context.Background(), "m1", "")
	assert.ErrorIs(t, err, access.ErrDenied)
}

func TestStatus_Progress(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	results := fx.svc.Upload(ctx, "alice", []UploadFile{
		{Name: "a.png", ContentType: "image/png", Data: pngBytes(t, 8, 8)},
	}, UploadOptions{Encrypt: true, GenerateThumbnail: false})
	require.NoError(t, results[0].Err)
	id := results[0].ID

	st, err := fx.svc.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.ModerationPending, st.Status)
	assert.Equal(t, 50, st.Progress)

	require.NoError(t, fx.reg.UpdateModeration(ctx, id, model.ModerationApproved, true))

	st, err = fx.svc.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.ModerationApproved, st.Status)
	assert.Equal(t, 100, st.Progress)
}

func TestListByOwner_DefaultsAndPaging(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	data := pngBytes(t, 8, 8)

	for i := 0; i < 3; i++ {
		results := fx.svc.Upload(ctx, "alice", []UploadFile{
			{Name: "a.png", ContentType: "image/png", Data: data},
		}, UploadOptions{Encrypt: true, GenerateThumbnail: false})
		require.NoError(t, results[0].Err)
	}

	page, err := fx.svc.ListByOwner(ctx, "alice", 0, -5)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 3)

	page, err = fx.svc.ListByOwner(ctx, "alice", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 1)

	_, err = fx.svc.ListByOwner(ctx, "", 10, 0)
	assert.ErrorIs(t, err, ErrOwnerRequired)
}
