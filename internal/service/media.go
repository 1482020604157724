package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediavault/internal/access"
	"mediavault/internal/crypto"
	"mediavault/internal/extract"
	"mediavault/internal/model"
	"mediavault/internal/moderation"
	"mediavault/internal/registry"
	"mediavault/internal/storage"
	"mediavault/internal/validate"
)

var (
	ErrIDRequired    = errors.New("id is required")
	ErrOwnerRequired = errors.New("owner id is required")
	ErrNotFound      = registry.ErrNotFound
)

// UploadFile is one candidate file in a batch upload.
type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadOptions mirror the request flags; both default to true at the
// handler layer.
type UploadOptions struct {
	Encrypt           bool
	GenerateThumbnail bool
}

// UploadResult reports one file's outcome. Batch uploads report per-item
// success and failure; one corrupt file never discards its siblings.
type UploadResult struct {
	ID           string
	OriginalName string
	MimeType     string
	Size         int64
	EncryptedURL string
	ThumbnailURL string
	Err          error
}

// StatusResult is the moderation status surface for one media object.
type StatusResult struct {
	Status   model.ModerationStatus
	Progress int
}

// MediaService defines the use cases for the encrypted media lifecycle.
type MediaService interface {
	// Upload runs the full pipeline per file, fanned out across the
	// batch: validate, extract, encrypt, store, register, enqueue for
	// moderation. Results are positional.
	Upload(ctx context.Context, ownerID string, files []UploadFile, opts UploadOptions) []UploadResult

	// Access authorizes a requester and issues an ephemeral grant.
	Access(ctx context.Context, mediaID, requesterID string) (*access.Grant, error)

	// Resolve exchanges a grant token for decrypted bytes.
	Resolve(token string) ([]byte, string, error)

	// Delete removes an owner's media: blobs first, registry row last.
	Delete(ctx context.Context, mediaID, requesterID string) error

	// Status reports the moderation state and a coarse progress figure.
	Status(ctx context.Context, mediaID string) (*StatusResult, error)

	// ListByOwner returns one owner's media, paginated.
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) (*registry.PageResult[model.MediaObject], error)
}

type mediaService struct {
	validator *validate.Validator
	cipher    crypto.Cipher
	store     storage.ObjectStore
	reg       registry.MediaRegistry
	extractor *extract.Extractor
	queue     moderation.Enqueuer
	broker    *access.Broker
}

// NewMediaService constructs the media pipeline service with its
// collaborators injected.
func NewMediaService(
	validator *validate.Validator,
	cipher crypto.Cipher,
	store storage.ObjectStore,
	reg registry.MediaRegistry,
	extractor *extract.Extractor,
	queue moderation.Enqueuer,
	broker *access.Broker,
) MediaService {
	return &mediaService{
		validator: validator,
		cipher:    cipher,
		store:     store,
		reg:       reg,
		extractor: extractor,
		queue:     queue,
		broker:    broker,
	}
}

// Upload fans the batch out, one goroutine per file. A failure in one
// file's pipeline never blocks or corrupts the others.
func (s *mediaService) Upload(ctx context.Context, ownerID string, files []UploadFile, opts UploadOptions) []UploadResult {
	results := make([]UploadResult, len(files))

	var wg sync.WaitGroup
	for i := range files {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.uploadOne(ctx, ownerID, files[i], opts)
		}(i)
	}
	wg.Wait()

	return results
}

func (s *mediaService) uploadOne(ctx context.Context, ownerID string, f UploadFile, opts UploadOptions) UploadResult {
	res := UploadResult{
		OriginalName: f.Name,
		MimeType:     f.ContentType,
		Size:         int64(len(f.Data)),
	}

	if ownerID == "" {
		res.Err = ErrOwnerRequired
		return res
	}
	// Validation runs before any expensive work.
	if err := s.validator.Validate(res.Size, f.ContentType); err != nil {
		res.Err = err
		return res
	}

	// Metadata and preview come from plaintext, before it is sealed.
	// Extraction failure is non-fatal; the fields just stay absent.
	var meta extract.Metadata
	if md, err := s.extractor.Probe(f.Data, f.ContentType); err == nil {
		meta = md
	}
	var thumb []byte
	if opts.GenerateThumbnail && model.KindOf(f.ContentType) == model.KindImage {
		if t, err := s.extractor.Thumbnail(f.Data, f.ContentType); err == nil {
			thumb = t
		}
	}

	cipher := s.cipher
	if !opts.Encrypt {
		cipher = crypto.NoopCipher{}
	}
	envelope, err := cipher.Encrypt(f.Data)
	if err != nil {
		res.Err = fmt.Errorf("encrypt: %w", err)
		return res
	}

	id := uuid.New().String()
	key := "media/" + id

	if err := s.store.Put(ctx, key, envelope, storage.PutOptions{
		ContentType: "application/octet-stream",
		Metadata:    map[string]string{"original-filename": f.Name},
	}); err != nil {
		res.Err = fmt.Errorf("store envelope: %w", err)
		return res
	}

	var thumbKey string
	if thumb != nil {
		sealed, err := cipher.Encrypt(thumb)
		if err == nil {
			thumbKey = "thumbs/" + id
			if err := s.store.Put(ctx, thumbKey, sealed, storage.PutOptions{ContentType: "application/octet-stream"}); err != nil {
				s.cleanup(ctx, key, "")
				res.Err = fmt.Errorf("store thumbnail: %w", err)
				return res
			}
		}
	}

	// Registry creation is the last step of a successful pipeline, never
	// the first, so an aborted upload leaves no record behind.
	obj := &model.MediaObject{
		ID:               id,
		OwnerID:          ownerID,
		OriginalName:     f.Name,
		MimeType:         f.ContentType,
		SizeBytes:        res.Size,
		StoragePointer:   key,
		ThumbnailPointer: thumbKey,
		Dimensions:       meta.Dimensions,
		DurationSeconds:  meta.DurationSeconds,
		Encrypted:        opts.Encrypt,
		ModerationStatus: model.ModerationPending,
		Verified:         false,
		CreatedAt:        time.Now().UTC(),
	}
	stored, err := s.reg.Create(ctx, obj)
	if err != nil {
		s.cleanup(ctx, key, thumbKey)
		res.Err = fmt.Errorf("register media: %w", err)
		return res
	}

	// Enqueue is ordered after Create so classification always observes
	// the record. A full queue leaves the object pending, which is a
	// valid owner-visible state.
	_ = s.queue.Enqueue(stored.ID)

	res.ID = stored.ID
	res.EncryptedURL = stored.StoragePointer
	res.ThumbnailURL = stored.ThumbnailPointer
	return res
}

// cleanup removes partially written blobs after a failed pipeline stage.
// It runs on a context detached from the request: an aborted upload is
// precisely when the request context is already cancelled, and the orphaned
// blobs must still be removed.
func (s *mediaService) cleanup(ctx context.Context, key, thumbKey string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	_ = s.store.Delete(ctx, key)
	if thumbKey != "" {
		_ = s.store.Delete(ctx, thumbKey)
	}
}

func (s *mediaService) Access(ctx context.Context, mediaID, requesterID string) (*access.Grant, error) {
	if mediaID == "" || requesterID == "" {
		return nil, access.ErrDenied
	}
	return s.broker.Request(ctx, mediaID, requesterID)
}

func (s *mediaService) Resolve(token string) ([]byte, string, error) {
	return s.broker.Resolve(token)
}

// Delete removes an owner's media object. Blob deletion must succeed
// before the registry row goes away: an orphaned blob is a recoverable
// leak, a registry row pointing at nothing is not.
func (s *mediaService) Delete(ctx context.Context, mediaID, requesterID string) error {
	if mediaID == "" {
		return ErrIDRequired
	}
	obj, err := s.reg.FindByID(ctx, mediaID)
	if err != nil {
		return err
	}
	if obj.OwnerID != requesterID {
		return access.ErrDenied
	}
	if err := s.store.Delete(ctx, obj.StoragePointer); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	if obj.ThumbnailPointer != "" {
		if err := s.store.Delete(ctx, obj.ThumbnailPointer); err != nil {
			return fmt.Errorf("delete thumbnail: %w", err)
		}
	}
	return s.reg.Delete(ctx, mediaID)
}

func (s *mediaService) Status(ctx context.Context, mediaID string) (*StatusResult, error) {
	if mediaID == "" {
		return nil, ErrIDRequired
	}
	obj, err := s.reg.FindByID(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	progress := 50
	if obj.ModerationStatus.Terminal() {
		progress = 100
	}
	return &StatusResult{Status: obj.ModerationStatus, Progress: progress}, nil
}

func (s *mediaService) ListByOwner(ctx context.Context, ownerID string, limit, offset int) (*registry.PageResult[model.MediaObject], error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	return s.reg.ListByOwner(ctx, ownerID, registry.PageQuery{Limit: limit, Offset: offset})
}
