package access

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"mediavault/internal/crypto"
	"mediavault/internal/model"
	"mediavault/internal/registry"
	"mediavault/internal/storage"
)

// Package access decides whether a requester may view plaintext media and,
// if so, issues a short-lived grant behind a randomly tokened URL. Grants
// are time-bound only; they cannot be revoked once issued.

var (
	// ErrDenied covers both a missing object and an unauthorized
	// requester. A single sentinel keeps handlers from leaking whether
	// unauthorized media exists.
	ErrDenied = errors.New("media not found or access denied")
	// ErrGrantExpired is returned when a token is unknown or past its TTL.
	ErrGrantExpired = errors.New("grant expired or unknown")
)

// DefaultTTL is the grant lifetime when none is configured.
const DefaultTTL = time.Hour

// AuthorizeFunc is the injected relationship predicate, delegated to the
// matching subsystem. It answers whether requesterID holds an
// authorization relationship to ownerID.
type AuthorizeFunc func(ctx context.Context, ownerID, requesterID string) (bool, error)

// Grant is the ephemeral result of an authorized access request. It is
// never persisted beyond its TTL.
type Grant struct {
	MediaID   string
	IssuedTo  string
	URL       string
	ExpiresAt time.Time
}

type grantEntry struct {
	data        []byte
	contentType string
	expiresAt   time.Time
}

// Broker authorizes requesters, decrypts on demand, and serves the
// resulting plaintext behind ephemeral URLs. A single media object may
// hold multiple concurrently valid grants.
type Broker struct {
	reg       registry.MediaRegistry
	store     storage.ObjectStore
	cipher    crypto.Cipher
	authorize AuthorizeFunc
	ttl       time.Duration

	mu     sync.Mutex
	grants map[string]grantEntry

	now func() time.Time
}

// NewBroker creates an access broker. A nil authorize predicate denies
// every non-owner; a non-positive ttl falls back to DefaultTTL.
func NewBroker(reg registry.MediaRegistry, store storage.ObjectStore, cipher crypto.Cipher, authorize AuthorizeFunc, ttl time.Duration) *Broker {
	if authorize == nil {
		authorize = func(context.Context, string, string) (bool, error) { return false, nil }
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Broker{
		reg:       reg,
		store:     store,
		cipher:    cipher,
		authorize: authorize,
		ttl:       ttl,
		grants:    make(map[string]grantEntry),
		now:       time.Now,
	}
}

// Request authorizes (mediaID, requesterID) and issues a grant. The owner
// is always allowed regardless of moderation status so uploaders can
// preview their own content; everyone else needs an approved object plus a
// positive relationship check.
func (b *Broker) Request(ctx context.Context, mediaID, requesterID string) (*Grant, error) {
	obj, err := b.reg.FindByID(ctx, mediaID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return nil, ErrDenied
		}
		return nil, fmt.Errorf("registry lookup: %w", err)
	}

	if requesterID != obj.OwnerID {
		if obj.ModerationStatus != model.ModerationApproved {
			return nil, ErrDenied
		}
		ok, err := b.authorize(ctx, obj.OwnerID, requesterID)
		if err != nil {
			return nil, fmt.Errorf("authorization check: %w", err)
		}
		if !ok {
			return nil, ErrDenied
		}
	}

	envelope, err := b.store.Get(ctx, obj.StoragePointer)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrDenied
		}
		return nil, fmt.Errorf("fetch envelope: %w", err)
	}

	plaintext := envelope
	if obj.Encrypted {
		plaintext, err = b.cipher.Decrypt(envelope)
		if err != nil {
			return nil, fmt.Errorf("open media %s: %w", mediaID, err)
		}
	}

	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	expiresAt := b.now().Add(b.ttl)

	b.mu.Lock()
	b.sweepLocked()
	b.grants[token] = grantEntry{data: plaintext, contentType: obj.MimeType, expiresAt: expiresAt}
	b.mu.Unlock()

	return &Grant{
		MediaID:   mediaID,
		IssuedTo:  requesterID,
		URL:       "/api/media/view/" + token,
		ExpiresAt: expiresAt,
	}, nil
}

// Resolve exchanges a token for the decrypted bytes and their content
// type. Unknown and expired tokens are indistinguishable.
func (b *Broker) Resolve(token string) ([]byte, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.grants[token]
	if !ok {
		return nil, "", ErrGrantExpired
	}
	if b.now().After(entry.expiresAt) {
		delete(b.grants, token)
		return nil, "", ErrGrantExpired
	}
	return entry.data, entry.contentType, nil
}

// sweepLocked drops expired grants. Caller holds b.mu.
func (b *Broker) sweepLocked() {
	now := b.now()
	for token, entry := range b.grants {
		if now.After(entry.expiresAt) {
			delete(b.grants, token)
		}
	}
}

// newToken returns a 32-hex-char token from crypto/rand. Tokens are never
// written to logs.
func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
