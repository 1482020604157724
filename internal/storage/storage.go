package storage

import (
	"context"
	"errors"
)

// Package storage abstracts durable storage of opaque byte blobs (encrypted
// envelopes and thumbnails). Backends are swappable without changing any
// caller: MinIO/S3 for production, an in-memory store for tests and local
// development.

var (
	// ErrObjectNotFound is returned by Get for a pointer with no blob.
	ErrObjectNotFound = errors.New("object not found")
	// ErrStorageFailure wraps terminal backend failures after retries are
	// exhausted.
	ErrStorageFailure = errors.New("storage failure")
)

// PutOptions define optional parameters for uploading objects.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// ObjectStore is the gateway to the underlying blob store. All blobs are
// opaque to the store; it never sees plaintext media. Put is idempotent
// under retry: writing the same key twice leaves the last write visible,
// and a failed write leaves no partial object visible to Get.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, opt PutOptions) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
