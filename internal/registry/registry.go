package registry

import (
	"context"
	"errors"

	"mediavault/internal/model"
)

// Package registry is the single source of truth mapping id -> MediaObject.
// Implementations must be safe under concurrent access from multiple upload
// and moderation workers; all mutation is keyed by id.

var (
	// ErrNotFound is returned when no record exists for the given id.
	ErrNotFound = errors.New("media not found")
	// ErrAlreadyModerated is returned when a moderation update targets a
	// record that already reached a terminal state. Terminal states are
	// never transitioned out of.
	ErrAlreadyModerated = errors.New("media already moderated")
)

// MediaRegistry defines data access for media objects. No business logic
// here, strictly persistence operations.
type MediaRegistry interface {
	// Create inserts a new media record and returns the stored object.
	Create(ctx context.Context, obj *model.MediaObject) (*model.MediaObject, error)

	// FindByID returns a media object by its ID, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*model.MediaObject, error)

	// ListByOwner returns a paginated list of one owner's media plus the
	// total count.
	ListByOwner(ctx context.Context, ownerID string, pq PageQuery) (*PageResult[model.MediaObject], error)

	// UpdateModeration transitions a pending record to a terminal status.
	// Returns ErrAlreadyModerated when the record is no longer pending and
	// ErrNotFound when it does not exist.
	UpdateModeration(ctx context.Context, id string, status model.ModerationStatus, verified bool) error

	// Delete removes a record by ID. Deleting a missing record returns nil.
	Delete(ctx context.Context, id string) error
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
type PageResult[T any] struct {
	Items []T
	Total int
}
