package model

import "time"

// ModerationStatus is the review outcome of an uploaded media object.
// It starts at pending and moves exactly once to approved or rejected;
// both of those are terminal.
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
)

// Terminal reports whether the status permits no further transitions.
func (s ModerationStatus) Terminal() bool {
	return s == ModerationApproved || s == ModerationRejected
}

// MediaKind is a closed classification of supported media, derived once
// from the declared mime type. Extraction and preview logic dispatch on
// the kind instead of re-inspecting mime strings.
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
	KindAudio MediaKind = "audio"
	KindOther MediaKind = "other"
)

// KindOf maps a declared mime type to its MediaKind.
func KindOf(mimeType string) MediaKind {
	switch mimeType {
	case "image/jpeg", "image/png", "image/webp":
		return KindImage
	case "video/mp4", "video/webm":
		return KindVideo
	case "audio/mp3", "audio/mpeg", "audio/wav", "audio/ogg":
		return KindAudio
	default:
		return KindOther
	}
}

// Dimensions holds pixel dimensions for visual media.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// MediaObject is the authoritative metadata record for one encrypted file.
// This is a pure domain model with no database-specific dependencies or tags.
//
// StoragePointer always refers to the encrypted blob, never to plaintext,
// and no key material is ever stored next to it.
type MediaObject struct {
	ID               string           `json:"id"`
	OwnerID          string           `json:"owner_id"`
	OriginalName     string           `json:"original_name"`
	MimeType         string           `json:"mime_type"`
	SizeBytes        int64            `json:"size_bytes"`
	StoragePointer   string           `json:"storage_pointer"`
	ThumbnailPointer string           `json:"thumbnail_pointer,omitempty"`
	Dimensions       *Dimensions      `json:"dimensions,omitempty"`
	DurationSeconds  *float64         `json:"duration_seconds,omitempty"`
	Encrypted        bool             `json:"encrypted"`
	ModerationStatus ModerationStatus `json:"moderation_status"`
	Verified         bool             `json:"verified"`
	CreatedAt        time.Time        `json:"created_at"`
}

// Kind returns the MediaKind derived from the object's mime type.
func (m *MediaObject) Kind() MediaKind {
	return KindOf(m.MimeType)
}
