package validate

import "errors"

// Package validate enforces upload constraints before any encryption or
// storage I/O happens. Validation is pure: no side effects, no I/O.

var (
	ErrFileTooLarge    = errors.New("file exceeds the maximum allowed size")
	ErrUnsupportedType = errors.New("unsupported mime type")
)

// DefaultMaxSizeBytes is the default upload ceiling (50 MB).
const DefaultMaxSizeBytes int64 = 50 * 1024 * 1024

// DefaultAllowedMimeTypes lists the mime types accepted out of the box.
// audio/mpeg is accepted as an alias of audio/mp3 since that is what
// browsers actually send for mp3 files.
func DefaultAllowedMimeTypes() []string {
	return []string{
		"image/jpeg",
		"image/png",
		"image/webp",
		"video/mp4",
		"video/webm",
		"audio/mp3",
		"audio/mpeg",
		"audio/wav",
		"audio/ogg",
	}
}

// Validator checks candidate files against size and mime-type constraints.
type Validator struct {
	maxSizeBytes int64
	allowed      map[string]struct{}
}

// New creates a Validator. Zero maxSizeBytes and an empty allow-list fall
// back to the defaults.
func New(maxSizeBytes int64, allowedMimeTypes []string) *Validator {
	if maxSizeBytes <= 0 {
		maxSizeBytes = DefaultMaxSizeBytes
	}
	if len(allowedMimeTypes) == 0 {
		allowedMimeTypes = DefaultAllowedMimeTypes()
	}
	allowed := make(map[string]struct{}, len(allowedMimeTypes))
	for _, mt := range allowedMimeTypes {
		allowed[mt] = struct{}{}
	}
	return &Validator{maxSizeBytes: maxSizeBytes, allowed: allowed}
}

// Validate returns nil when the candidate passes, ErrFileTooLarge when the
// size exceeds the configured maximum, or ErrUnsupportedType when the mime
// type is not in the allow-list.
func (v *Validator) Validate(sizeBytes int64, mimeType string) error {
	if sizeBytes > v.maxSizeBytes {
		return ErrFileTooLarge
	}
	if _, ok := v.allowed[mimeType]; !ok {
		return ErrUnsupportedType
	}
	return nil
}

// MaxSizeBytes exposes the configured ceiling for callers building
// multipart limits.
func (v *Validator) MaxSizeBytes() int64 {
	return v.maxSizeBytes
}
