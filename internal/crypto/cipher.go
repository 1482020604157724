package crypto

import "errors"

// Package crypto contains the envelope cipher used for media at rest.
// Implementations are stateless per call and safe for concurrent use.

// ErrDecryptionFailed is returned for any failure to reverse an envelope:
// truncated input, tag mismatch, or key derivation against a different
// master secret. Decryption fails closed; partial plaintext is never
// returned.
var ErrDecryptionFailed = errors.New("decryption failed")

// Cipher transforms plaintext into a self-contained encrypted envelope and
// back. The envelope carries everything needed for decryption except the
// master secret itself.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(envelope []byte) ([]byte, error)
}

// NoopCipher passes bytes through unchanged. It backs uploads stored
// without encryption and keeps tests independent of key material.
type NoopCipher struct{}

func (NoopCipher) Encrypt(plaintext []byte) ([]byte, error) { return plaintext, nil }
func (NoopCipher) Decrypt(envelope []byte) ([]byte, error)  { return envelope, nil }
