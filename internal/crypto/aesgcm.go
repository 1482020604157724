package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltSize is the per-object PBKDF2 salt length.
	SaltSize = 16
	// IVSize is the GCM nonce length used by the envelope format.
	IVSize = 16
	// TagSize is the GCM authentication tag length.
	TagSize = 16
	// KeySize selects AES-256.
	KeySize = 32

	// DefaultIterations is the PBKDF2 iteration count. High enough to
	// resist brute force while keeping per-upload derivation latency
	// bounded.
	DefaultIterations = 100_000

	headerSize = SaltSize + IVSize + TagSize
)

// AESGCMCipher implements Cipher using AES-256-GCM with a per-envelope key
// derived via PBKDF2 from a process-wide master secret and a fresh random
// salt.
//
// Envelope layout: salt(16) || iv(16) || tag(16) || ciphertext. The salt
// and IV are generated fresh on every Encrypt call; an IV/key pair is never
// reused across objects, which GCM requires for its confidentiality
// guarantees to hold.
type AESGCMCipher struct {
	masterSecret []byte
	iterations   int
}

// NewAESGCM creates an AESGCMCipher from the process master secret.
func NewAESGCM(masterSecret []byte) (*AESGCMCipher, error) {
	return NewAESGCMWithIterations(masterSecret, DefaultIterations)
}

// NewAESGCMWithIterations allows overriding the PBKDF2 iteration count.
// Tests use a small count to keep key derivation fast.
func NewAESGCMWithIterations(masterSecret []byte, iterations int) (*AESGCMCipher, error) {
	if len(masterSecret) == 0 {
		return nil, errors.New("master secret is required")
	}
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	secret := make([]byte, len(masterSecret))
	copy(secret, masterSecret)
	return &AESGCMCipher{masterSecret: secret, iterations: iterations}, nil
}

var _ Cipher = (*AESGCMCipher)(nil)

func (c *AESGCMCipher) deriveKey(salt []byte) []byte {
	return pbkdf2.Key(c.masterSecret, salt, c.iterations, KeySize, sha256.New)
}

func (c *AESGCMCipher) newAEAD(salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.deriveKey(salt))
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return aead, nil
}

// Encrypt produces a self-contained envelope from plaintext.
func (c *AESGCMCipher) Encrypt(plaintext []byte) ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}

	aead, err := c.newAEAD(salt)
	if err != nil {
		return nil, err
	}

	// Seal appends the tag to the ciphertext; the envelope keeps the tag
	// in its fixed header slot instead.
	sealed := aead.Seal(nil, iv, plaintext, nil)
	ct := sealed[:len(sealed)-TagSize]
	tag := sealed[len(sealed)-TagSize:]

	envelope := make([]byte, 0, headerSize+len(ct))
	envelope = append(envelope, salt...)
	envelope = append(envelope, iv...)
	envelope = append(envelope, tag...)
	envelope = append(envelope, ct...)
	return envelope, nil
}

// Decrypt reverses Encrypt. Any malformed envelope or tag mismatch yields
// ErrDecryptionFailed.
func (c *AESGCMCipher) Decrypt(envelope []byte) ([]byte, error) {
	if len(envelope) < headerSize {
		return nil, fmt.Errorf("%w: envelope too short", ErrDecryptionFailed)
	}
	salt := envelope[:SaltSize]
	iv := envelope[SaltSize : SaltSize+IVSize]
	tag := envelope[SaltSize+IVSize : headerSize]
	ct := envelope[headerSize:]

	aead, err := c.newAEAD(salt)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ct)+TagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	// A non-nil destination keeps the empty-plaintext result non-nil, so
	// round-tripping an empty object yields an empty slice, not nil.
	plaintext, err := aead.Open(make([]byte, 0, len(ct)), iv, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}
