// Package wrap implements per-option key-wrapping (spec.md §4.C): deriving
// a wrap key from an option's concatenated factor-keys via Argon2id, then
// sealing or opening the 32-byte primary key under it with
// ChaCha20-Poly1305.
package wrap

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/arctide/cyst/internal/cerrors"
	"github.com/arctide/cyst/internal/config"
)

// SaltSize is the length of the per-option salt.
const SaltSize = 32

// NonceSize is the length of the AEAD nonce used to wrap the primary key.
const NonceSize = chacha20poly1305.NonceSize

// PrimaryKeySize is the length of the primary key wrapped by every option.
const PrimaryKeySize = 32

// NewSalt generates a fresh random per-option salt.
func NewSalt() ([SaltSize]byte, error) {
	var salt [SaltSize]byte
	if _, err := io.ReadFull(rand.Reader, salt[:]); err != nil {
		return salt, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// deriveWrapKey runs Argon2id over the concatenated factor-keys and the
// option's salt, using the cost parameters in cfg.
//
// totalKey is the unseparated concatenation of every factor-key in the
// option, in the order the user added them (spec.md §4.C step 2). No
// length-prefix separates the individual factor-keys before hashing, so in
// principle two different factor-key sequences can concatenate to the same
// bytes (e.g. ("ab","c") and ("a","bc")). spec.md §9 flags this and directs
// implementations not to silently change it for the sake of wire-format
// compatibility with the original; it is accepted as-is here too.
func deriveWrapKey(totalKey []byte, salt [SaltSize]byte, cfg *config.Argon2Config) []byte {
	return argon2.IDKey(totalKey, salt[:], cfg.TimeCost, cfg.MemoryCostKiB, cfg.Parallelism, PrimaryKeySize)
}

// Seal derives a wrap key from totalKey and a freshly generated salt, then
// encrypts primaryKey under it. It returns the salt, the AEAD nonce, and the
// ciphertext (including the authentication tag) to be persisted in the
// option's header entry.
func Seal(primaryKey, totalKey []byte, cfg *config.Argon2Config) (salt [SaltSize]byte, nonce [NonceSize]byte, ciphertext []byte, err error) {
	salt, err = NewSalt()
	if err != nil {
		return salt, nonce, nil, err
	}

	wrapKey := deriveWrapKey(totalKey, salt, cfg)

	aead, err := chacha20poly1305.New(wrapKey)
	if err != nil {
		return salt, nonce, nil, fmt.Errorf("create wrap cipher: %w", err)
	}

	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return salt, nonce, nil, fmt.Errorf("generate wrap nonce: %w", err)
	}

	ciphertext = aead.Seal(nil, nonce[:], primaryKey, nil)
	return salt, nonce, ciphertext, nil
}

// Open recomputes the wrap key from totalKey and the stored salt, then
// decrypts ciphertext to recover the primary key. Any authentication
// failure is reported as cerrors.ErrDecryptionFailed, regardless of cause
// (wrong factor key, corrupted ciphertext, mismatched salt), so that the
// caller can't distinguish "wrong passphrase" from "tampered file".
func Open(ciphertext, totalKey []byte, salt [SaltSize]byte, nonce [NonceSize]byte, cfg *config.Argon2Config) ([]byte, error) {
	wrapKey := deriveWrapKey(totalKey, salt, cfg)

	aead, err := chacha20poly1305.New(wrapKey)
	if err != nil {
		return nil, fmt.Errorf("create wrap cipher: %w", err)
	}

	primaryKey, err := aead.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return nil, cerrors.ErrDecryptionFailed
	}
	return primaryKey, nil
}
