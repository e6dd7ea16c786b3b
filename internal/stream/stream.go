// Package stream implements the chunked STREAM-style AEAD pipeline that
// encrypts and decrypts payloads of unbounded length (spec.md §4.D).
//
// Each chunk's nonce is built from a 7-byte per-file prefix, a big-endian
// 32-bit chunk counter, and a 1-byte "is this the last chunk" flag — 12
// bytes total, matching ChaCha20-Poly1305's nonce size. This is the same
// construction the original Rust implementation gets from the RustCrypto
// `aead::stream::{EncryptorBE32, DecryptorBE32}` types; there is no
// off-the-shelf Go equivalent, so it is reimplemented directly here on top
// of golang.org/x/crypto/chacha20poly1305, following the hand-rolled
// nonce-prefix-plus-counter idiom used elsewhere in this corpus for chunked
// file encryption (see DESIGN.md).
package stream

import (
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/arctide/cyst/internal/cerrors"
)

// ChunkSize is the fixed plaintext size of every chunk but the last.
const ChunkSize = 4096

// NoncePrefixSize is the length of the per-file nonce prefix persisted in
// the envelope header (spec.md §3's "stream nonce").
const NoncePrefixSize = 7

// Overhead is the number of bytes ChaCha20-Poly1305 appends to every chunk
// (the authentication tag).
const Overhead = chacha20poly1305.Overhead

const aeadNonceSize = chacha20poly1305.NonceSize // 12: 7-byte prefix + 4-byte counter + 1-byte last flag

type runState int

const (
	fresh runState = iota
	streamingState
	finalized
)

func buildNonce(prefix [NoncePrefixSize]byte, counter uint32, last bool) [aeadNonceSize]byte {
	var nonce [aeadNonceSize]byte
	copy(nonce[:NoncePrefixSize], prefix[:])
	binary.BigEndian.PutUint32(nonce[NoncePrefixSize:NoncePrefixSize+4], counter)
	if last {
		nonce[aeadNonceSize-1] = 1
	}
	return nonce
}

// Encryptor is a Fresh -> Streaming -> Finalized state machine over
// ChaCha20-Poly1305. Next may be called any number of times while
// Streaming; Last must be called exactly once, even for a zero-length
// final chunk, to transition to Finalized. Any call after Finalized is a
// programming error and panics, matching the Rust original's type-level
// enforcement (consuming `self`) as closely as a reusable Go value can.
type Encryptor struct {
	aead   cipher.AEAD
	prefix [NoncePrefixSize]byte
	ctr    uint32
	state  runState
}

// NewEncryptor creates an Encryptor from the 32-byte primary key and the
// 7-byte stream nonce prefix stored in the header.
func NewEncryptor(primaryKey []byte, noncePrefix [NoncePrefixSize]byte) (*Encryptor, error) {
	aead, err := chacha20poly1305.New(primaryKey)
	if err != nil {
		return nil, fmt.Errorf("create stream cipher: %w", err)
	}
	return &Encryptor{aead: aead, prefix: noncePrefix}, nil
}

// Next encrypts a non-final chunk, appending the authentication tag.
func (e *Encryptor) Next(plaintext []byte) ([]byte, error) {
	if e.state == finalized {
		panic("stream: Next called after Finalized")
	}
	nonce := buildNonce(e.prefix, e.ctr, false)
	ciphertext := e.aead.Seal(nil, nonce[:], plaintext, nil)
	e.ctr++
	e.state = streamingState
	return ciphertext, nil
}

// Last encrypts the final chunk and transitions to Finalized. It must be
// called exactly once per stream, even when plaintext is empty.
func (e *Encryptor) Last(plaintext []byte) ([]byte, error) {
	if e.state == finalized {
		panic("stream: Last called after Finalized")
	}
	nonce := buildNonce(e.prefix, e.ctr, true)
	ciphertext := e.aead.Seal(nil, nonce[:], plaintext, nil)
	e.state = finalized
	return ciphertext, nil
}

// Decryptor is the mirror of Encryptor for the decrypt path. Any AEAD
// failure — wrong tag, truncated chunk, reordered chunk — is reported as
// cerrors.ErrDecryptionFailed without further detail.
type Decryptor struct {
	aead   cipher.AEAD
	prefix [NoncePrefixSize]byte
	ctr    uint32
	state  runState
}

// NewDecryptor creates a Decryptor from the unwrapped primary key and the
// header's stream nonce prefix.
func NewDecryptor(primaryKey []byte, noncePrefix [NoncePrefixSize]byte) (*Decryptor, error) {
	aead, err := chacha20poly1305.New(primaryKey)
	if err != nil {
		return nil, fmt.Errorf("create stream cipher: %w", err)
	}
	return &Decryptor{aead: aead, prefix: noncePrefix}, nil
}

// Next decrypts a non-final chunk.
func (d *Decryptor) Next(ciphertext []byte) ([]byte, error) {
	if d.state == finalized {
		panic("stream: Next called after Finalized")
	}
	nonce := buildNonce(d.prefix, d.ctr, false)
	plaintext, err := d.aead.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return nil, cerrors.ErrDecryptionFailed
	}
	d.ctr++
	d.state = streamingState
	return plaintext, nil
}

// Last decrypts the final chunk and transitions to Finalized.
func (d *Decryptor) Last(ciphertext []byte) ([]byte, error) {
	if d.state == finalized {
		panic("stream: Last called after Finalized")
	}
	nonce := buildNonce(d.prefix, d.ctr, true)
	plaintext, err := d.aead.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return nil, cerrors.ErrDecryptionFailed
	}
	d.state = finalized
	return plaintext, nil
}

// Encrypt streams plaintext from r (of exactly inputSize bytes) through enc,
// writing each encrypted chunk to w. It calls Last exactly once, even when
// inputSize is zero, per spec.md §9's zero-length-final-chunk note.
func Encrypt(w io.Writer, r io.Reader, inputSize int64, enc *Encryptor) error {
	var read int64
	buf := make([]byte, ChunkSize)
	for {
		remaining := inputSize - read
		if remaining > ChunkSize {
			n, err := io.ReadFull(r, buf)
			if err != nil {
				return fmt.Errorf("read plaintext chunk: %w", err)
			}
			read += int64(n)
			ciphertext, err := enc.Next(buf[:n])
			if err != nil {
				return err
			}
			if _, err := w.Write(ciphertext); err != nil {
				return fmt.Errorf("write ciphertext chunk: %w", err)
			}
			continue
		}

		tail := buf[:remaining]
		n, err := io.ReadFull(r, tail)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return fmt.Errorf("read final plaintext chunk: %w", err)
		}
		ciphertext, err := enc.Last(tail[:n])
		if err != nil {
			return err
		}
		if _, err := w.Write(ciphertext); err != nil {
			return fmt.Errorf("write final ciphertext chunk: %w", err)
		}
		return nil
	}
}

// Decrypt streams ciphertext from r (of exactly ciphertextSize bytes,
// already excluding the header) through dec, writing each decrypted chunk
// to w. ciphertextSize, not EOF, decides when the final (possibly
// undersized) chunk has been reached, so in a truncated stream the cut chunk
// is opened by Last and fails authentication rather than being silently
// accepted by Next.
func Decrypt(w io.Writer, r io.Reader, ciphertextSize int64, dec *Decryptor) error {
	const full = ChunkSize + Overhead

	var read int64
	buf := make([]byte, full)
	for {
		remaining := ciphertextSize - read
		if remaining > full {
			n, err := io.ReadFull(r, buf)
			if err != nil {
				return fmt.Errorf("read ciphertext chunk: %w", err)
			}
			read += int64(n)
			plaintext, err := dec.Next(buf[:n])
			if err != nil {
				return err
			}
			if _, err := w.Write(plaintext); err != nil {
				return fmt.Errorf("write plaintext chunk: %w", err)
			}
			continue
		}

		tail := buf[:remaining]
		if _, err := io.ReadFull(r, tail); err != nil {
			return fmt.Errorf("read final ciphertext chunk: %w", err)
		}
		plaintext, err := dec.Last(tail)
		if err != nil {
			return err
		}
		if _, err := w.Write(plaintext); err != nil {
			return fmt.Errorf("write final plaintext chunk: %w", err)
		}
		return nil
	}
}
