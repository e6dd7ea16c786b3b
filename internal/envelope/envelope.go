// Package envelope orchestrates the full Create/Open flow (spec.md §4.E),
// composing the factor registry, header codec, option key-wrapping, and
// streaming AEAD pipeline into the two operations the CLI exposes.
package envelope

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/arctide/cyst/internal/cerrors"
	"github.com/arctide/cyst/internal/config"
	"github.com/arctide/cyst/internal/factor"
	"github.com/arctide/cyst/internal/header"
	"github.com/arctide/cyst/internal/stream"
	"github.com/arctide/cyst/internal/wrap"
)

// OptionInput describes one option to build during Create: a user-chosen
// name and the ordered sequence of factors that must all be satisfied to
// unlock it. Order matters — it becomes the factor-key concatenation order
// persisted in the header (spec.md §3).
type OptionInput struct {
	Name    string
	Factors []factor.Handler
}

// Create builds a complete envelope: it generates the primary key and
// stream nonce, builds one option per entry in options by invoking each
// factor's Create, writes the header to output, then streams the payload
// from input (of exactly inputSize bytes) as ciphertext.
func Create(ctx context.Context, cfg *config.Config, options []OptionInput, input io.Reader, inputSize int64, output io.Writer) error {
	if len(options) == 0 {
		return &cerrors.InvalidConfigurationError{Reason: "zero options"}
	}

	var primaryKey [wrap.PrimaryKeySize]byte
	if _, err := io.ReadFull(rand.Reader, primaryKey[:]); err != nil {
		return fmt.Errorf("generate primary key: %w", err)
	}

	var noncePrefix [stream.NoncePrefixSize]byte
	if _, err := io.ReadFull(rand.Reader, noncePrefix[:]); err != nil {
		return fmt.Errorf("generate stream nonce: %w", err)
	}

	hdr := &header.Header{
		Options: make(map[string]header.OptionData, len(options)),
		Nonce:   noncePrefix,
	}

	for _, opt := range options {
		if opt.Name == "" {
			return &cerrors.InvalidConfigurationError{Reason: "empty option name"}
		}
		if _, exists := hdr.Options[opt.Name]; exists {
			return &cerrors.InvalidConfigurationError{Reason: fmt.Sprintf("duplicate option name %q", opt.Name)}
		}
		if len(opt.Factors) == 0 {
			return &cerrors.InvalidConfigurationError{Reason: fmt.Sprintf("option %q has zero factors", opt.Name)}
		}

		optionData, err := buildOption(ctx, primaryKey[:], opt, &cfg.Argon2)
		if err != nil {
			return err
		}
		hdr.Options[opt.Name] = optionData
	}

	if err := header.WriteTo(output, hdr); err != nil {
		return err
	}

	enc, err := stream.NewEncryptor(primaryKey[:], noncePrefix)
	if err != nil {
		return err
	}
	return stream.Encrypt(output, input, inputSize, enc)
}

func buildOption(ctx context.Context, primaryKey []byte, opt OptionInput, argonCfg *config.Argon2Config) (header.OptionData, error) {
	var totalKey []byte
	factors := make([]header.FactorEntry, 0, len(opt.Factors))

	for _, f := range opt.Factors {
		data, key, err := f.Create(ctx)
		if err != nil {
			return header.OptionData{}, &cerrors.FactorError{Name: f.Name(), Cause: err}
		}
		factors = append(factors, header.FactorEntry{Name: f.Name(), Data: data})
		totalKey = append(totalKey, key...)
	}

	salt, nonce, ciphertext, err := wrap.Seal(primaryKey, totalKey, argonCfg)
	if err != nil {
		return header.OptionData{}, err
	}

	return header.OptionData{
		Salt:                 salt,
		Factors:              factors,
		PrimaryKeyNonce:      nonce,
		PrimaryKeyCiphertext: ciphertext,
	}, nil
}

// ParseHeader reads the envelope header from input and returns it along
// with the number of ciphertext bytes remaining, given the total input
// size (spec.md §4.B: the decryptor tracks remaining bytes externally
// rather than trusting EOF).
func ParseHeader(input io.Reader, cfg *config.Config, inputSize int64) (*header.Header, int64, error) {
	hdr, consumed, err := header.ReadFrom(input, cfg.HeaderSizeCapBytes)
	if err != nil {
		return nil, 0, err
	}
	return hdr, inputSize - int64(consumed), nil
}

// Open unwraps the named option using registry and decrypts ciphertextSize
// bytes of payload from input (positioned immediately after the header, as
// left by ParseHeader) to output.
//
// Every factor name the option references is checked against registry
// before any factor is derived, so an UnknownFactor error is always raised
// before any prompt would occur (spec.md's unknown-factor-rejection
// property).
func Open(ctx context.Context, cfg *config.Config, registry factor.Registry, hdr *header.Header, optionName string, ciphertextSize int64, input io.Reader, output io.Writer) error {
	opt, ok := hdr.Options[optionName]
	if !ok {
		return &cerrors.InvalidConfigurationError{Reason: fmt.Sprintf("unknown option %q", optionName)}
	}

	handlers := make([]factor.Handler, len(opt.Factors))
	for i, fe := range opt.Factors {
		h, ok := registry.Get(fe.Name)
		if !ok {
			return &cerrors.UnknownFactorError{Name: fe.Name}
		}
		handlers[i] = h
	}

	var totalKey []byte
	for i, fe := range opt.Factors {
		key, err := handlers[i].Derive(ctx, fe.Data)
		if err != nil {
			return &cerrors.FactorError{Name: fe.Name, Cause: err}
		}
		totalKey = append(totalKey, key...)
	}

	primaryKey, err := wrap.Open(opt.PrimaryKeyCiphertext, totalKey, opt.Salt, opt.PrimaryKeyNonce, &cfg.Argon2)
	if err != nil {
		return err
	}

	dec, err := stream.NewDecryptor(primaryKey, hdr.Nonce)
	if err != nil {
		return err
	}
	return stream.Decrypt(output, input, ciphertextSize, dec)
}
