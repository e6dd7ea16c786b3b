package factors

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
)

// FactorNameKeyfile is KeyfileFactor's stable registry name.
const FactorNameKeyfile = "Keyfile"

const keyfileKeySize = 32

// KeyfileFactor derives its key from 32 random bytes written to a file on
// Create and read back from the same (or a copied) file on Derive. Like
// Passphrase, it carries no factor-data — the path itself is never
// persisted in the header, so it must be supplied again out of band.
type KeyfileFactor struct {
	// Interactive prompts for a path via huh when Path is empty.
	Interactive bool
	Path        string
}

func (k *KeyfileFactor) Name() string { return FactorNameKeyfile }

// Create generates 32 random bytes, writes them to the resolved path, and
// returns them as the factor-key.
func (k *KeyfileFactor) Create(ctx context.Context) (data, key []byte, err error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	path, err := k.resolvePath("Path to save the keyfile")
	if err != nil {
		return nil, nil, err
	}

	key = make([]byte, keyfileKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, nil, fmt.Errorf("generate keyfile key: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, nil, fmt.Errorf("write keyfile %q: %w", path, err)
	}
	return nil, key, nil
}

// Derive reads the key back from the resolved path. data is unused.
func (k *KeyfileFactor) Derive(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := k.resolvePath("Path to the keyfile")
	if err != nil {
		return nil, err
	}

	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyfile %q: %w", path, err)
	}
	return key, nil
}

func (k *KeyfileFactor) resolvePath(title string) (string, error) {
	if k.Path != "" {
		return k.Path, nil
	}
	if !k.Interactive {
		return "", fmt.Errorf("keyfile path not configured")
	}

	var path string
	err := huh.NewInput().
		Title(title).
		Validate(requireNonEmpty).
		Value(&path).
		Run()
	if err != nil {
		return "", fmt.Errorf("read keyfile path: %w", err)
	}
	return path, nil
}
