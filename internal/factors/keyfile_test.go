package factors

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestKeyfileFactor_CreateDeriveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.bin")
	f := &KeyfileFactor{Path: path}

	data, key, err := f.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if data != nil {
		t.Errorf("Create() data = %v, want nil", data)
	}
	if len(key) != keyfileKeySize {
		t.Errorf("Create() key length = %d, want %d", len(key), keyfileKeySize)
	}

	onDisk, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read keyfile: %v", err)
	}
	if !bytes.Equal(onDisk, key) {
		t.Error("keyfile contents do not match the returned key")
	}

	derived, err := f.Derive(context.Background(), data)
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	if !bytes.Equal(derived, key) {
		t.Error("Derive() did not reproduce the key Create wrote")
	}
}

func TestKeyfileFactor_CreateGeneratesDistinctKeysPerCall(t *testing.T) {
	f1 := &KeyfileFactor{Path: filepath.Join(t.TempDir(), "a.bin")}
	f2 := &KeyfileFactor{Path: filepath.Join(t.TempDir(), "b.bin")}

	_, key1, err := f1.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, key2, err := f2.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if bytes.Equal(key1, key2) {
		t.Error("two independent Create() calls produced identical keys")
	}
}

func TestKeyfileFactor_NonInteractiveWithoutPathFails(t *testing.T) {
	f := &KeyfileFactor{Interactive: false}
	if _, _, err := f.Create(context.Background()); err == nil {
		t.Fatal("Create() error = nil, want error for unconfigured path")
	}
}

func TestKeyfileFactor_DeriveMissingFileFails(t *testing.T) {
	f := &KeyfileFactor{Path: filepath.Join(t.TempDir(), "does-not-exist.bin")}
	if _, err := f.Derive(context.Background(), nil); err == nil {
		t.Fatal("Derive() error = nil, want error for missing keyfile")
	}
}
