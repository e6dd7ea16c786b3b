package factor

import (
	"context"
	"errors"
	"sort"
	"testing"
)

type stubFactor struct {
	name string
}

func (s *stubFactor) Name() string { return s.name }

func (s *stubFactor) Create(ctx context.Context) ([]byte, []byte, error) {
	return []byte("data:" + s.name), []byte("key:" + s.name), nil
}

func (s *stubFactor) Derive(ctx context.Context, data []byte) ([]byte, error) {
	if string(data) != "data:"+s.name {
		return nil, errors.New("unexpected data")
	}
	return []byte("key:" + s.name), nil
}

func TestRegistryGet(t *testing.T) {
	reg := NewRegistry(&stubFactor{name: "Passphrase"}, &stubFactor{name: "Keyfile"})

	h, ok := reg.Get("Passphrase")
	if !ok {
		t.Fatal("Get(\"Passphrase\") not found")
	}
	if h.Name() != "Passphrase" {
		t.Errorf("Name() = %q, want Passphrase", h.Name())
	}

	if _, ok := reg.Get("Unregistered"); ok {
		t.Error("Get(\"Unregistered\") = true, want false")
	}
}

func TestRegistryNames(t *testing.T) {
	reg := NewRegistry(&stubFactor{name: "B"}, &stubFactor{name: "A"})

	names := reg.Names()
	sort.Strings(names)
	if len(names) != 2 || names[0] != "A" || names[1] != "B" {
		t.Errorf("Names() sorted = %v, want [A B]", names)
	}
}

func TestFactorCreateDeriveRoundTrip(t *testing.T) {
	f := &stubFactor{name: "Test"}
	ctx := context.Background()

	data, key, err := f.Create(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	derived, err := f.Derive(ctx, data)
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	if string(derived) != string(key) {
		t.Errorf("Derive() = %q, want %q", derived, key)
	}
}
