// Package factor defines the polymorphic key-source contract that plugs
// arbitrary authentication factors into the envelope (spec.md §4.A). An
// encryption option is satisfied by one or more factors; the envelope only
// ever sees factors through the type-erased Handler interface below, never
// through a factor's own structured data type.
package factor

import "context"

// Handler is a type-erased encryption factor. The envelope treats
// factor-data and factor-keys as opaque byte slices; encoding a factor's
// own structured data (a salt, a URL, a share count, ...) into those bytes
// is entirely the factor's own business.
//
// Name must be stable and globally unique: it is both the registry key and
// the tag persisted in every option that uses this factor. Renaming it is a
// breaking change to every ciphertext already referencing it.
type Handler interface {
	// Name returns the factor's stable, globally unique identifier.
	Name() string

	// Create interactively acquires key material, returning the data that
	// must be persisted to reproduce the same key later and the key
	// itself. The key is never persisted; only data is.
	Create(ctx context.Context) (data, key []byte, err error)

	// Derive reproduces the key Create returned for the given data. It may
	// fail for reasons entirely outside the envelope's control: a wrong
	// passphrase, an expired upload, a corrupt keyfile.
	Derive(ctx context.Context, data []byte) (key []byte, err error)
}

// Registry maps factor name to Handler. It is populated once at process
// start and is read-only thereafter; no locking is required because nothing
// ever mutates it after construction.
type Registry map[string]Handler

// NewRegistry builds a Registry from a set of handlers, keyed by their own
// Name(). Passing two handlers with the same name is a programming error
// (the second silently overwrites the first) — callers own uniqueness.
func NewRegistry(handlers ...Handler) Registry {
	r := make(Registry, len(handlers))
	for _, h := range handlers {
		r[h.Name()] = h
	}
	return r
}

// Get looks up a factor by name. The bool result is false if no factor of
// that name is registered; a decrypt operation must report this as a fatal
// UnknownFactor error, never a silent no-op.
func (r Registry) Get(name string) (Handler, bool) {
	h, ok := r[name]
	return h, ok
}

// Names returns the registered factor names, unsorted — callers that need a
// stable display order (spec.md §4.C: "the UI shows options sorted
// lexicographically") sort it themselves.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	return names
}
