// Package cerrors centralizes the error kinds the cyst envelope surfaces to
// callers, so that every package that can fail for the same reason
// (malformed header, unknown factor, failed AEAD tag check, ...) raises an
// error that compares equal under errors.Is/errors.As regardless of which
// package actually detected it.
package cerrors

import "fmt"

// Sentinel errors with no payload beyond the error itself.
var (
	// ErrHeaderMalformed covers a truncated length prefix, an oversize
	// header, a decode failure, a duplicate option name, or a header with
	// zero options.
	ErrHeaderMalformed = fmt.Errorf("header malformed")

	// ErrDecryptionFailed covers any AEAD tag mismatch, whether at the
	// primary-key unwrap step or at any payload chunk. Deliberately
	// undifferentiated: which stage failed is not exposed to the caller.
	ErrDecryptionFailed = fmt.Errorf("decryption failed")
)

// UnknownFactorError is returned when a header option references a factor
// name absent from the current registry.
type UnknownFactorError struct {
	Name string
}

func (e *UnknownFactorError) Error() string {
	return fmt.Sprintf("unknown factor %q", e.Name)
}

// FactorError wraps a failure raised by a factor's Create or Derive step
// (wrong passphrase, unreachable URL, corrupt keyfile, user abort, ...).
type FactorError struct {
	Name  string
	Cause error
}

func (e *FactorError) Error() string {
	return fmt.Sprintf("factor %q failed: %v", e.Name, e.Cause)
}

func (e *FactorError) Unwrap() error {
	return e.Cause
}

// InvalidConfigurationError covers structurally invalid envelope input: zero
// factors in an option, a non-unique or empty option name, or zero options
// in a header being assembled.
type InvalidConfigurationError struct {
	Reason string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}
