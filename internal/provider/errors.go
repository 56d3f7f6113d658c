package provider

import (
	"errors"
	"fmt"
)

// Kind classifies a provider failure. All kinds are surfaced to callers the
// same way (a terminal error event mid-stream); the classification exists
// for logs and tests.
type Kind string

const (
	// KindAuth covers failures acquiring the upstream bearer credential.
	KindAuth Kind = "auth"
	// KindTransport covers connection errors, timeouts, and cancellation.
	KindTransport Kind = "transport"
	// KindStatus covers non-2xx upstream HTTP responses.
	KindStatus Kind = "status"
	// KindShape covers payloads matching neither the primary nor the
	// fallback schema.
	KindShape Kind = "shape"
)

// Error is the single failure type returned by provider adapters.
type Error struct {
	Op   string // "general" or "grounded"
	Kind Kind
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

func newError(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func errorf(op string, kind Kind, format string, args ...any) *Error {
	return newError(op, kind, fmt.Errorf(format, args...))
}

// IsProviderError reports whether err is (or wraps) a provider *Error.
func IsProviderError(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}
