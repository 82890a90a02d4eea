// Package rerr defines the error taxonomy shared across every Rekall
// component, per spec.md §7. Components return *Error (or wrap one) for
// any condition a caller needs to branch on; everything else is a plain
// wrapped error.
package rerr

import (
	"errors"
	"fmt"
)

// Kind is one of the surface error kinds from spec.md §7.
type Kind string

const (
	// InvalidInput: caller-provided data violates an invariant.
	InvalidInput Kind = "invalid_input"
	// NotFound: entity does not exist.
	NotFound Kind = "not_found"
	// Conflict: uniqueness or cycle violation.
	Conflict Kind = "conflict"
	// BackendLocked: a second writer attempted to open the database.
	BackendLocked Kind = "backend_locked"
	// CorruptContext: a context blob failed to decompress or validate.
	CorruptContext Kind = "corrupt_context"
	// ProviderUnavailable: the embedding provider raised.
	ProviderUnavailable Kind = "provider_unavailable"
	// FetchFailed: an HTTP fetch during enrichment failed.
	FetchFailed Kind = "fetch_failed"
	// MigrationAborted: a schema migration rolled back.
	MigrationAborted Kind = "migration_aborted"
)

// Soft reports whether this kind is locally recoverable per spec.md §7's
// propagation policy: it converts to a flag/warning on a result envelope
// rather than surfacing as a caller-visible failure.
func (k Kind) Soft() bool {
	switch k {
	case ProviderUnavailable, FetchFailed, CorruptContext:
		return true
	default:
		return false
	}
}

// Error is the concrete error type surfaced by every Rekall component.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, rerr.ErrInvalidInput)-style checks: any *Error
// target (a sentinel below, or New(kind, "")) matches when its Kind is equal.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

// New constructs an *Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Of extracts the Kind of err if it is (or wraps) an *Error.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// sentinel kind-only errors for errors.Is comparisons without a message.
var (
	ErrInvalidInput         = &Error{Kind: InvalidInput}
	ErrNotFound             = &Error{Kind: NotFound}
	ErrConflict             = &Error{Kind: Conflict}
	ErrBackendLocked        = &Error{Kind: BackendLocked}
	ErrCorruptContext       = &Error{Kind: CorruptContext}
	ErrProviderUnavailable  = &Error{Kind: ProviderUnavailable}
	ErrFetchFailed          = &Error{Kind: FetchFailed}
	ErrMigrationAborted     = &Error{Kind: MigrationAborted}
)
