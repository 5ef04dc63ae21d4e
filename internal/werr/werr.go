// Package werr defines the error taxonomy shared by every warpforge
// component. Rather than sentinel errors or ad-hoc wrapping, each error
// carries a machine-readable Kind plus predicate helpers, the way
// internal/coop.CoopError pairs a status code with IsNotReady()/IsExited()
// in the teacher codebase this module was built from.
package werr

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed.
type Kind string

const (
	// KindInvalidArguments means the user-side request could not be parsed.
	KindInvalidArguments Kind = "invalid_arguments"

	// KindBizarreEnvironment means a required environment dependency is missing.
	KindBizarreEnvironment Kind = "bizarre_environment"

	// KindSetupError means setup failed due to a concrete I/O or external
	// operation; it carries a cause.
	KindSetupError Kind = "system_setup_error"

	// KindSetupCauseless means setup failed due to a logical error in the
	// input (graph cycle, missing image, invalid port, duplicate script
	// dir); message only, no underlying cause.
	KindSetupCauseless Kind = "system_setup_causeless"

	// KindRuntimeError means the container or event pipeline itself failed;
	// it carries a cause.
	KindRuntimeError Kind = "system_runtime_error"

	// KindCatchall covers other I/O anomalies during staging.
	KindCatchall Kind = "catchall"

	// KindCatalogAccess and KindCatalogEntryNotExists are reserved for the
	// catalog data-access collaborator (out of scope per spec.md §1); they
	// exist here so that collaborator can report through the same taxonomy.
	KindCatalogAccess         Kind = "catalog_access_error"
	KindCatalogEntryNotExists Kind = "catalog_entry_not_exists"
)

// Error is the concrete error type returned by every warpforge package.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given kind with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind around an existing cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Wrapf is Wrap with fmt.Sprintf-style formatting of the message.
func Wrapf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// InvalidArguments builds a KindInvalidArguments error.
func InvalidArguments(format string, args ...any) *Error {
	return Newf(KindInvalidArguments, format, args...)
}

// SetupCauseless builds a KindSetupCauseless error.
func SetupCauseless(format string, args ...any) *Error {
	return Newf(KindSetupCauseless, format, args...)
}

// SetupError builds a KindSetupError error wrapping cause.
func SetupError(cause error, format string, args ...any) *Error {
	return Wrapf(KindSetupError, cause, format, args...)
}

// RuntimeError builds a KindRuntimeError error wrapping cause.
func RuntimeError(cause error, format string, args ...any) *Error {
	return Wrapf(KindRuntimeError, cause, format, args...)
}

// Catchall builds a KindCatchall error wrapping cause.
func Catchall(cause error, format string, args ...any) *Error {
	return Wrapf(KindCatchall, cause, format, args...)
}

// Is reports whether err is (or wraps) a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// IsSetupCauseless reports whether err is a KindSetupCauseless error.
func IsSetupCauseless(err error) bool { return Is(err, KindSetupCauseless) }

// IsSetupError reports whether err is a KindSetupError error.
func IsSetupError(err error) bool { return Is(err, KindSetupError) }

// IsRuntimeError reports whether err is a KindRuntimeError error.
func IsRuntimeError(err error) bool { return Is(err, KindRuntimeError) }
