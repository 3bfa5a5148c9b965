// Package gwerr defines the closed set of user-visible error kinds shared
// across every component boundary in the gateway (spec §7).
package gwerr

import "fmt"

// Kind is one of the exhaustive error kinds from the Control API contract.
type Kind string

const (
	Unauthorized       Kind = "Unauthorized"
	NotFound           Kind = "NotFound"
	Conflict           Kind = "Conflict"
	ValidationFailed   Kind = "ValidationFailed"
	NoToolsAvailable   Kind = "NoToolsAvailable"
	ArgumentsIncomplete Kind = "ArgumentsIncomplete"
	ServiceUnavailable Kind = "ServiceUnavailable"
	RuntimeUnavailable Kind = "RuntimeUnavailable"
	AdvisorUnavailable Kind = "AdvisorUnavailable"
	Timeout            Kind = "Timeout"
	Internal           Kind = "Internal"
)

// Error is the typed error every component boundary returns. It never hides
// Kind behind a generic wrapper (Design Notes §9).
type Error struct {
	Kind    Kind
	Message string
	Details map[string]string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error with no details and no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error carrying an underlying cause, preserving Kind.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithDetails attaches a details map and returns the same error for chaining.
func (e *Error) WithDetails(details map[string]string) *Error {
	e.Details = details
	return e
}

// KindOf extracts the Kind from err, defaulting to Internal for unrecognized errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ge *Error
	if As(err, &ge) {
		return ge.Kind
	}
	return Internal
}

// As is a thin re-export of errors.As specialized for *Error, kept local so
// callers don't need a second import for the common case.
func As(err error, target **Error) bool {
	for err != nil {
		if ge, ok := err.(*Error); ok {
			*target = ge
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
