// Package rpc implements the typed procedure pipeline: call contexts,
// middleware composition, schema validation, dispatch and error mapping.
package rpc

import "fmt"

// ErrorKind classifies a domain failure.
type ErrorKind string

const (
	// KindNotFound indicates a referenced entity is absent.
	KindNotFound ErrorKind = "NotFound"
	// KindValidation indicates an input shape or business rule violation.
	KindValidation ErrorKind = "Validation"
	// KindUnauthorized indicates no identity is present.
	KindUnauthorized ErrorKind = "Unauthorized"
	// KindForbidden indicates an identity is present but disallowed.
	KindForbidden ErrorKind = "Forbidden"
	// KindConflict indicates a uniqueness or concurrent-state violation.
	KindConflict ErrorKind = "Conflict"
	// KindInternal indicates a defect or unexpected failure.
	KindInternal ErrorKind = "Internal"
)

// Kinds returns the closed set of error kinds.
func Kinds() []ErrorKind {
	return []ErrorKind{
		KindNotFound,
		KindValidation,
		KindUnauthorized,
		KindForbidden,
		KindConflict,
		KindInternal,
	}
}

// Error is the domain error produced by command executors and the
// dispatcher. It never crosses the transport boundary in raw form.
type Error struct {
	Kind    ErrorKind
	Message string
	Meta    map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// WithMeta returns a copy of the error carrying additional metadata.
func (e *Error) WithMeta(key string, value any) *Error {
	meta := make(map[string]any, len(e.Meta)+1)
	for k, v := range e.Meta {
		meta[k] = v
	}
	meta[key] = value
	return &Error{Kind: e.Kind, Message: e.Message, Meta: meta}
}

// NotFound builds a NotFound error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation builds a Validation error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized builds an Unauthorized error.
func Unauthorized(format string, args ...any) *Error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// Forbidden builds a Forbidden error.
func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// Conflict builds a Conflict error.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Internal builds an Internal error.
func Internal(format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}
