package dav

import (
	"errors"
	"net/http"
)

// Error represents a domain error raised by the resource tree, the property
// store or the lock manager.
//
// These are business logic errors (resource not found, resource locked, etc.)
// as opposed to infrastructure errors. The WebDAV dispatcher translates the
// Code into exactly one HTTP status before building a response, so callers
// never need to inspect Message to decide what to send to the client.
type Error struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the resource path related to the error (if applicable)
	Path string

	// Err is the underlying cause, if any. It is never sent to clients.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode represents the category of a WebDAV domain error.
type ErrorCode int

const (
	// ErrInternal indicates an unexpected storage or programming failure
	ErrInternal ErrorCode = iota

	// ErrNotFound indicates the requested resource doesn't exist
	ErrNotFound

	// ErrConflict indicates a structural violation, e.g. a missing parent
	// collection or a file where a collection was expected
	ErrConflict

	// ErrLocked indicates an active lock protects the resource and the
	// caller did not present its token
	ErrLocked

	// ErrPreconditionFailed indicates an ETag or Overwrite mismatch
	ErrPreconditionFailed

	// ErrForbidden indicates a path escape, a depth-limit violation or an
	// operation the server refuses regardless of state
	ErrForbidden

	// ErrBadRequest indicates malformed XML or headers
	ErrBadRequest

	// ErrMethodNotAllowed indicates the operation is invalid for the resource
	// type or the target already exists
	ErrMethodNotAllowed

	// ErrUnsupportedMediaType indicates a request body the method cannot accept
	ErrUnsupportedMediaType
)

// String returns the name of the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "NotFound"
	case ErrConflict:
		return "Conflict"
	case ErrLocked:
		return "Locked"
	case ErrPreconditionFailed:
		return "PreconditionFailed"
	case ErrForbidden:
		return "Forbidden"
	case ErrBadRequest:
		return "BadRequest"
	case ErrMethodNotAllowed:
		return "MethodNotAllowed"
	case ErrUnsupportedMediaType:
		return "UnsupportedMediaType"
	default:
		return "InternalError"
	}
}

// StatusCode returns the HTTP status for the error code.
func (c ErrorCode) StatusCode() int {
	switch c {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConflict:
		return http.StatusConflict
	case ErrLocked:
		return StatusLocked
	case ErrPreconditionFailed:
		return http.StatusPreconditionFailed
	case ErrForbidden:
		return http.StatusForbidden
	case ErrBadRequest:
		return http.StatusBadRequest
	case ErrMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

// WebDAV status codes that net/http does not name.
const (
	StatusMulti               = 207
	StatusUnprocessableEntity = 422
	StatusLocked              = 423
	StatusFailedDependency    = 424
	StatusInsufficientStorage = 507
)

// StatusText returns a text for the HTTP status code, including the WebDAV
// extensions.
func StatusText(code int) string {
	switch code {
	case StatusMulti:
		return "Multi-Status"
	case StatusUnprocessableEntity:
		return "Unprocessable Entity"
	case StatusLocked:
		return "Locked"
	case StatusFailedDependency:
		return "Failed Dependency"
	case StatusInsufficientStorage:
		return "Insufficient Storage"
	}
	return http.StatusText(code)
}

// NewError creates a new domain error.
func NewError(code ErrorCode, message, path string) *Error {
	return &Error{Code: code, Message: message, Path: path}
}

// WrapError creates a new domain error carrying an underlying cause.
func WrapError(code ErrorCode, message, path string, err error) *Error {
	return &Error{Code: code, Message: message, Path: path, Err: err}
}

// NewNotFoundError creates an ErrNotFound error for path.
func NewNotFoundError(path string) *Error {
	return NewError(ErrNotFound, "resource not found", path)
}

// NewConflictError creates an ErrConflict error.
func NewConflictError(message, path string) *Error {
	return NewError(ErrConflict, message, path)
}

// NewLockedError creates an ErrLocked error for path.
func NewLockedError(path string) *Error {
	return NewError(ErrLocked, "resource is locked", path)
}

// NewForbiddenError creates an ErrForbidden error.
func NewForbiddenError(message, path string) *Error {
	return NewError(ErrForbidden, message, path)
}

// NewBadRequestError creates an ErrBadRequest error.
func NewBadRequestError(message string) *Error {
	return NewError(ErrBadRequest, message, "")
}

// CodeOf returns the error code carried by err. Errors that are not domain
// errors are reported as ErrInternal.
func CodeOf(err error) ErrorCode {
	var davErr *Error
	if errors.As(err, &davErr) {
		return davErr.Code
	}
	return ErrInternal
}

// StatusOf returns the HTTP status for err.
func StatusOf(err error) int {
	return CodeOf(err).StatusCode()
}

// IsNotFound reports whether err is an ErrNotFound domain error.
func IsNotFound(err error) bool {
	return err != nil && CodeOf(err) == ErrNotFound
}

// IsLocked reports whether err is an ErrLocked domain error.
func IsLocked(err error) bool {
	return err != nil && CodeOf(err) == ErrLocked
}
