// Package types provides shared type definitions used across the application.
package types

import (
	"fmt"
	"net/http"
)

// HTTPError is implemented by errors that map to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// ErrorKind classifies a pipeline failure. The HTTP boundary maps kinds to
// status codes without inspecting error text.
type ErrorKind int

// Error kinds, one per failure class in the transformation pipeline.
const (
	KindInternalFault ErrorKind = iota
	KindInvalidParameter
	KindUnsupportedFormat
	KindPayloadTooLarge
	KindFetchFailed
	KindDecodeFailed
	KindResizeFailed
	KindEncodeFailed
	KindUnauthorized
	KindServerMisconfigured
	KindMethodNotAllowed
	KindNotFound
)

// String returns the kind name for logging.
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidParameter:
		return "invalid_parameter"
	case KindUnsupportedFormat:
		return "unsupported_format"
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindFetchFailed:
		return "fetch_failed"
	case KindDecodeFailed:
		return "decode_failed"
	case KindResizeFailed:
		return "resize_failed"
	case KindEncodeFailed:
		return "encode_failed"
	case KindUnauthorized:
		return "unauthorized"
	case KindServerMisconfigured:
		return "server_misconfigured"
	case KindMethodNotAllowed:
		return "method_not_allowed"
	case KindNotFound:
		return "not_found"
	default:
		return "internal_fault"
	}
}

// Error is a structured pipeline error carrying a taxonomy kind, a
// human-readable detail, and an optional wrapped cause.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode implements HTTPError. The mapping is fixed: validation and
// acquisition failures are the caller's fault, resize/encode failures are
// ours since input was already validated by then.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindInvalidParameter, KindUnsupportedFormat, KindPayloadTooLarge,
		KindFetchFailed, KindDecodeFailed:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// NewError creates an Error with the given kind and detail message.
func NewError(kind ErrorKind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// NewErrorf creates an Error with a formatted detail message.
func NewErrorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error wrapping an underlying cause.
func WrapError(kind ErrorKind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}
