// Package apierr defines the registry's error-kind taxonomy and the single
// JSON envelope every HTTP handler uses to report failures.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error into one of the registry's externally visible
// error categories. Each Kind maps to exactly one HTTP status code.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindAlreadyExists       Kind = "already_exists"
	KindInvalidInput        Kind = "invalid_input"
	KindUnauthorized        Kind = "unauthorized"
	KindForbidden           Kind = "forbidden"
	KindConflict            Kind = "conflict"
	KindTooManyRequests     Kind = "rate_limited"
	KindPayloadTooLarge     Kind = "payload_too_large"
	KindUnsupportedMedia    Kind = "unsupported_media_type"
	KindNotImplemented      Kind = "not_implemented"
	KindBadGateway          Kind = "bad_gateway"
	KindInternal            Kind = "internal"
	KindUnavailable         Kind = "unavailable"
)

var statusByKind = map[Kind]int{
	KindNotFound:         http.StatusNotFound,
	KindAlreadyExists:    http.StatusConflict,
	KindInvalidInput:     http.StatusBadRequest,
	KindUnauthorized:     http.StatusUnauthorized,
	KindForbidden:        http.StatusForbidden,
	KindConflict:         http.StatusConflict,
	KindTooManyRequests:  http.StatusTooManyRequests,
	KindPayloadTooLarge:  http.StatusRequestEntityTooLarge,
	KindUnsupportedMedia: http.StatusUnsupportedMediaType,
	KindNotImplemented:   http.StatusNotImplemented,
	KindBadGateway:       http.StatusBadGateway,
	KindInternal:         http.StatusInternalServerError,
	KindUnavailable:      http.StatusServiceUnavailable,
}

// Error is a typed, HTTP-mappable error. It wraps an underlying cause so
// callers can still use errors.Is/errors.As against storage- or
// validation-level sentinels.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Status returns the HTTP status code for this error's Kind.
func (e *Error) Status() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind around an existing error.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func NotFound(message string) *Error      { return New(KindNotFound, message) }
func AlreadyExists(message string) *Error { return New(KindAlreadyExists, message) }
func InvalidInput(message string) *Error  { return New(KindInvalidInput, message) }
func Unauthorized(message string) *Error  { return New(KindUnauthorized, message) }
func Forbidden(message string) *Error     { return New(KindForbidden, message) }
func Conflict(message string) *Error      { return New(KindConflict, message) }
func RateLimited(message string) *Error   { return New(KindTooManyRequests, message) }
func UnsupportedMediaType(message string) *Error { return New(KindUnsupportedMedia, message) }
func NotImplemented(message string) *Error       { return New(KindNotImplemented, message) }
func BadGateway(message string, cause error) *Error {
	return Wrap(KindBadGateway, message, cause)
}
func Internal(message string, cause error) *Error {
	return Wrap(KindInternal, message, cause)
}

// Envelope is the single JSON shape returned for every API error.
type Envelope struct {
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url,omitempty"`
}

const docsBaseURL = "https://docs.pkgforge.dev/errors/"

// WriteJSON writes err to w as the standard error envelope, deriving the
// HTTP status from its Kind. Errors that are not *Error are reported as
// KindInternal without leaking their message to the client.
func WriteJSON(w http.ResponseWriter, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = Internal("internal server error", err)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(apiErr.Status())

	msg := apiErr.Message
	if apiErr.Kind == KindInternal {
		msg = "internal server error"
	}

	_ = json.NewEncoder(w).Encode(Envelope{
		Message:          msg,
		DocumentationURL: docsBaseURL + string(apiErr.Kind),
	})
}

// As reports whether err (or an error in its chain) is an *Error, returning it.
func As(err error) (*Error, bool) {
	var apiErr *Error
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
