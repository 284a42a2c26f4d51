// Package apierr implements the error taxonomy from SPEC_FULL.md §10: a
// small set of typed error kinds, each carrying an HTTP status, so that no
// handler ever leaks a native stack trace across the HTTP boundary.
package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind is one of the closed set of error kinds a handler may surface.
type Kind string

const (
	GPIOUnavailable Kind = "GPIOUnavailable"
	UnknownDevice   Kind = "UnknownDevice"
	NotConnected    Kind = "NotConnected"
	HandshakeFailed Kind = "HandshakeFailed"
	NoAck           Kind = "NoAck"
	DeviceError     Kind = "DeviceError"
	TimeoutExceeded Kind = "TimeoutExceeded"
	PortConflict    Kind = "PortConflict"
	InvalidInput    Kind = "InvalidInput"
	NotFound        Kind = "NotFound"
	AuthFailed      Kind = "AuthFailed"
	NoData          Kind = "NoData"
)

var statusByKind = map[Kind]int{
	GPIOUnavailable: http.StatusOK, // reported as {success:false}, not an HTTP error
	UnknownDevice:   http.StatusBadRequest,
	NotConnected:    http.StatusInternalServerError,
	HandshakeFailed: http.StatusInternalServerError,
	NoAck:           http.StatusInternalServerError,
	DeviceError:     http.StatusInternalServerError,
	TimeoutExceeded: http.StatusInternalServerError,
	PortConflict:    http.StatusConflict,
	InvalidInput:    http.StatusBadRequest,
	NotFound:        http.StatusNotFound,
	AuthFailed:      http.StatusUnauthorized,
	NoData:          http.StatusUnprocessableEntity,
}

// Error is a typed application error with an HTTP-mappable kind.
type Error struct {
	Kind    Kind
	Message string
	Hint    string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithHint attaches a troubleshooting hint (e.g. "press RESET") and returns
// the same error for chaining.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// StatusFor returns the HTTP status code for a given error, defaulting to
// 500 for untyped errors.
func StatusFor(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		if code, ok := statusByKind[ae.Kind]; ok {
			return code
		}
	}
	return http.StatusInternalServerError
}

// WriteJSON writes the {"error": "..."} shape SPEC_FULL.md §10 requires,
// with an optional "hint" field for NotConnected-style errors.
func WriteJSON(c *gin.Context, err error) {
	status := StatusFor(err)
	body := gin.H{"error": err.Error()}
	var ae *Error
	if errors.As(err, &ae) {
		body["error"] = ae.Message
		if ae.Hint != "" {
			body["hint"] = ae.Hint
		}
	}
	c.JSON(status, body)
}

// Is reports whether err (or anything it wraps) is an *Error of the given
// kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}
