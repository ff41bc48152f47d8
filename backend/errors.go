package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds returned by NoteService implementations. Use errors.Is to
// classify an error; the concrete value is usually an *APIError.
var (
	ErrConfig     = errors.New("configuration error")
	ErrAuth       = errors.New("authentication failed")
	ErrNetwork    = errors.New("network error")
	ErrServer     = errors.New("server error")
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("note not found")
)

// APIError describes a failed notes API operation.
type APIError struct {
	Op         string // e.g. "fetch page", "delete note"
	StatusCode int    // 0 when no response was received
	Message    string // server-provided message, if any
	Kind       error  // one of the Err* sentinels
	Err        error  // underlying transport error, if any
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewConfigError reports a missing or invalid client setting.
func NewConfigError(format string, args ...interface{}) error {
	return &APIError{Op: "configure client", Kind: ErrConfig, Message: fmt.Sprintf(format, args...)}
}

// NewValidationError reports a payload rejected before or by the server.
func NewValidationError(op, message string) error {
	return &APIError{Op: op, Kind: ErrValidation, Message: message}
}

// KindForStatus maps an HTTP status code to an error kind for the given operation.
// Deletions and lookups report 404 as ErrNotFound; creations report 400/422 as
// ErrValidation. Everything else non-2xx is ErrServer.
func KindForStatus(status int, notFoundAware, validationAware bool) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuth
	case status == http.StatusNotFound && notFoundAware:
		return ErrNotFound
	case (status == http.StatusBadRequest || status == http.StatusUnprocessableEntity) && validationAware:
		return ErrValidation
	default:
		return ErrServer
	}
}
