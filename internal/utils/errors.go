package utils

import (
	"errors"
	"fmt"
	"strings"

	"notehub/backend"
)

// ErrorWithSuggestion wraps an error with a user-friendly suggestion.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface.
func (e *ErrorWithSuggestion) Error() string {
	return fmt.Sprintf("%s\n\nSuggestion: %s", e.Err.Error(), e.Suggestion)
}

// GetSuggestion returns the suggestion text.
func (e *ErrorWithSuggestion) GetSuggestion() string {
	return e.Suggestion
}

// Unwrap returns the underlying error for error chain support.
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WrapWithSuggestion wraps an existing error with a suggestion.
func WrapWithSuggestion(err error, suggestion string) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// ErrNoteNotFound returns an error for when a note id does not exist on the server.
func ErrNoteNotFound(id string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("%w: %s", backend.ErrNotFound, id),
		Suggestion: "Check the id or use 'notehub list' to see all notes",
	}
}

// ErrNoResults returns the notice shown when a search matches nothing.
func ErrNoResults(query string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("no notes found for %q", query),
		Suggestion: "Try a shorter search term or clear the search",
	}
}

// ErrCredentialsNotFound returns an error when no API token is available.
func ErrCredentialsNotFound(service string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("%w: no API token found for %s", backend.ErrConfig, service),
		Suggestion: "Run 'notehub credentials set' or export NOTEHUB_TOKEN",
	}
}

// ErrBaseURLNotConfigured returns an error when the API endpoint is missing.
func ErrBaseURLNotConfigured() error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("%w: API base URL is not configured", backend.ErrConfig),
		Suggestion: "Set api.base_url in your config file or export NOTEHUB_BASE_URL",
	}
}

// ErrAuthenticationFailed returns an error when the server rejects the token.
func ErrAuthenticationFailed(service string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("authentication failed for %s", service),
		Suggestion: "Verify your token is correct and has not expired",
	}
}

// ErrBackendOffline returns an error when the API is unreachable with smart suggestions.
func ErrBackendOffline(name, reason string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("%s is unreachable: %s", name, reason),
		Suggestion: getSmartSuggestion(reason),
	}
}

// ErrInvalidTag returns an error for a tag outside the allowed set.
func ErrInvalidTag(tag string) error {
	valid := make([]string, len(backend.Tags))
	for i, t := range backend.Tags {
		valid[i] = string(t)
	}
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("%w: invalid tag: %s", backend.ErrValidation, tag),
		Suggestion: fmt.Sprintf("Valid options: %s", strings.Join(valid, ", ")),
	}
}

// getSmartSuggestion returns a context-aware suggestion based on the error reason.
func getSmartSuggestion(reason string) string {
	lowerReason := strings.ToLower(reason)

	if strings.Contains(lowerReason, "no such host") || strings.Contains(lowerReason, "dns") {
		return "Check your DNS settings and internet connection"
	}

	if strings.Contains(lowerReason, "connection refused") {
		return "Check that api.base_url points at a running server"
	}

	if strings.Contains(lowerReason, "timeout") {
		return "The server may be slow or unreachable. Try again later"
	}

	return "Check your internet connection and try again"
}

// SuggestFor attaches a suggestion to errors coming out of the notes client,
// keyed by error kind. Errors that already carry a suggestion, and errors of
// unknown kind, are returned unchanged.
func SuggestFor(err error) error {
	if err == nil {
		return nil
	}
	var withSuggestion *ErrorWithSuggestion
	if errors.As(err, &withSuggestion) {
		return err
	}

	switch {
	case errors.Is(err, backend.ErrConfig):
		return WrapWithSuggestion(err, "Run 'notehub config validate' and 'notehub credentials get' to check your setup")
	case errors.Is(err, backend.ErrAuth):
		return WrapWithSuggestion(err, "Verify your token is correct and has not expired")
	case errors.Is(err, backend.ErrNetwork):
		return WrapWithSuggestion(err, getSmartSuggestion(err.Error()))
	case errors.Is(err, backend.ErrNotFound):
		return WrapWithSuggestion(err, "Check the id or use 'notehub list' to see all notes")
	case errors.Is(err, backend.ErrValidation):
		return WrapWithSuggestion(err, "Title must be 3-50 characters, content 5-500 characters")
	case errors.Is(err, backend.ErrServer):
		return WrapWithSuggestion(err, "The server returned an error. Try again later")
	}
	return err
}
