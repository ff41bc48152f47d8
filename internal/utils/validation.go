package utils

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"notehub/backend"
)

// Note field limits enforced before a create request is sent.
const (
	TitleMinLength   = 3
	TitleMaxLength   = 50
	ContentMinLength = 5
	ContentMaxLength = 500
)

// FieldError describes one invalid field of a note payload.
type FieldError struct {
	Field   string
	Message string
}

// ValidateNewNote checks a create payload. It returns nil or a validation
// error (errors.Is(err, backend.ErrValidation)) listing every invalid field.
func ValidateNewNote(n backend.NewNote) error {
	fields := NoteFieldErrors(n)
	if len(fields) == 0 {
		return nil
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Field + " " + f.Message
	}
	return backend.NewValidationError("create note", strings.Join(parts, "; "))
}

// NoteFieldErrors returns per-field problems, in form order. The TUI form
// uses this to annotate individual inputs.
func NoteFieldErrors(n backend.NewNote) []FieldError {
	var errs []FieldError
	if msg := lengthMessage(n.Title, TitleMinLength, TitleMaxLength); msg != "" {
		errs = append(errs, FieldError{Field: "title", Message: msg})
	}
	if msg := lengthMessage(n.Content, ContentMinLength, ContentMaxLength); msg != "" {
		errs = append(errs, FieldError{Field: "content", Message: msg})
	}
	if n.Tag == "" {
		errs = append(errs, FieldError{Field: "tag", Message: "is required"})
	} else if !n.Tag.Valid() {
		errs = append(errs, FieldError{Field: "tag", Message: fmt.Sprintf("%q is not a valid tag", n.Tag)})
	}
	return errs
}

func lengthMessage(s string, min, max int) string {
	if strings.TrimSpace(s) == "" {
		return "is required"
	}
	n := utf8.RuneCountInString(s)
	if n < min {
		return fmt.Sprintf("is too short (min %d characters)", min)
	}
	if n > max {
		return fmt.Sprintf("is too long (max %d characters)", max)
	}
	return ""
}

// ParseTagFlag parses a --tag flag value. Empty input yields the default tag.
func ParseTagFlag(s string) (backend.Tag, error) {
	if strings.TrimSpace(s) == "" {
		return backend.TagTodo, nil
	}
	tag, err := backend.ParseTag(s)
	if err != nil {
		return "", ErrInvalidTag(s)
	}
	return tag, nil
}
