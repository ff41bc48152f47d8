// Package prompt handles interactive prompts with no-prompt mode support.
// It provides filtered note selection and an interactive create mode with
// field validation.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"notehub/backend"
	"notehub/internal/utils"
)

// Sentinel errors for prompt operations.
var (
	ErrSelectionCancelled = errors.New("selection cancelled")
	ErrNoPromptMode       = errors.New("interactive prompts disabled (--no-prompt / -y)")
	ErrNoNotes            = errors.New("no notes available")
	ErrNoMatches          = errors.New("no notes match the filter")
)

// NoteSelector picks one note from a page by filter text and number.
type NoteSelector struct {
	Notes    []backend.Note
	Prompt   string
	Reader   io.Reader
	Writer   io.Writer
	NoPrompt bool
}

// Run executes the note selection prompt.
// If NoPrompt is true, returns ErrNoPromptMode.
// If there is exactly one note, auto-selects it.
func (s *NoteSelector) Run() (*backend.Note, error) {
	if s.NoPrompt {
		return nil, ErrNoPromptMode
	}
	if len(s.Notes) == 0 {
		return nil, ErrNoNotes
	}
	if len(s.Notes) == 1 {
		return &s.Notes[0], nil
	}

	writer := s.Writer
	if writer == nil {
		writer = io.Discard
	}
	scanner := bufio.NewScanner(s.Reader)

	_, _ = fmt.Fprintf(writer, "%s\nFilter (or press Enter to show all): ", s.Prompt)
	if !scanner.Scan() {
		return nil, ErrSelectionCancelled
	}
	filtered := FilterNotes(s.Notes, scanner.Text())
	if len(filtered) == 0 {
		return nil, ErrNoMatches
	}
	if len(filtered) == 1 {
		_, _ = fmt.Fprintf(writer, "Auto-selected: %s\n", filtered[0].Title)
		return &filtered[0], nil
	}

	for i, n := range filtered {
		_, _ = fmt.Fprintf(writer, "  %d) %s\n", i+1, FormatNoteLine(n))
	}
	_, _ = fmt.Fprintf(writer, "Select (0 to cancel): ")
	if !scanner.Scan() {
		return nil, ErrSelectionCancelled
	}

	input := strings.TrimSpace(scanner.Text())
	num, err := strconv.Atoi(input)
	if err != nil {
		return nil, fmt.Errorf("invalid selection: %s", input)
	}
	if num == 0 {
		return nil, ErrSelectionCancelled
	}
	if num < 1 || num > len(filtered) {
		return nil, fmt.Errorf("selection out of range: %d", num)
	}
	return &filtered[num-1], nil
}

// FilterNotes keeps notes whose title or content contains text, ignoring case.
// Empty text keeps everything.
func FilterNotes(notes []backend.Note, text string) []backend.Note {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		out := make([]backend.Note, len(notes))
		copy(out, notes)
		return out
	}
	var out []backend.Note
	for _, n := range notes {
		if strings.Contains(strings.ToLower(n.Title), text) || strings.Contains(strings.ToLower(n.Content), text) {
			out = append(out, n)
		}
	}
	return out
}

// FormatNoteLine renders a note as "title [tag, done] (id)".
func FormatNoteLine(n backend.Note) string {
	meta := []string{string(n.Tag)}
	if n.Completed {
		meta = append(meta, "done")
	}
	return fmt.Sprintf("%s [%s] (%s)", n.Title, strings.Join(meta, ", "), n.ID)
}

// NoteCreator asks for the fields of a new note one at a time, repeating a
// field until its value is valid.
type NoteCreator struct {
	Reader   io.Reader
	Writer   io.Writer
	NoPrompt bool
}

// Run executes the interactive create mode: title, content, then tag.
func (c *NoteCreator) Run() (*backend.NewNote, error) {
	if c.NoPrompt {
		return nil, ErrNoPromptMode
	}

	writer := c.Writer
	if writer == nil {
		writer = io.Discard
	}
	scanner := bufio.NewScanner(c.Reader)
	fields := &backend.NewNote{Tag: backend.TagTodo}

	for {
		_, _ = fmt.Fprintf(writer, "Title (%d-%d characters): ", utils.TitleMinLength, utils.TitleMaxLength)
		if !scanner.Scan() {
			return nil, errors.New("no input for title")
		}
		fields.Title = strings.TrimSpace(scanner.Text())
		if msg := fieldMessage(*fields, "title"); msg != "" {
			_, _ = fmt.Fprintf(writer, "Title %s.\n", msg)
			continue
		}
		break
	}

	for {
		_, _ = fmt.Fprintf(writer, "Content (%d-%d characters): ", utils.ContentMinLength, utils.ContentMaxLength)
		if !scanner.Scan() {
			return nil, errors.New("no input for content")
		}
		fields.Content = strings.TrimSpace(scanner.Text())
		if msg := fieldMessage(*fields, "content"); msg != "" {
			_, _ = fmt.Fprintf(writer, "Content %s.\n", msg)
			continue
		}
		break
	}

	names := make([]string, len(backend.Tags))
	for i, t := range backend.Tags {
		names[i] = string(t)
	}
	for {
		_, _ = fmt.Fprintf(writer, "Tag (%s, default %s): ", strings.Join(names, ", "), backend.TagTodo)
		if !scanner.Scan() {
			break
		}
		tag, err := utils.ParseTagFlag(scanner.Text())
		if err != nil {
			_, _ = fmt.Fprintf(writer, "Invalid tag: %s\n", strings.TrimSpace(scanner.Text()))
			continue
		}
		fields.Tag = tag
		break
	}

	return fields, nil
}

func fieldMessage(n backend.NewNote, field string) string {
	for _, fe := range utils.NoteFieldErrors(n) {
		if fe.Field == field {
			return fe.Message
		}
	}
	return ""
}
