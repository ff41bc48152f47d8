package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"notehub/backend"
	"notehub/internal/cache"
	"notehub/internal/cli/prompt"
	"notehub/internal/mutation"
	"notehub/internal/utils"
)

// JSON output structures
type listNotesResponse struct {
	Notes      []backend.Note `json:"notes"`
	Search     string         `json:"search,omitempty"`
	Page       int            `json:"page"`
	TotalPages int            `json:"totalPages"`
	Count      int            `json:"count"`
	Stale      bool           `json:"stale,omitempty"`
	Result     string         `json:"result"`
}

type noteResponse struct {
	Note   backend.Note `json:"note"`
	Result string       `json:"result"`
}

type actionResponse struct {
	Action string       `json:"action"`
	Note   backend.Note `json:"note"`
	Result string       `json:"result"`
}

// newListCmd creates the 'list' subcommand
func newListCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List or search notes, one page at a time",
		Long:    "Fetch one page of notes. With --search only notes matching the query are listed.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			search, _ := cmd.Flags().GetString("search")
			page, _ := cmd.Flags().GetInt("page")
			if page < 1 {
				return backend.NewValidationError("list", "page must be at least 1")
			}

			appCfg, err := loadConfig(cmd, cfg)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, appCfg, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			return doList(cmd.Context(), a, strings.TrimSpace(search), page, cfg, stdout, stderr, wantsJSON(cmd, appCfg))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringP("search", "s", "", "Only list notes matching this text")
	cmd.Flags().IntP("page", "p", 1, "Page number (starting at 1)")
	return cmd
}

// doList fetches one page through the query cache. When the fetch fails but a
// snapshot of the page exists, the snapshot is shown with a warning.
func doList(ctx context.Context, a *app, search string, page int, cfg *Config, stdout, stderr io.Writer, jsonOutput bool) error {
	entry, err := a.pages.Get(ctx, cache.NotesKey(search, page))
	stale := false
	if err != nil {
		if entry.Data == nil {
			return err
		}
		stale = true
		_, _ = fmt.Fprintf(stderr, "Warning: %v\nShowing the copy fetched %s\n", err, entry.FetchedAt.Local().Format(time.DateTime))
	}
	data := entry.Data

	if jsonOutput {
		notes := data.Notes
		if notes == nil {
			notes = []backend.Note{}
		}
		return writeJSON(stdout, listNotesResponse{
			Notes:      notes,
			Search:     search,
			Page:       page,
			TotalPages: data.TotalPages,
			Count:      len(notes),
			Stale:      stale,
			Result:     ResultInfoOnly,
		})
	}

	switch {
	case len(data.Notes) == 0 && search != "":
		_, _ = fmt.Fprintf(stdout, "No notes found for %q\n", search)
	case len(data.Notes) == 0 && page > 1:
		_, _ = fmt.Fprintf(stdout, "Page %d is empty (%d page(s) in total)\n", page, data.TotalPages)
	case len(data.Notes) == 0:
		_, _ = fmt.Fprintln(stdout, "No notes yet. Run 'notehub create' to add one.")
	default:
		if search != "" {
			_, _ = fmt.Fprintf(stdout, "Notes matching %q (page %d/%d):\n", search, page, data.TotalPages)
		} else {
			_, _ = fmt.Fprintf(stdout, "Notes (page %d/%d):\n", page, data.TotalPages)
		}
		for _, n := range data.Notes {
			_, _ = fmt.Fprintf(stdout, "  %s\n", prompt.FormatNoteLine(n))
		}
	}

	printResult(stdout, cfg, ResultInfoOnly)
	return nil
}

// newShowCmd creates the 'show' subcommand
func newShowCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a single note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := loadConfig(cmd, cfg)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, appCfg, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			note, err := a.client.GetNote(cmd.Context(), args[0])
			if err != nil {
				return notFoundAsNote(err, args[0])
			}

			if wantsJSON(cmd, appCfg) {
				return writeJSON(stdout, noteResponse{Note: *note, Result: ResultInfoOnly})
			}

			_, _ = fmt.Fprintf(stdout, "Title: %s\n", note.Title)
			_, _ = fmt.Fprintf(stdout, "ID: %s\n", note.ID)
			_, _ = fmt.Fprintf(stdout, "Tag: %s\n", note.Tag)
			_, _ = fmt.Fprintf(stdout, "Completed: %s\n", yesNo(note.Completed))
			if note.CreatedAt != nil {
				_, _ = fmt.Fprintf(stdout, "Created: %s\n", note.CreatedAt.Local().Format(time.DateTime))
			}
			if note.UpdatedAt != nil {
				_, _ = fmt.Fprintf(stdout, "Updated: %s\n", note.UpdatedAt.Local().Format(time.DateTime))
			}
			_, _ = fmt.Fprintf(stdout, "\n%s\n", note.Content)

			printResult(stdout, cfg, ResultInfoOnly)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newCreateCmd creates the 'create' subcommand
func newCreateCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "create",
		Aliases: []string{"add"},
		Short:   "Create a note",
		Long:    "Create a note. Without --title and --content the fields are asked for interactively.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			title, _ := cmd.Flags().GetString("title")
			content, _ := cmd.Flags().GetString("content")
			tagFlag, _ := cmd.Flags().GetString("tag")
			completed, _ := cmd.Flags().GetBool("completed")

			appCfg, err := loadConfig(cmd, cfg)
			if err != nil {
				return err
			}
			jsonOutput := wantsJSON(cmd, appCfg)

			var fields backend.NewNote
			if title == "" && content == "" && !cfg.NoPrompt && !jsonOutput {
				creator := &prompt.NoteCreator{Reader: cfg.input(), Writer: stdout}
				asked, err := creator.Run()
				if err != nil {
					return err
				}
				fields = *asked
			} else {
				tag, err := utils.ParseTagFlag(tagFlag)
				if err != nil {
					return err
				}
				fields = backend.NewNote{Title: strings.TrimSpace(title), Content: strings.TrimSpace(content), Tag: tag}
			}
			fields.Completed = completed

			a, err := newApp(cmd.Context(), cfg, appCfg, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			return doCreate(cmd.Context(), a, fields, cfg, stdout, jsonOutput)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringP("title", "t", "", "Note title (3-50 characters)")
	cmd.Flags().StringP("content", "c", "", "Note content (5-500 characters)")
	cmd.Flags().String("tag", "", "Note tag: Todo, Work, Personal, Meeting or Shopping (default Todo)")
	cmd.Flags().Bool("completed", false, "Mark the note as completed")
	return cmd
}

// doCreate sends the note through the mutation coordinator
func doCreate(ctx context.Context, a *app, fields backend.NewNote, cfg *Config, stdout io.Writer, jsonOutput bool) error {
	m, note, err := a.coord.Create(ctx, fields)
	if err != nil {
		return err
	}
	if m.State == mutation.StatePending || note == nil {
		return fmt.Errorf("a create of %q is already in progress", fields.Title)
	}

	if jsonOutput {
		return writeJSON(stdout, actionResponse{Action: "create", Note: *note, Result: ResultActionCompleted})
	}

	_, _ = fmt.Fprintf(stdout, "Created note: %s (%s)\n", note.Title, note.ID)
	printResult(stdout, cfg, ResultActionCompleted)
	return nil
}

// newDeleteCmd creates the 'delete' subcommand
func newDeleteCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delete [id]",
		Aliases: []string{"rm"},
		Short:   "Delete a note",
		Long:    "Delete a note by id. Without an id, pick one from the first page of notes (optionally narrowed with --search).",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			search, _ := cmd.Flags().GetString("search")

			appCfg, err := loadConfig(cmd, cfg)
			if err != nil {
				return err
			}
			jsonOutput := wantsJSON(cmd, appCfg)

			a, err := newApp(cmd.Context(), cfg, appCfg, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			target := backend.Note{}
			if len(args) == 1 {
				target.ID = args[0]
			} else {
				if cfg.NoPrompt || jsonOutput {
					return backend.NewValidationError("delete", "a note id is required with --no-prompt or --json")
				}
				entry, err := a.pages.Get(cmd.Context(), cache.NotesKey(strings.TrimSpace(search), 1))
				if err != nil {
					return err
				}
				selector := &prompt.NoteSelector{
					Notes:  entry.Data.Notes,
					Prompt: "Select a note to delete:",
					Reader: cfg.input(),
					Writer: stdout,
				}
				picked, err := selector.Run()
				if err != nil {
					return err
				}
				target = *picked
			}

			if !cfg.NoPrompt && !jsonOutput {
				label := target.ID
				if target.Title != "" {
					label = fmt.Sprintf("%q", target.Title)
				}
				if !utils.PromptYesNoWithReader("Delete note "+label+"?", cfg.input(), stdout) {
					_, _ = fmt.Fprintln(stdout, "Cancelled")
					return nil
				}
			}

			return doDelete(cmd.Context(), a, target, cfg, stdout, jsonOutput)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringP("search", "s", "", "Narrow the interactive pick to notes matching this text")
	return cmd
}

// doDelete sends the delete through the mutation coordinator
func doDelete(ctx context.Context, a *app, target backend.Note, cfg *Config, stdout io.Writer, jsonOutput bool) error {
	if _, err := a.coord.Delete(ctx, target.ID); err != nil {
		return notFoundAsNote(err, target.ID)
	}

	if jsonOutput {
		return writeJSON(stdout, actionResponse{Action: "delete", Note: target, Result: ResultActionCompleted})
	}

	if target.Title != "" {
		_, _ = fmt.Fprintf(stdout, "Deleted note: %s (%s)\n", target.Title, target.ID)
	} else {
		_, _ = fmt.Fprintf(stdout, "Deleted note: %s\n", target.ID)
	}
	printResult(stdout, cfg, ResultActionCompleted)
	return nil
}

// notFoundAsNote replaces a not-found API error with one naming the note id
func notFoundAsNote(err error, id string) error {
	if errors.Is(err, backend.ErrNotFound) {
		return utils.ErrNoteNotFound(id)
	}
	return err
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// lineReader returns at most one line per Read, so successive prompts that
// each wrap the same input in a scanner do not swallow each other's answers.
type lineReader struct {
	r *bufio.Reader
}

func (l *lineReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		b, err := l.r.ReadByte()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
		p[n] = b
		n++
		if b == '\n' {
			break
		}
	}
	return n, nil
}
