package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"notehub/backend"
	"notehub/internal/cache"
	"notehub/internal/mutation"
)

type stubPages struct {
	entries map[cache.QueryKey]cache.Entry
}

func (s *stubPages) Get(_ context.Context, key cache.QueryKey) (cache.Entry, error) {
	return s.entries[key], nil
}

func (s *stubPages) Peek(key cache.QueryKey) (cache.Entry, bool) {
	e, ok := s.entries[key]
	return e, ok
}

func (s *stubPages) IsFresh(key cache.QueryKey) bool {
	_, ok := s.entries[key]
	return ok
}

func (s *stubPages) Invalidate(string) []cache.QueryKey { return nil }

type stubMutator struct{}

func (stubMutator) BeginDelete(string) (*mutation.Delete, bool) { return nil, false }

func (stubMutator) Create(context.Context, backend.NewNote) (mutation.Mutation, *backend.Note, error) {
	return mutation.Mutation{}, nil, nil
}

func notePage(page, total int, ids ...string) *backend.NotePage {
	p := &backend.NotePage{Page: page, TotalPages: total}
	for _, id := range ids {
		p.Notes = append(p.Notes, backend.Note{ID: id, Title: "note " + id, Tag: backend.TagTodo})
	}
	return p
}

// TestStaleResultIsDropped verifies a page result for a key the user already
// left does not replace what is on screen.
func TestStaleResultIsDropped(t *testing.T) {
	m := New(&stubPages{}, stubMutator{}, Options{})

	m.Update(pageMsg{key: cache.NotesKey("", 1), entry: cache.Entry{Data: notePage(1, 3, "a", "b")}})
	if got := len(m.Notes()); got != 2 {
		t.Fatalf("expected 2 notes, got %d", got)
	}

	// The user commits a search; the old query's page 2 arrives late
	m.state.Settle(m.state.Edit("work"))
	m.Update(pageMsg{key: cache.NotesKey("", 2), entry: cache.Entry{Data: notePage(2, 3, "late")}})

	if notes := m.Notes(); len(notes) != 2 || notes[0].ID != "a" {
		t.Errorf("stale result replaced the page: %v", notes)
	}
	if m.state.TotalPages() != 0 {
		t.Errorf("stale result changed the page count to %d", m.state.TotalPages())
	}
}

// TestShrinkingPageReloads verifies a page past the new total is clamped.
func TestShrinkingPageReloads(t *testing.T) {
	pages := &stubPages{entries: map[cache.QueryKey]cache.Entry{}}
	m := New(pages, stubMutator{}, Options{})
	m.state.SetTotalPages(3)
	m.state.SetPage(3)

	_, cmd := m.Update(pageMsg{key: cache.NotesKey("", 3), entry: cache.Entry{Data: notePage(3, 2)}})
	if m.state.Page() != 2 {
		t.Fatalf("expected page clamped to 2, got %d", m.state.Page())
	}
	if cmd == nil {
		t.Fatal("expected a reload of the clamped page")
	}
}

func TestSettingsMsgUpdatesDebounce(t *testing.T) {
	m := New(&stubPages{}, stubMutator{}, Options{Debounce: time.Second})
	m.Update(SettingsMsg{Debounce: 200 * time.Millisecond})
	if m.debounce != 200*time.Millisecond {
		t.Errorf("debounce = %v", m.debounce)
	}
	m.Update(SettingsMsg{})
	if m.debounce != 200*time.Millisecond {
		t.Errorf("zero debounce should be ignored, got %v", m.debounce)
	}
}

func TestFailedMutationToast(t *testing.T) {
	m := New(&stubPages{}, stubMutator{}, Options{})
	err := &backend.APIError{Op: "delete note", StatusCode: 404, Message: "not found", Kind: backend.ErrNotFound}
	m.Update(mutationMsg{m: mutation.Mutation{Kind: mutation.KindDelete, Target: "n1", State: mutation.StateRolledBack, Err: err}})

	if m.Toast() == "" || !m.toastFailed {
		t.Errorf("expected a failure toast, got %q (failed=%v)", m.Toast(), m.toastFailed)
	}

	seq := m.toastSeq
	m.Update(toastExpiredMsg{seq: seq - 1})
	if m.Toast() == "" {
		t.Error("an older toast expiry cleared the current toast")
	}
	m.Update(toastExpiredMsg{seq: seq})
	if m.Toast() != "" {
		t.Errorf("toast not cleared: %q", m.Toast())
	}
}

func fillForm(m *Model, title, content string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	m.titleInput.SetValue(title)
	m.contentArea.SetValue(content)
}

// TestFailedCreateKeepsForm verifies the form stays open and filled while a
// create is in flight and after it is rolled back.
func TestFailedCreateKeepsForm(t *testing.T) {
	m := New(&stubPages{}, stubMutator{}, Options{})
	fillForm(m, "Dentist", "Tuesday 9am")

	_, cmd := m.submitForm()
	if cmd == nil {
		t.Fatal("expected the create to be sent")
	}
	if m.Mode() != ModeCreate || !m.Saving() {
		t.Fatalf("expected the form open and saving, mode=%v saving=%v", m.Mode(), m.Saving())
	}

	// Keys other than quit are ignored until the server answers
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.Mode() != ModeCreate {
		t.Fatal("esc closed the form while saving")
	}

	err := backend.NewValidationError("create note", "title taken")
	m.Update(mutationMsg{m: mutation.Mutation{Kind: mutation.KindCreate, Target: "Dentist", State: mutation.StateRolledBack, Err: err}})

	if m.Mode() != ModeCreate {
		t.Errorf("expected the form to stay open after a failed create, mode = %v", m.Mode())
	}
	if m.Saving() {
		t.Error("form still locked after the create settled")
	}
	want := backend.NewNote{Title: "Dentist", Content: "Tuesday 9am", Tag: backend.TagTodo}
	if got := m.FormFields(); got != want {
		t.Errorf("form fields = %+v, want %+v", got, want)
	}
	if !m.toastFailed || !strings.Contains(m.Toast(), "title taken") {
		t.Errorf("expected a failure toast, got %q", m.Toast())
	}
	if !strings.Contains(m.View(), "Not saved:") {
		t.Error("the form should show why the create failed")
	}
}

func TestCommittedCreateClosesForm(t *testing.T) {
	m := New(&stubPages{}, stubMutator{}, Options{})
	fillForm(m, "Dentist", "Tuesday 9am")
	m.submitForm()

	note := &backend.Note{ID: "n9", Title: "Dentist"}
	m.Update(mutationMsg{m: mutation.Mutation{Kind: mutation.KindCreate, Target: "Dentist", State: mutation.StateCommitted, Note: note}})

	if m.Mode() != ModeNormal {
		t.Errorf("expected normal mode, got %v", m.Mode())
	}
	if got := m.FormFields(); got.Title != "" || got.Content != "" {
		t.Errorf("expected the form cleared, got %+v", got)
	}
}

// TestDeleteOutcomeLeavesFormAlone verifies only the form's own create closes it.
func TestDeleteOutcomeLeavesFormAlone(t *testing.T) {
	m := New(&stubPages{}, stubMutator{}, Options{})
	fillForm(m, "Dentist", "Tuesday 9am")

	m.Update(mutationMsg{m: mutation.Mutation{Kind: mutation.KindDelete, Target: "n1", State: mutation.StateCommitted}})

	if m.Mode() != ModeCreate || m.FormFields().Title != "Dentist" {
		t.Errorf("a delete settling changed the form: mode=%v fields=%+v", m.Mode(), m.FormFields())
	}
}

func TestLoadingOnlyWhenNotFresh(t *testing.T) {
	key := cache.NotesKey("", 1)
	pages := &stubPages{entries: map[cache.QueryKey]cache.Entry{}}
	m := New(pages, stubMutator{}, Options{})

	m.Init()
	if !m.loading {
		t.Error("expected loading for an uncached page")
	}

	pages.entries[key] = cache.Entry{Key: key, Data: notePage(1, 1, "a"), Status: cache.StatusSuccess}
	m.Init()
	if m.loading {
		t.Error("a fresh page should not show the loading indicator")
	}
}
