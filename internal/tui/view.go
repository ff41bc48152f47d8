package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"notehub/backend"
)

// View renders the TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		m.width = 80
		m.height = 24
	}

	switch m.mode {
	case ModeCreate:
		return m.place(m.renderCreateDialog())
	case ModeHelp:
		return m.place(m.renderHelpDialog())
	case ModeConfirmDelete:
		return m.place(m.renderConfirmDeleteDialog())
	}

	var b strings.Builder
	b.WriteString(m.styles.title.Render("NoteHub"))
	b.WriteString("\n")
	b.WriteString(m.searchInput.View())
	b.WriteString("\n\n")

	bodyHeight := m.height - 5
	if bodyHeight < 3 {
		bodyHeight = 3
	}
	listWidth := m.width * 2 / 5
	list := lipgloss.NewStyle().Width(listWidth).Height(bodyHeight).Render(m.renderList(listWidth))
	preview := m.styles.preview.
		Width(m.width - listWidth - 4).
		Height(bodyHeight - 2).
		Render(m.renderPreview())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, list, preview))
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m *Model) renderList(width int) string {
	active := m.state.Key()

	if m.err != nil && (m.page == nil || m.shownKey != active) {
		return m.styles.errorText.Render("Could not load notes: "+m.err.Error()) + "\n" +
			m.styles.muted.Render("Press r to retry")
	}
	if m.page == nil {
		return m.styles.muted.Render("Loading notes...")
	}

	var b strings.Builder
	if m.err != nil {
		b.WriteString(m.styles.errorText.Render("Refresh failed: "+m.err.Error()) + "\n")
	}

	if len(m.page.Notes) == 0 {
		if m.loading && m.shownKey != active {
			b.WriteString(m.styles.muted.Render("Loading notes..."))
			return b.String()
		}
		if q := m.state.CommittedQuery(); q != "" {
			b.WriteString(fmt.Sprintf("No notes found for %q", q))
		} else {
			b.WriteString(m.styles.muted.Render("No notes yet. Press n to create one."))
		}
		return b.String()
	}

	for i, note := range m.page.Notes {
		cursor := " "
		title := truncate(note.Title, width-14)
		if i == m.cursor {
			cursor = ">"
			title = m.styles.selected.Render(title)
		}
		b.WriteString(cursor + " " + title + " " + m.styles.tag.Render("["+string(note.Tag)+"]") + "\n")
	}
	return b.String()
}

func (m *Model) renderPreview() string {
	note, ok := m.selected()
	if !ok {
		return m.styles.muted.Render("No note selected")
	}
	var b strings.Builder
	b.WriteString(m.styles.title.Render(note.Title))
	b.WriteString("\n")
	b.WriteString(m.styles.tag.Render(string(note.Tag)))
	if note.CreatedAt != nil {
		b.WriteString(m.styles.muted.Render("  " + note.CreatedAt.Local().Format("2006-01-02 15:04")))
	}
	b.WriteString("\n\n")
	b.WriteString(note.Content)
	return b.String()
}

func (m *Model) renderStatusBar() string {
	total := "?"
	if t := m.state.TotalPages(); t > 0 {
		total = fmt.Sprintf("%d", t)
	}
	left := fmt.Sprintf("Page %d/%s", m.state.Page(), total)
	if m.loading {
		left += "  loading..."
	}
	if m.state.Pending() {
		left += "  typing..."
	}

	right := ""
	for i, b := range m.keys.shortHelp() {
		if i > 0 {
			right += "  "
		}
		right += b.Help().Key + ":" + b.Help().Desc
	}
	if m.toast != "" {
		style := m.styles.toastOK
		if m.toastFailed {
			style = m.styles.toastFail
		}
		right = style.Render(m.toast)
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}
	return m.styles.statusBar.Width(m.width).Render(left + strings.Repeat(" ", padding) + right)
}

func (m *Model) renderCreateDialog() string {
	var b strings.Builder
	b.WriteString("New Note\n\n")
	b.WriteString(m.fieldLabel(fieldTitle, "Title"))
	b.WriteString(m.titleInput.View() + "\n")
	b.WriteString(m.fieldError("title"))
	b.WriteString(m.fieldLabel(fieldContent, "Content"))
	b.WriteString(m.contentArea.View() + "\n")
	b.WriteString(m.fieldError("content"))
	b.WriteString(m.fieldLabel(fieldTag, "Tag"))

	tags := make([]string, len(backend.Tags))
	for i, tag := range backend.Tags {
		if i == m.tagIndex {
			tags[i] = m.styles.selected.Render("[" + string(tag) + "]")
		} else {
			tags[i] = m.styles.muted.Render(string(tag))
		}
	}
	b.WriteString(strings.Join(tags, " ") + "\n")
	b.WriteString(m.fieldError("tag"))
	b.WriteString("\n")
	switch {
	case m.saving:
		b.WriteString(m.styles.muted.Render("Saving..."))
	case m.saveErr != nil:
		b.WriteString(m.styles.errorText.Render("Not saved: "+m.saveErr.Error()) + "\n")
		b.WriteString(m.styles.muted.Render("Ctrl+S: retry  Esc: discard"))
	default:
		b.WriteString(m.styles.muted.Render("Tab: next field  ←/→: change tag  Ctrl+S: save  Esc: cancel"))
	}
	return m.styles.dialog.Render(b.String())
}

func (m *Model) fieldLabel(field int, label string) string {
	if m.formField == field {
		return m.styles.selected.Render(label) + "\n"
	}
	return label + "\n"
}

func (m *Model) fieldError(field string) string {
	for _, fe := range m.formErrs {
		if fe.Field == field {
			return m.styles.errorText.Render(fe.Field+" "+fe.Message) + "\n"
		}
	}
	return ""
}

func (m *Model) renderHelpDialog() string {
	var b strings.Builder
	b.WriteString("Help - Key Bindings\n")
	for _, group := range m.keys.helpGroups() {
		b.WriteString("\n" + group.title + ":\n")
		for _, binding := range group.bindings {
			h := binding.Help()
			b.WriteString(fmt.Sprintf("  %-7s %s\n", h.Key, h.Desc))
		}
	}
	b.WriteString("\nPress any key to close")
	return m.styles.dialog.Render(b.String())
}

func (m *Model) renderConfirmDeleteDialog() string {
	return m.styles.dialog.Render(
		fmt.Sprintf("Delete %q?\n\n", m.confirmNote.Title) +
			m.styles.muted.Render("y: yes  n: no"),
	)
}

func (m *Model) place(dialog string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, dialog)
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if n < 4 {
		n = 4
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
