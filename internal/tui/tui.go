// Package tui provides a terminal user interface for browsing and editing notes.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"notehub/backend"
	"notehub/internal/cache"
	"notehub/internal/mutation"
	"notehub/internal/notification"
	"notehub/internal/search"
	"notehub/internal/utils"
)

// DefaultToastDuration is how long a mutation outcome stays in the status bar.
const DefaultToastDuration = 4 * time.Second

// Pages is the part of the query cache the TUI reads. *cache.Cache satisfies it.
type Pages interface {
	Get(ctx context.Context, key cache.QueryKey) (cache.Entry, error)
	Peek(key cache.QueryKey) (cache.Entry, bool)
	IsFresh(key cache.QueryKey) bool
	Invalidate(resource string) []cache.QueryKey
}

// Mutator runs note mutations. *mutation.Coordinator satisfies it.
type Mutator interface {
	BeginDelete(id string) (*mutation.Delete, bool)
	Create(ctx context.Context, fields backend.NewNote) (mutation.Mutation, *backend.Note, error)
}

// Mode indicates the current input mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeSearch
	ModeCreate
	ModeHelp
	ModeConfirmDelete
)

// Form fields of the create dialog, in tab order
const (
	fieldTitle = iota
	fieldContent
	fieldTag
	fieldCount
)

// Options configures a Model.
type Options struct {
	Context       context.Context
	Debounce      time.Duration // quiet period before a search is committed
	ToastDuration time.Duration
	NoConfirm     bool // delete without the y/n dialog
}

// Model represents the TUI state
type Model struct {
	pages   Pages
	mutator Mutator
	state   *search.State
	ctx     context.Context

	debounce      time.Duration
	toastDuration time.Duration
	noConfirm     bool

	// Displayed page. It can belong to a previous key while the active key loads.
	page     *backend.NotePage
	shownKey cache.QueryKey
	loading  bool
	err      error
	cursor   int

	// Mode and input
	mode        Mode
	keys        keyMap
	searchInput textinput.Model
	titleInput  textinput.Model
	contentArea textarea.Model
	tagIndex    int
	formField   int
	formErrs    []utils.FieldError
	saving      bool  // create sent, form locked until it settles
	saveErr     error // why the last create was rolled back
	confirmNote backend.Note

	toast       string
	toastFailed bool
	toastSeq    int

	// UI dimensions
	width  int
	height int

	styles styles
}

// Message types
type pageMsg struct {
	key   cache.QueryKey
	entry cache.Entry
	err   error
}

type settleMsg struct {
	ticket search.Ticket
}

type mutationMsg struct {
	m mutation.Mutation
}

type toastExpiredMsg struct {
	seq int
}

// SettingsMsg applies reloaded settings to a running TUI.
type SettingsMsg struct {
	Debounce time.Duration
}

// New creates a new TUI model
func New(pages Pages, mutator Mutator, opts Options) *Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = search.DefaultDebounce
	}
	toastDuration := opts.ToastDuration
	if toastDuration <= 0 {
		toastDuration = DefaultToastDuration
	}

	si := textinput.New()
	si.Placeholder = "Search notes..."
	si.Prompt = "Search: "
	si.CharLimit = 100

	ti := textinput.New()
	ti.Placeholder = "Title"
	ti.CharLimit = utils.TitleMaxLength

	ta := textarea.New()
	ta.Placeholder = "Content"
	ta.CharLimit = utils.ContentMaxLength
	ta.ShowLineNumbers = false
	ta.SetHeight(5)

	return &Model{
		pages:         pages,
		mutator:       mutator,
		state:         search.New(),
		ctx:           ctx,
		debounce:      debounce,
		toastDuration: toastDuration,
		noConfirm:     opts.NoConfirm,
		mode:          ModeNormal,
		keys:          defaultKeyMap(),
		searchInput:   si,
		titleInput:    ti,
		contentArea:   ta,
		styles:        defaultStyles(),
	}
}

// Init initializes the TUI
func (m *Model) Init() tea.Cmd {
	return m.load()
}

// load shows whatever is cached for the active key and fetches it through the
// cache. The cache answers without I/O when the entry is fresh.
func (m *Model) load() tea.Cmd {
	key := m.state.Key()
	if e, ok := m.pages.Peek(key); ok && e.Data != nil {
		m.show(key, e.Data)
	}
	// A fresh entry comes back without I/O, so no loading indicator
	m.loading = !m.pages.IsFresh(key)
	pages, ctx := m.pages, m.ctx
	return func() tea.Msg {
		entry, err := pages.Get(ctx, key)
		return pageMsg{key: key, entry: entry, err: err}
	}
}

func (m *Model) show(key cache.QueryKey, page *backend.NotePage) {
	m.page = page
	m.shownKey = key
	if n := len(page.Notes); m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) selected() (backend.Note, bool) {
	if m.page == nil || m.cursor < 0 || m.cursor >= len(m.page.Notes) {
		return backend.Note{}, false
	}
	return m.page.Notes[m.cursor], true
}

func (m *Model) setToast(text string, failed bool) tea.Cmd {
	m.toastSeq++
	m.toast = text
	m.toastFailed = failed
	seq := m.toastSeq
	return tea.Tick(m.toastDuration, func(time.Time) tea.Msg {
		return toastExpiredMsg{seq: seq}
	})
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.searchInput.Width = msg.Width - len(m.searchInput.Prompt) - 2
		m.contentArea.SetWidth(min(60, msg.Width-8))
		return m, nil

	case pageMsg:
		return m.handlePage(msg)

	case settleMsg:
		if m.state.Settle(msg.ticket) {
			m.cursor = 0
			return m, m.load()
		}
		return m, nil

	case mutationMsg:
		return m.handleMutation(msg.m)

	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = ""
		}
		return m, nil

	case SettingsMsg:
		if msg.Debounce > 0 {
			m.debounce = msg.Debounce
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeSearch:
			return m.handleSearchMode(msg)
		case ModeCreate:
			return m.handleCreateMode(msg)
		case ModeHelp:
			m.mode = ModeNormal
			return m, nil
		case ModeConfirmDelete:
			return m.handleConfirmDeleteMode(msg)
		}
		return m.handleNormalMode(msg)
	}

	// Cursor blink and other component messages
	var cmd tea.Cmd
	switch m.mode {
	case ModeSearch:
		m.searchInput, cmd = m.searchInput.Update(msg)
	case ModeCreate:
		cmd = m.updateFormField(msg)
	}
	return m, cmd
}

func (m *Model) handlePage(msg pageMsg) (tea.Model, tea.Cmd) {
	if msg.key != m.state.Key() {
		// A result for a key the user already left; the cache has kept it
		utils.Debugf("tui: dropping result for %s, showing %s", msg.key, m.state.Key())
		return m, nil
	}
	m.loading = false
	if msg.err != nil {
		m.err = msg.err
		utils.Debugf("tui: fetch %s failed: %v", msg.key, msg.err)
		return m, nil
	}
	m.err = nil
	if msg.entry.Data == nil {
		return m, nil
	}
	m.show(msg.key, msg.entry.Data)

	before := m.state.Page()
	m.state.SetTotalPages(msg.entry.Data.TotalPages)
	if m.state.Page() != before {
		// The page shrank out from under us, e.g. after deleting the last note
		return m, m.load()
	}
	return m, nil
}

func (m *Model) handleMutation(mu mutation.Mutation) (tea.Model, tea.Cmd) {
	var focus tea.Cmd
	if mu.Kind == mutation.KindCreate && m.saving {
		m.saving = false
		if mu.State == mutation.StateCommitted {
			m.mode = ModeNormal
			m.resetForm()
		} else {
			// Keep what was typed so the user can fix it and retry
			m.saveErr = mu.Err
			focus = m.focusFormField()
		}
	}
	if mu.Err == nil && !mu.State.Settled() {
		return m, tea.Batch(focus, m.setToast("Already saving \""+mu.Target+"\"", false))
	}
	n := notification.FromMutation(mu)
	return m, tea.Batch(focus, m.setToast(n.Message, n.IsFailure()), m.load())
}

func (m *Model) handleNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.page != nil && m.cursor < len(m.page.Notes)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.NextPage):
		return m.changePage(m.state.NextPage)

	case key.Matches(msg, m.keys.PrevPage):
		return m.changePage(m.state.PrevPage)

	case key.Matches(msg, m.keys.Search):
		m.mode = ModeSearch
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.Clear):
		if m.searchInput.Value() == "" && m.state.CommittedQuery() == "" {
			return m, nil
		}
		m.searchInput.Reset()
		m.state.Edit("")
		if m.state.Flush() {
			m.cursor = 0
			return m, m.load()
		}
		return m, nil

	case key.Matches(msg, m.keys.New):
		m.mode = ModeCreate
		m.resetForm()
		return m, m.focusFormField()

	case key.Matches(msg, m.keys.Delete):
		note, ok := m.selected()
		if !ok {
			return m, nil
		}
		if m.noConfirm {
			return m, m.beginDelete(note)
		}
		m.confirmNote = note
		m.mode = ModeConfirmDelete
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		m.pages.Invalidate(cache.ResourceNotes)
		m.err = nil
		return m, m.load()

	case key.Matches(msg, m.keys.Help):
		m.mode = ModeHelp
		return m, nil
	}
	return m, nil
}

func (m *Model) changePage(step func() int) (tea.Model, tea.Cmd) {
	before := m.state.Page()
	if step() == before {
		return m, nil
	}
	m.cursor = 0
	return m, m.load()
}

func (m *Model) handleSearchMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyEnter:
		m.mode = ModeNormal
		m.searchInput.Blur()
		if m.state.Flush() {
			m.cursor = 0
			return m, m.load()
		}
		return m, nil

	case tea.KeyEsc:
		// Leave the box; a pending edit still commits after the quiet period
		m.mode = ModeNormal
		m.searchInput.Blur()
		return m, nil
	}

	before := m.searchInput.Value()
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	value := m.searchInput.Value()
	if value == before {
		return m, cmd
	}

	ticket := m.state.Edit(value)
	settle := tea.Tick(m.debounce, func(time.Time) tea.Msg {
		return settleMsg{ticket: ticket}
	})
	return m, tea.Batch(cmd, settle)
}

func (m *Model) handleConfirmDeleteMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.mode = ModeNormal
		return m, m.beginDelete(m.confirmNote)
	case "n", "N", "esc", "q":
		m.mode = ModeNormal
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

// beginDelete removes the note from the cached pages immediately and settles
// the delete in the background.
func (m *Model) beginDelete(note backend.Note) tea.Cmd {
	d, ok := m.mutator.BeginDelete(note.ID)
	if !ok {
		return m.setToast("Already deleting \""+note.Title+"\"", false)
	}
	if e, ok := m.pages.Peek(m.state.Key()); ok && e.Data != nil {
		m.show(e.Key, e.Data)
	}
	ctx := m.ctx
	return func() tea.Msg {
		return mutationMsg{m: d.Settle(ctx)}
	}
}

// =============================================================================
// Create form
// =============================================================================

func (m *Model) resetForm() {
	m.titleInput.Reset()
	m.contentArea.Reset()
	m.tagIndex = 0
	m.formField = fieldTitle
	m.formErrs = nil
	m.saving = false
	m.saveErr = nil
}

func (m *Model) focusFormField() tea.Cmd {
	m.titleInput.Blur()
	m.contentArea.Blur()
	switch m.formField {
	case fieldTitle:
		return m.titleInput.Focus()
	case fieldContent:
		return m.contentArea.Focus()
	}
	return nil
}

func (m *Model) formFields() backend.NewNote {
	return backend.NewNote{
		Title:   strings.TrimSpace(m.titleInput.Value()),
		Content: strings.TrimSpace(m.contentArea.Value()),
		Tag:     backend.Tags[m.tagIndex],
	}
}

func (m *Model) handleCreateMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.saving {
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	}
	switch msg.String() {
	case "esc":
		m.mode = ModeNormal
		m.titleInput.Blur()
		m.contentArea.Blur()
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	case "ctrl+s":
		return m.submitForm()
	case "tab":
		m.formField = (m.formField + 1) % fieldCount
		return m, m.focusFormField()
	case "shift+tab":
		m.formField = (m.formField + fieldCount - 1) % fieldCount
		return m, m.focusFormField()
	}

	switch m.formField {
	case fieldTitle:
		if msg.Type == tea.KeyEnter {
			m.formField = fieldContent
			return m, m.focusFormField()
		}
	case fieldTag:
		switch msg.String() {
		case "enter":
			return m.submitForm()
		case "right", "l", " ":
			m.tagIndex = (m.tagIndex + 1) % len(backend.Tags)
		case "left", "h":
			m.tagIndex = (m.tagIndex + len(backend.Tags) - 1) % len(backend.Tags)
		}
		return m, nil
	}
	return m, m.updateFormField(msg)
}

func (m *Model) updateFormField(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.formField {
	case fieldTitle:
		m.titleInput, cmd = m.titleInput.Update(msg)
	case fieldContent:
		m.contentArea, cmd = m.contentArea.Update(msg)
	}
	return cmd
}

// submitForm checks the fields locally so problems are shown next to the
// inputs; the coordinator validates again before sending. The form stays open
// and locked until the create settles, and closes only if it committed.
func (m *Model) submitForm() (tea.Model, tea.Cmd) {
	fields := m.formFields()
	m.formErrs = utils.NoteFieldErrors(fields)
	if len(m.formErrs) > 0 {
		return m, nil
	}

	m.saving = true
	m.saveErr = nil
	m.titleInput.Blur()
	m.contentArea.Blur()

	mutator, ctx := m.mutator, m.ctx
	toast := m.setToast("Saving \""+fields.Title+"\"...", false)
	return m, tea.Batch(toast, func() tea.Msg {
		mu, _, _ := mutator.Create(ctx, fields)
		return mutationMsg{m: mu}
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Mode returns the current input mode.
func (m *Model) Mode() Mode {
	return m.mode
}

// Key returns the query key of the active page.
func (m *Model) Key() cache.QueryKey {
	return m.state.Key()
}

// Err returns the error of the last fetch of the active page, if any.
func (m *Model) Err() error {
	return m.err
}

// Saving reports whether a submitted create is waiting for the server.
func (m *Model) Saving() bool {
	return m.saving
}

// FormFields returns the current contents of the create form.
func (m *Model) FormFields() backend.NewNote {
	return m.formFields()
}

// Toast returns the transient status message.
func (m *Model) Toast() string {
	return m.toast
}

// Notes returns the notes currently on screen.
func (m *Model) Notes() []backend.Note {
	if m.page == nil {
		return nil
	}
	out := make([]backend.Note, len(m.page.Notes))
	copy(out, m.page.Notes)
	return out
}

// styles used by View
type styles struct {
	title     lipgloss.Style
	selected  lipgloss.Style
	tag       lipgloss.Style
	muted     lipgloss.Style
	errorText lipgloss.Style
	toastOK   lipgloss.Style
	toastFail lipgloss.Style
	preview   lipgloss.Style
	dialog    lipgloss.Style
	statusBar lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		tag: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),
		muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		errorText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),
		toastOK: lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")),
		toastFail: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),
		preview: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		dialog: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2),
		statusBar: lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),
	}
}
