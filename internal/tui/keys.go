package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the bindings of the note list. Form and dialog keys are
// handled directly by their modes.
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	NextPage key.Binding
	PrevPage key.Binding
	Search   key.Binding
	Clear    key.Binding
	New      key.Binding
	Delete   key.Binding
	Refresh  key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("]", "right", "l"),
			key.WithHelp("]/→", "next page"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("[", "left", "h"),
			key.WithHelp("[/←", "previous page"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Clear: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear search"),
		),
		New: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new note"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete note"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// helpGroups returns the bindings shown in the help overlay, by section.
func (k keyMap) helpGroups() []struct {
	title    string
	bindings []key.Binding
} {
	return []struct {
		title    string
		bindings []key.Binding
	}{
		{"Navigation", []key.Binding{k.Up, k.Down, k.NextPage, k.PrevPage}},
		{"Notes", []key.Binding{k.Search, k.Clear, k.New, k.Delete, k.Refresh}},
		{"General", []key.Binding{k.Help, k.Quit}},
	}
}

// shortHelp returns the bindings shown in the status bar.
func (k keyMap) shortHelp() []key.Binding {
	return []key.Binding{k.Search, k.New, k.Delete, k.Help, k.Quit}
}
