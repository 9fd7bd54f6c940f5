package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Open    key.Binding
	Back    key.Binding
	Archive key.Binding
	Filter  key.Binding
	Reset   key.Binding
	Refresh key.Binding
	Dismiss key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("k/up", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("j/down", "down")),
	Open:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
	Back:    key.NewBinding(key.WithKeys("esc", "backspace", "h"), key.WithHelp("esc", "back")),
	Archive: key.NewBinding(key.WithKeys(" ", "space", "e"), key.WithHelp("space", "archive/unarchive")),
	Filter:  key.NewBinding(key.WithKeys("a", "tab"), key.WithHelp("a", "archived/all")),
	Reset:   key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reset calls")),
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Dismiss: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "dismiss")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// feedKeys and detailKeys select the bindings shown in the help bar per screen.
type feedKeys struct{ keyMap }

func (k feedKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Open, k.Archive, k.Filter, k.Reset, k.Refresh, k.Quit}
}

func (k feedKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp(), {k.Dismiss}}
}

type detailKeys struct{ keyMap }

func (k detailKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Back, k.Refresh, k.Quit}
}

func (k detailKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
