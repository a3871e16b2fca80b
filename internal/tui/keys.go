package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the TUI keybindings.
type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	Open      key.Binding
	Compose   key.Binding
	Send      key.Binding
	Back      key.Binding
	NewThread key.Binding
	Refresh   key.Binding
	Activity  key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
	Quit      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Open:      key.NewBinding(key.WithKeys(keyEnter), key.WithHelp("enter", "open")),
		Compose:   key.NewBinding(key.WithKeys("tab", "i"), key.WithHelp("tab", "write")),
		Send:      key.NewBinding(key.WithKeys(keyEnter), key.WithHelp("enter", "send")),
		Back:      key.NewBinding(key.WithKeys("esc", "shift+tab"), key.WithHelp("esc", "threads")),
		NewThread: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new thread")),
		Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Activity:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "activity")),
		PageUp:    key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
		PageDown:  key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
		Quit:      key.NewBinding(key.WithKeys("q", keyCtrlC), key.WithHelp("q", "quit")),
	}
}

// threadsHelp returns the bindings shown while the thread list has focus.
func (k keyMap) threadsHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Open, k.Compose, k.NewThread, k.Activity, k.Refresh, k.Quit}
}

// composeHelp returns the bindings shown while writing a message.
func (k keyMap) composeHelp() []key.Binding {
	return []key.Binding{k.Send, k.Back, k.PageUp, k.PageDown}
}
