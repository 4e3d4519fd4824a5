package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines keybindings for the scan screen
type KeyMap struct {
	Open    key.Binding
	Path    key.Binding
	Analyze key.Binding
	Preview key.Binding
	Copy    key.Binding
	Help    key.Binding
	Quit    key.Binding
	Close   key.Binding
}

// DefaultKeyMap returns default keybindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Open: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open image"),
		),
		Path: key.NewBinding(
			key.WithKeys("p", "i"),
			key.WithHelp("p", "paste path"),
		),
		Analyze: key.NewBinding(
			key.WithKeys("a", "enter"),
			key.WithHelp("a/enter", "analyze"),
		),
		Preview: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "full preview"),
		),
		Copy: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy result"),
		),
		Help: key.NewBinding(
			key.WithKeys("?", "h"),
			key.WithHelp("?/h", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		// esc is the file picker's "back" key, so dialogs close on q as well
		Close: key.NewBinding(
			key.WithKeys("esc", "q"),
			key.WithHelp("esc/q", "close"),
		),
	}
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.Analyze, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Open, k.Path},
		{k.Analyze, k.Preview, k.Copy},
		{k.Help, k.Close, k.Quit},
	}
}
