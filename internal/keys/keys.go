package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding

	// Selection
	Select key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding

	// Command palette
	Command key.Binding

	// Help toggle
	Help key.Binding

	// Flush the offline queue now
	Sync key.Binding

	// Message actions
	Dismiss key.Binding

	// Feed filters
	FilterHideRead      key.Binding
	FilterImportant     key.Binding
	FilterShowDismissed key.Binding

	// Sound
	Mute        key.Binding
	Important   key.Binding
	TestSound   key.Binding
	RetryFailed key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open message"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Command: key.NewBinding(
			key.WithKeys(":"),
			key.WithHelp(":", "command palette"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Sync: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "sync now"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "dismiss/restore"),
		),
		FilterHideRead: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "hide read"),
		),
		FilterImportant: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "only important"),
		),
		FilterShowDismissed: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "show dismissed"),
		),
		Mute: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mute"),
		),
		Important: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "important bypasses mute"),
		),
		TestSound: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "test sound"),
		),
		RetryFailed: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "retry failed"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.Select, k.Back,
		k.Quit, k.Help, k.Mute,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Back, k.Quit},
		{k.Command, k.Help, k.Sync, k.RetryFailed},
		{k.FilterHideRead, k.FilterImportant, k.FilterShowDismissed, k.Dismiss},
		{k.Mute, k.Important, k.TestSound},
	}
}
