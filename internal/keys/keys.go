package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding

	// Open marks the selected notification read
	Open key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding

	// Command palette
	Command key.Binding

	// Help toggle
	Help key.Binding

	// Manual reload
	Refresh key.Binding

	// Actions
	MarkRead    key.Binding
	MarkAllRead key.Binding
	Delete      key.Binding
	Compose     key.Binding
	Dismiss     key.Binding

	// Category filters
	FilterMarketplace  key.Binding
	FilterLostAndFound key.Binding
	FilterSafety       key.Binding
	FilterMessage      key.Binding
	FilterGeneral      key.Binding
	ClearFilters       key.Binding
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
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back / dismiss toast"),
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
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
		MarkRead: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mark read"),
		),
		MarkAllRead: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "mark all read"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		Compose: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new notification"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "dismiss toast"),
		),
		FilterMarketplace: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "toggle marketplace"),
		),
		FilterLostAndFound: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "toggle lost & found"),
		),
		FilterSafety: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "toggle safety"),
		),
		FilterMessage: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "toggle messages"),
		),
		FilterGeneral: key.NewBinding(
			key.WithKeys("5"),
			key.WithHelp("5", "toggle general"),
		),
		ClearFilters: key.NewBinding(
			key.WithKeys("0"),
			key.WithHelp("0", "clear filters"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.Open, k.MarkAllRead,
		k.Quit, k.Help,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Open, k.Back, k.Quit},
		{k.MarkRead, k.MarkAllRead, k.Delete, k.Compose, k.Dismiss},
		{k.Command, k.Help, k.Refresh},
		{k.FilterMarketplace, k.FilterLostAndFound, k.FilterSafety, k.FilterMessage, k.FilterGeneral, k.ClearFilters},
	}
}
