package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding

	// Open the selected notification's action
	Select key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding

	// Search
	Search key.Binding

	// Command palette
	Command key.Binding

	// Help toggle
	Help key.Binding

	// Status tabs
	TabAll     key.Binding
	TabUnread  key.Binding
	TabStarred key.Binding
	TabPinned  key.Binding

	// Filters
	CycleType     key.Binding
	CyclePriority key.Binding
	ToggleArchive key.Binding
	ClearFilters  key.Binding

	// Actions on the selected notification
	ToggleRead  key.Binding
	Star        key.Binding
	Pin         key.Binding
	Archive     key.Binding
	SetPriority key.Binding
	Delete      key.Binding
	MarkAllRead key.Binding
	ClearAll    key.Binding
	Compose     key.Binding

	// Session
	Login  key.Binding
	Logout key.Binding
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
			key.WithHelp("enter", "open"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Command: key.NewBinding(
			key.WithKeys(":"),
			key.WithHelp(":", "command palette"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		TabAll: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "all"),
		),
		TabUnread: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "unread"),
		),
		TabStarred: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "starred"),
		),
		TabPinned: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "pinned"),
		),
		CycleType: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "cycle type"),
		),
		CyclePriority: key.NewBinding(
			key.WithKeys("P"),
			key.WithHelp("P", "cycle priority filter"),
		),
		ToggleArchive: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "inbox/archive"),
		),
		ClearFilters: key.NewBinding(
			key.WithKeys("0"),
			key.WithHelp("0", "clear filters"),
		),
		ToggleRead: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "read/unread"),
		),
		Star: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "star"),
		),
		Pin: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "pin"),
		),
		Archive: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "archive"),
		),
		SetPriority: key.NewBinding(
			key.WithKeys("!"),
			key.WithHelp("!", "bump priority"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		MarkAllRead: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "mark all read"),
		),
		ClearAll: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "clear all"),
		),
		Compose: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new notification"),
		),
		Login: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "sign in"),
		),
		Logout: key.NewBinding(
			key.WithKeys("O"),
			key.WithHelp("O", "sign out"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.Select, k.ToggleRead,
		k.Quit, k.Help, k.Search,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Back, k.Quit},
		{k.Search, k.Command, k.Help, k.Compose},
		{k.TabAll, k.TabUnread, k.TabStarred, k.TabPinned},
		{k.CycleType, k.CyclePriority, k.ToggleArchive, k.ClearFilters},
		{k.ToggleRead, k.Star, k.Pin, k.Archive, k.SetPriority},
		{k.Delete, k.MarkAllRead, k.ClearAll, k.Login, k.Logout},
	}
}
