// Package tui provides the Bubble Tea front-end for the migration wizard.
package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the TUI.
type KeyMap struct {
	// Navigation
	Up   key.Binding
	Down key.Binding
	Next key.Binding
	Back key.Binding

	// Stage actions
	Run        key.Binding
	Suggest    key.Binding
	SuggestAll key.Binding
	Apply      key.Binding
	Refine     key.Binding
	NewProject key.Binding

	// Detail panel
	ScrollUp   key.Binding
	ScrollDown key.Binding

	Help   key.Binding
	Cancel key.Binding
	Quit   key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Next: key.NewBinding(
			key.WithKeys("right", "n"),
			key.WithHelp("→/n", "next stage"),
		),
		Back: key.NewBinding(
			key.WithKeys("left", "b"),
			key.WithHelp("←/b", "previous stage"),
		),
		Run: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "run stage"),
		),
		Suggest: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "suggest"),
		),
		SuggestAll: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "suggest all"),
		),
		Apply: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "apply"),
		),
		Refine: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refine"),
		),
		NewProject: key.NewBinding(
			key.WithKeys("N"),
			key.WithHelp("N", "new project"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup", "K"),
			key.WithHelp("pgup", "scroll detail"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("pgdown", "J"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Run, k.Next, k.Back, k.Help, k.Quit}
}

// FullHelp returns the key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.ScrollUp},
		{k.Next, k.Back, k.Run, k.NewProject},
		{k.Suggest, k.SuggestAll, k.Apply, k.Refine},
		{k.Help, k.Cancel, k.Quit},
	}
}
