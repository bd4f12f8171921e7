package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Tab        key.Binding
	ShiftTab   key.Binding
	Escape     key.Binding

	// View switching
	ViewPage    key.Binding
	ViewTree    key.Binding
	ViewHistory key.Binding
	ViewLogs    key.Binding

	// Router actions
	Push     key.Binding
	Replace  key.Binding
	Prefetch key.Binding
	Refresh  key.Binding
	Back     key.Binding
	Forward  key.Binding

	// Scrolling
	Up           key.Binding
	Down         key.Binding
	Top          key.Binding
	Bottom       key.Binding
	HalfPageUp   key.Binding
	HalfPageDown key.Binding

	// Logs
	ToggleFollow key.Binding

	// Prompt
	Confirm key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "e"),
			key.WithHelp("e", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("h", "?"),
			key.WithHelp("h/?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Cycle views"),
		),
		ShiftTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "Cycle views (reverse)"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Close prompt / return to page"),
		),

		ViewPage: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "Page view"),
		),
		ViewTree: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "Tree and cache"),
		),
		ViewHistory: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "History"),
		),
		ViewLogs: key.NewBinding(
			key.WithKeys("4", "l"),
			key.WithHelp("4/l", "Logs"),
		),

		Push: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "Open URL (push)"),
		),
		Replace: key.NewBinding(
			key.WithKeys("O"),
			key.WithHelp("O", "Open URL (replace)"),
		),
		Prefetch: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "Prefetch URL"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refresh"),
		),
		Back: key.NewBinding(
			key.WithKeys("b", "left"),
			key.WithHelp("b/←", "Back"),
		),
		Forward: key.NewBinding(
			key.WithKeys("f", "right"),
			key.WithHelp("f/→", "Forward"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Scroll down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),
		HalfPageUp: key.NewBinding(
			key.WithKeys("ctrl+u"),
			key.WithHelp("ctrl+u", "Half page up"),
		),
		HalfPageDown: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "Half page down"),
		),

		ToggleFollow: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("Space", "Toggle follow mode"),
		),

		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Confirm"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ViewPage, k.ViewTree, k.ViewHistory, k.ViewLogs},
		{k.Push, k.Replace, k.Prefetch, k.Refresh, k.Back, k.Forward},
		{k.Up, k.Down, k.Top, k.Bottom, k.HalfPageDown, k.HalfPageUp},
		{k.ToggleFollow},
		{k.CycleTheme, k.Help, k.Quit},
	}
}
