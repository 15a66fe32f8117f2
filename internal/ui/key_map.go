package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up        key.Binding
	down      key.Binding
	like      key.Binding
	dislike   key.Binding
	refresh   key.Binding
	search    key.Binding
	enter     key.Binding
	back      key.Binding
	quit      key.Binding
	forceQuit key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		like:      key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "upvote")),
		dislike:   key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "downvote")),
		refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		search:    key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		enter:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "add")),
		back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		forceQuit: key.NewBinding(key.WithKeys("ctrl+c")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.like, k.dislike, k.refresh, k.search, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down},
		{k.like, k.dislike, k.refresh},
		{k.search, k.enter, k.back, k.quit},
	}
}
