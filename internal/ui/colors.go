package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Spotify green for success, a muted red for downvotes.
var styles = NewPalette("#1DB954", "#1ED760", "#E22134", "#FFA42B", "#727272")

// Palette is a small stylesheet of named [lipgloss.Style] fields.
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

// NewPalette builds a [Palette] from title, ok, error, warning and help colors.
func NewPalette(title, ok, err, warn, help string) *Palette {
	return &Palette{
		title: bold(title).MarginBottom(1),
		ok:    bold(ok),
		err:   bold(err),
		warn:  fg(warn),
		help:  fg(help).Italic(true),
	}
}

func fg(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

func bold(color string) lipgloss.Style {
	return fg(color).Bold(true)
}
