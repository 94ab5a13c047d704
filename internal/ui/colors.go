package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var styles = newPalette()

// Palette holds the named [lipgloss.Style] set used across the TUI views.
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func newPalette() *Palette {
	return &Palette{
		title: bold("#7D56F4").MarginBottom(1),
		ok:    bold("#04B575"),
		err:   bold("#FF0000"),
		warn:  fg("#FFA500"),
		help:  fg("#626262").Italic(true),
	}
}

func fg(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

func bold(color string) lipgloss.Style {
	return fg(color).Bold(true)
}
