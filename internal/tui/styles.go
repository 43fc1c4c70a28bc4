package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/kalambet/crowtreasure/internal/treasure"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#6b7280", Dark: "#9ca3af"}
	highlight = lipgloss.AdaptiveColor{Light: "#7c3aed", Dark: "#a78bfa"}
	warning   = lipgloss.Color("#f59e0b")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(highlight).MarginBottom(1)
	helpStyle  = lipgloss.NewStyle().Foreground(subtle).MarginTop(1)
	mutedStyle = lipgloss.NewStyle().Foreground(subtle)
	warnStyle  = lipgloss.NewStyle().Foreground(warning).Bold(true)

	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(subtle).
			Padding(0, 1)

	chipStyle         = lipgloss.NewStyle().Padding(0, 1).Foreground(subtle)
	selectedChipStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("#111827")).Background(highlight)
)

// cardStyle frames a treasure using its own colour theme as the accent.
func cardStyle(t treasure.Treasure, width int) lipgloss.Style {
	color := t.Color
	if color == "" {
		color = treasure.DefaultColor
	}
	s := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(color)).
		Padding(1, 2)
	if width > 8 {
		s = s.Width(min(width-4, 72))
	}
	return s
}

func accent(t treasure.Treasure) lipgloss.Style {
	color := t.Color
	if color == "" {
		color = treasure.DefaultColor
	}
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(color))
}
