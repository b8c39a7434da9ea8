package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorBase    = lipgloss.Color("#1e1e2e")
	colorSurface = lipgloss.Color("#45475a")
	colorText    = lipgloss.Color("#cdd6f4")
	colorMuted   = lipgloss.Color("#a6adc8")
	colorAccent  = lipgloss.Color("#b4befe")
	colorFocus   = lipgloss.Color("#a6e3a1")
	colorWarn    = lipgloss.Color("#fab387")

	appStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Padding(1, 2)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorSurface).
			Padding(1, 2)

	tabStyle       = lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1)
	activeTabStyle = lipgloss.NewStyle().Foreground(colorBase).Background(colorAccent).Bold(true).Padding(0, 1)

	titleStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
	clockStyle = lipgloss.NewStyle().Foreground(colorFocus).Bold(true)
	hotStyle   = lipgloss.NewStyle().Foreground(colorWarn).Bold(true)
	barStyle   = lipgloss.NewStyle().Foreground(colorFocus)
)

func levelStyle(hex string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Bold(true)
}
