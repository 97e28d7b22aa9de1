package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorRed    = lipgloss.Color("#FF5F5F")
	colorGreen  = lipgloss.Color("#5FD75F")
	colorYellow = lipgloss.Color("#FFD75F")
	colorCyan   = lipgloss.Color("#5FD7FF")
	colorGray   = lipgloss.Color("#6C6C6C")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	labelStyle = lipgloss.NewStyle().Foreground(colorGray).Width(12)

	listeningDotStyle = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	activeDotStyle    = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	idleDotStyle      = lipgloss.NewStyle().Foreground(colorGray)
	errorDotStyle     = lipgloss.NewStyle().Foreground(colorRed).Bold(true)

	meterFillStyle  = lipgloss.NewStyle().Foreground(colorGreen)
	meterEmptyStyle = lipgloss.NewStyle().Foreground(colorGray)

	partialStyle = lipgloss.NewStyle().Foreground(colorYellow)
	commandStyle = lipgloss.NewStyle().Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorRed)
	helpStyle    = lipgloss.NewStyle().Foreground(colorGray)

	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorGray).
			Padding(0, 1)
)
