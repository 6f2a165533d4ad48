package tui

import "github.com/charmbracelet/lipgloss"

var (
	primary = lipgloss.Color("#7C3AED")
	muted   = lipgloss.Color("#6B7280")
	danger  = lipgloss.Color("#EF4444")
	white   = lipgloss.Color("#FFFFFF")

	appStyle = lipgloss.NewStyle().Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primary)

	countStyle = lipgloss.NewStyle().Foreground(muted)

	itemStyle = lipgloss.NewStyle()

	selectedStyle = lipgloss.NewStyle().
			Background(primary).
			Foreground(white).
			Bold(true)

	emptyStyle = lipgloss.NewStyle().
			Foreground(muted).
			Italic(true)

	statusStyle = lipgloss.NewStyle().Foreground(muted)

	errorStyle = lipgloss.NewStyle().Foreground(danger)

	promptStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primary).
			Padding(0, 1)

	helpKeyStyle  = lipgloss.NewStyle().Foreground(primary)
	helpDescStyle = lipgloss.NewStyle().Foreground(muted)
)
