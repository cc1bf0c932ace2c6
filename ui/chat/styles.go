package chat

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	badgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1A1A1A")).
			Background(lipgloss.Color("#A8CC8C")).
			Padding(0, 1)

	safeBadgeStyle = badgeStyle.
			Background(lipgloss.Color("#E8A33D"))

	userLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#71BEF2"))
	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#D290E4"))
	statusStyle         = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#888888"))
	errorStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("#E88388"))
	indicatorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	helpStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)
