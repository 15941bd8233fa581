package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used by the chat view.
type Styles struct {
	Title     lipgloss.Style
	UserLabel lipgloss.Style
	BotLabel  lipgloss.Style
	Evidence  lipgloss.Style
	Error     lipgloss.Style
	Waiting   lipgloss.Style
	InputBox  lipgloss.Style
	Help      lipgloss.Style
}

// DefaultStyles returns the default theme.
func DefaultStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),
		UserLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")),
		BotLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42")),
		Evidence: lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),
		Waiting: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),
		InputBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
	}
}
