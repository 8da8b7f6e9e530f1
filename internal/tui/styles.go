// Package tui renders node command results for the terminal.
package tui

import "github.com/charmbracelet/lipgloss"

// Color constants matching the chat page theme
const (
	ColorBg     = "#0f1115"
	ColorCard   = "#181b22"
	ColorBorder = "#2a2f3a"
	ColorGreen  = "#22c55e"
	ColorRed    = "#ef4444"
	ColorGray   = "#8b91a1"
	ColorText   = "#e6e8ee"
)

// Styles holds the lipgloss styles used by the CLI.
type Styles struct {
	Command lipgloss.Style

	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style

	CodeBlock lipgloss.Style
	Error     lipgloss.Style
}

// DefaultStyles creates the default style set
func DefaultStyles() *Styles {
	return &Styles{
		Command: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorGray)),

		StatusSuccess: lipgloss.NewStyle().
			Background(lipgloss.Color(ColorGreen)).
			Foreground(lipgloss.Color(ColorBg)).
			Padding(0, 1).
			Bold(true),

		StatusFailed: lipgloss.NewStyle().
			Background(lipgloss.Color(ColorRed)).
			Foreground(lipgloss.Color(ColorText)).
			Padding(0, 1).
			Bold(true),

		CodeBlock: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorText)).
			Padding(0, 1).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorBorder)),

		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorRed)),
	}
}

// StatusBadge returns the badge for a command outcome.
func (s *Styles) StatusBadge(ok bool) string {
	if ok {
		return s.StatusSuccess.Render("OK")
	}
	return s.StatusFailed.Render("FAILED")
}
