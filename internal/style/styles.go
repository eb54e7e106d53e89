package style

import "github.com/charmbracelet/lipgloss"

// Shared styles used across the CLI and the TUI dashboard. Kept minimal and
// terminal-color-safe (adaptive colors degrade to 16-color terminals).
var (
	Bold = lipgloss.NewStyle().Bold(true)
	Dim  = lipgloss.NewStyle().Faint(true)

	Good = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "28", Dark: "42"})
	Warn = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "166", Dark: "214"})
	Bad  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "124", Dark: "203"})

	Header = lipgloss.NewStyle().Bold(true).Underline(true)
)

// StatusStyle returns a style appropriate for a SubTask/ApprovalItem status string.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "completed", "approved", "success":
		return Good
	case "failed", "rejected", "error":
		return Bad
	case "in_progress", "pending", "in_review", "queued":
		return Warn
	default:
		return Dim
	}
}
