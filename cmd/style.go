package main

import (
	"github.com/charmbracelet/lipgloss"
)

// Terminal styles for command output. lipgloss drops the colors when stdout
// is not a terminal, so piped output stays plain.
var (
	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF")).
			Width(12)

	solvedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4CAF50"))

	unsolvedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	idStyle = lipgloss.NewStyle().
		Faint(true)
)

// outcome renders the end-of-run marker: the solving method when the target
// was hit, a plain note otherwise.
func outcome(solvedBy string, solved, interrupted bool) string {
	switch {
	case solved:
		return " " + solvedStyle.Render("(* "+solvedBy+")")
	case interrupted:
		return " " + warnStyle.Render("(interrupted)")
	default:
		return " " + unsolvedStyle.Render("(not solved)")
	}
}
