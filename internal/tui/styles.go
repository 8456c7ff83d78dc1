package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("78"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("111")).
			Width(9)

	suggestionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			PaddingLeft(2)
)

// Title renders a heading line.
func Title(s string) string { return titleStyle.Render(s) }

// Subtitle renders secondary text.
func Subtitle(s string) string { return subtitleStyle.Render(s) }

// Success renders a completion line.
func Success(s string) string { return successStyle.Render("✓ " + s) }

// Warn renders a warning line.
func Warn(s string) string { return warnStyle.Render("! " + s) }

// Dim renders de-emphasized text.
func Dim(s string) string { return dimStyle.Render(s) }

// Error renders an error with an optional suggestion block.
func Error(msg, suggestion string) string {
	out := errorStyle.Render("Error: " + msg)
	if suggestion != "" {
		out += "\n\n" + suggestionStyle.Render(suggestion)
	}
	return out
}
