package output

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().Bold(true)

	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// Title renders a section heading for terminal output.
func Title(s string) string {
	return titleStyle.Render(s)
}

// Highlight renders attention-drawing text, e.g. confirmation-required rows.
func Highlight(s string) string {
	return warnStyle.Render(s)
}
