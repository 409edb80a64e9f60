package presenter

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var terminalStyles = struct {
	Title   lipgloss.Style
	Detail  lipgloss.Style
	Info    lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}{
	Title:  lipgloss.NewStyle().Bold(true),
	Detail: lipgloss.NewStyle().Faint(true),

	Info:    box("39"),
	Success: box("42"),
	Warning: box("214"),
	Error:   box("196"),
}

func box(color string) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(color)).
		Padding(0, 1).
		Width(72)
}

// RenderTerminal renders a View for a terminal.
func RenderTerminal(view View) string {
	var body strings.Builder
	if view.Title != "" {
		body.WriteString(terminalStyles.Title.Render(view.Title))
		body.WriteString("\n\n")
	}
	body.WriteString(view.Message)
	if view.Detail != "" {
		body.WriteString("\n\n")
		body.WriteString(terminalStyles.Detail.Render("Error details: " + view.Detail))
	}

	style := terminalStyles.Info
	switch view.Kind {
	case KindSuccess:
		style = terminalStyles.Success
	case KindWarning:
		style = terminalStyles.Warning
	case KindError:
		style = terminalStyles.Error
	}
	return style.Render(body.String())
}
