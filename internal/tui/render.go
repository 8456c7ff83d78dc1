package tui

import (
	"fmt"
	"strings"

	"codeguru/internal/analyzer"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// RenderMarkdown renders md for the terminal, wrapped at width. The raw
// text is returned when rendering fails.
func RenderMarkdown(md string, width int) string {
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-2),
	)
	if err != nil {
		return md
	}
	rendered, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(rendered, "\n")
}

// EntityTree renders an analysis as an indented outline, one entity per
// line with its kind, lines and complexity.
func EntityTree(a *analyzer.Analysis) string {
	depth := make([]int, len(a.Entities))
	var sb strings.Builder
	sb.WriteString(Title(a.Path) + " " + Subtitle("("+a.Language+")") + "\n")
	for _, e := range a.Entities {
		if e.Parent == analyzer.NoParent {
			continue
		}
		depth[e.ID] = depth[e.Parent] + 1
		indent := strings.Repeat("  ", depth[e.ID])
		line := fmt.Sprintf("%s%s %s %s", indent, kindStyle.Render(string(e.Kind)), e.Name,
			Dim(fmt.Sprintf("L%d-%d", e.Span.StartLine, e.Span.EndLine)))
		if e.Kind.Scored() {
			line += " " + complexityStyle(e.Complexity).Render(fmt.Sprintf("cc=%d", e.Complexity))
		}
		sb.WriteString(line + "\n")
	}
	if n := len(a.Diagnostics); n > 0 {
		sb.WriteString(Warn(fmt.Sprintf("%d syntax diagnostics, first: %s", n, a.Diagnostics[0])) + "\n")
	}
	return sb.String()
}

func complexityStyle(cc int) lipgloss.Style {
	switch {
	case cc >= 10:
		return errorStyle
	case cc >= 5:
		return warnStyle
	default:
		return successStyle
	}
}
