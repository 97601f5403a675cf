package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Header displays the variant, the stage steps and the current project.
type Header struct {
	Title   string
	Stages  []string
	Current int
	Project string
	Status  string // Rendered at the right edge, e.g. the busy spinner
	width   int
}

// NewHeader creates a new header component.
func NewHeader() Header {
	return Header{}
}

// SetStages sets the stage titles and the active index.
func (h *Header) SetStages(titles []string, current int) {
	h.Stages = titles
	h.Current = current
}

// SetWidth sets the component width.
func (h *Header) SetWidth(w int) {
	h.width = w
}

// View renders the header.
func (h Header) View() string {
	contentWidth := h.width - 4 // Account for border padding
	if contentWidth < 40 {
		contentWidth = 40
	}

	title := headerValueStyle.Render(h.Title)
	steps := h.renderSteps()
	top := title + headerLabelStyle.Render("  ") + steps

	right := h.Status
	spacing := contentWidth - lipgloss.Width(top) - lipgloss.Width(right)
	if spacing < 1 {
		spacing = 1
	}
	top += strings.Repeat(" ", spacing) + right

	project := h.Project
	if project == "" {
		project = "none"
	}
	label := "Project: "
	project = truncate(project, contentWidth-runewidth.StringWidth(label))
	bottom := headerLabelStyle.Render(label) + headerValueStyle.Render(project)

	return headerStyle.Width(contentWidth).Render(top + "\n" + bottom)
}

// renderSteps renders "1 Upload › 2 Analyze › ..." with the active step highlighted.
func (h Header) renderSteps() string {
	parts := make([]string, len(h.Stages))
	for i, title := range h.Stages {
		label := fmt.Sprintf("%d %s", i+1, title)
		switch {
		case i < h.Current:
			parts[i] = stepDoneStyle.Render("✓ " + label)
		case i == h.Current:
			parts[i] = stepCurrentStyle.Render(label)
		default:
			parts[i] = stepTodoStyle.Render(label)
		}
	}
	return strings.Join(parts, headerLabelStyle.Render(" › "))
}

// truncate truncates a string to the given display width.
// It properly handles Unicode characters by using rune width calculations.
func truncate(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}
