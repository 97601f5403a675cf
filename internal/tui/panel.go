package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
)

// DetailPanel is a scrollable panel showing the selected row in full:
// a suggestion's proposed code, an audit fix or a generated file.
type DetailPanel struct {
	Title    string
	viewport viewport.Model
	content  string
	Focused  bool
	width    int
	height   int
	dirty    bool // content changed since last viewport sync
}

// NewDetailPanel creates a new detail panel.
func NewDetailPanel(title string) DetailPanel {
	return DetailPanel{
		Title:    title,
		viewport: viewport.New(80, 10),
	}
}

// SetSize sets the panel dimensions.
func (p *DetailPanel) SetSize(width, height int) {
	p.width = width
	p.height = height

	// Account for title line and borders
	viewportWidth := width - 4
	viewportHeight := height - 3
	if viewportWidth < 10 {
		viewportWidth = 10
	}
	if viewportHeight < 3 {
		viewportHeight = 3
	}

	p.viewport.Width = viewportWidth
	p.viewport.Height = viewportHeight
}

// SetContent replaces the content. The view returns to the top only when
// the content actually changed, so a refresh keeps the scroll position.
func (p *DetailPanel) SetContent(content string) {
	if content == p.content {
		return
	}
	p.content = content
	p.dirty = true
}

// Content returns the current content.
func (p *DetailPanel) Content() string {
	return p.content
}

// ScrollUp scrolls up by n lines.
func (p *DetailPanel) ScrollUp(n int) {
	p.syncViewport()
	p.viewport.LineUp(n)
}

// ScrollDown scrolls down by n lines.
func (p *DetailPanel) ScrollDown(n int) {
	p.syncViewport()
	p.viewport.LineDown(n)
}

// AtTop returns whether the viewport is at the top.
func (p *DetailPanel) AtTop() bool {
	return p.viewport.AtTop()
}

func (p *DetailPanel) syncViewport() {
	if !p.dirty {
		return
	}
	p.viewport.SetContent(p.content)
	p.viewport.GotoTop()
	p.dirty = false
}

// View renders the panel.
func (p *DetailPanel) View() string {
	p.syncViewport()
	contentWidth := p.width - 2 // Account for border
	if contentWidth < 10 {
		contentWidth = 10
	}

	title := panelTitleStyle.Render(p.Title)
	indicator := ""
	if !p.viewport.AtTop() || !p.viewport.AtBottom() {
		indicator = scrollIndicatorStyle.Render("[pgup/pgdn]")
	}
	spacing := contentWidth - lipgloss.Width(title) - lipgloss.Width(indicator) - 2
	if spacing < 1 {
		spacing = 1
	}
	titleLine := title + strings.Repeat(" ", spacing) + indicator

	style := panelStyle
	if p.Focused {
		style = panelFocusedStyle
	}
	return style.Width(contentWidth).Render(titleLine + "\n" + p.viewport.View())
}
