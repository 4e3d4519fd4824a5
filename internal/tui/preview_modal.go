package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/HaiFongPan/dermascan-cli/internal/tui/preview"
	"github.com/HaiFongPan/dermascan-cli/internal/tui/theme"
)

// PreviewModal shows the selected image over the whole screen. Unlike the
// inline panel it may use a terminal graphics protocol.
type PreviewModal struct {
	width    int
	height   int
	name     string
	handle   string
	renderer Renderer

	rendered string
	err      error
}

// NewPreviewModal renders handle immediately
func NewPreviewModal(r Renderer, name, handle string, width, height int) *PreviewModal {
	m := &PreviewModal{
		width:    width,
		height:   height,
		name:     name,
		handle:   handle,
		renderer: r,
	}
	m.render()
	return m
}

// SetSize re-renders for a new window size
func (m *PreviewModal) SetSize(width, height int) {
	if width == m.width && height == m.height {
		return
	}
	m.width, m.height = width, height
	m.render()
}

func (m *PreviewModal) render() {
	// name, hint, separator
	cols := max(1, m.width-2)
	rows := max(1, m.height-4)
	m.rendered, m.err = m.renderer.Render(m.handle, cols, rows)
}

// View renders the modal
func (m *PreviewModal) View() string {
	nameLine := lipgloss.NewStyle().
		Width(m.width).
		Align(lipgloss.Center).
		Bold(true).
		Foreground(lipgloss.Color(theme.ColorBrightCyan)).
		Render("🖼 " + m.name)

	hint := lipgloss.NewStyle().
		Width(m.width).
		Align(lipgloss.Center).
		Foreground(lipgloss.Color(theme.ColorBrightBlack)).
		Render("q/esc/v to close")

	var b strings.Builder
	b.WriteString(nameLine)
	b.WriteString("\n")
	b.WriteString(hint)
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(theme.CreateErrorStyle().Render(fmt.Sprintf("Failed to render: %v", m.err)))
		b.WriteString("\n")
		b.WriteString(preview.Fallback(m.handle))
		return b.String()
	}

	separator := lipgloss.NewStyle().
		Width(m.width).
		Align(lipgloss.Center).
		Foreground(lipgloss.Color(theme.ColorBrightBlue)).
		Render("─────────────────── 🖼 ───────────────────")
	b.WriteString(separator)
	b.WriteString("\n")
	b.WriteString(m.rendered)
	b.WriteString("\x1b[0m")
	return b.String()
}
