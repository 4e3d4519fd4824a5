package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	tuiconfig "github.com/HaiFongPan/dermascan-cli/internal/tui/config"
	"github.com/HaiFongPan/dermascan-cli/internal/tui/theme"
	"github.com/HaiFongPan/dermascan-cli/internal/utils"
)

func (m *ScanModel) leftPanelWidth() int {
	return max(tuiconfig.MinPanelWidth, int(float64(m.windowWidth)*tuiconfig.LeftPanelWidthRatio))
}

func (m *ScanModel) rightPanelWidth() int {
	return max(tuiconfig.MinPanelWidth, m.windowWidth-m.leftPanelWidth()-1)
}

func (m *ScanModel) panelHeight() int {
	return max(tuiconfig.DefaultPreviewRows, m.windowHeight-tuiconfig.ReservedRows)
}

// previewCells is the cell box inside the left panel border and padding
func (m *ScanModel) previewCells() (int, int) {
	cols := m.leftPanelWidth() - 4
	rows := m.panelHeight() - 4
	if cols <= 0 {
		cols = tuiconfig.DefaultPreviewCols
	}
	if rows <= 0 {
		rows = tuiconfig.DefaultPreviewRows
	}
	return cols, rows
}

// View implements the bubbletea.Model interface
func (m *ScanModel) View() string {
	if m.mode == modePreview && m.modal != nil {
		return m.modal.View()
	}

	phase := m.state.Phase()
	header := theme.CreateHeaderStyle().Render("🔬 DermaScan") + "  " +
		theme.CreateStatusIndicatorStyle(theme.GetPhaseColor(phase.String())).Render(phase.String())

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderLeftPanel(m.leftPanelWidth()),
		" ",
		m.renderRightPanel(m.rightPanelWidth()),
	)

	footer := theme.CreateFooterStyle().Render(m.help.ShortHelpView(m.keyMap.ShortHelp()))
	if m.status.HasMessage() {
		footer = theme.CreateFooterStyle().Render(m.status.RenderMessage())
	}

	baseView := header + "\n" + content + "\n" + footer

	switch {
	case m.mode == modePicker:
		return m.renderFloatingDialog(m.renderPickerDialog())
	case m.mode == modePath:
		return m.renderFloatingDialog(m.renderPathDialog())
	case m.showHelp:
		return m.renderFloatingDialog(m.renderHelpDialog())
	}
	return baseView
}

// renderLeftPanel shows the preview of the selected image
func (m *ScanModel) renderLeftPanel(width int) string {
	height := m.panelHeight()
	style := theme.CreateUnifiedPanelStyle(width-2, height-2)

	var body string
	switch {
	case m.state.File == nil:
		body = lipgloss.Place(width-4, height-2, lipgloss.Center, lipgloss.Center,
			theme.CreateSecondaryTextStyle().Render("Press o to choose an image\nor drop one onto the terminal"))
	case m.previewView == "":
		body = theme.CreateLoadingStyle().Render(m.spinner.View() + " Preparing preview...")
	default:
		body = m.previewView
	}
	return style.Render(body)
}

// renderRightPanel shows the session details and the result
func (m *ScanModel) renderRightPanel(width int) string {
	var b strings.Builder
	label := theme.CreateLabelStyle()
	info := theme.CreateInfoTextStyle()
	line := func(name, value string) {
		b.WriteString(label.Render(name) + info.Render(value) + "\n")
	}

	b.WriteString(theme.CreateSectionHeaderStyle().Render("Image"))
	b.WriteString("\n")

	s := m.state
	if s.File == nil {
		b.WriteString(theme.CreateSecondaryTextStyle().Render("No image selected"))
		b.WriteString("\n")
	} else {
		line("📄 Name", s.File.Name)
		line("📊 Size", humanize.Bytes(uint64(s.File.Size())))
		line("🏷️ Type", s.File.ContentType)
		if dims := m.previewDimensions(); dims != "" {
			line("📐 Dimensions", dims)
		}
		ref := "-"
		if s.RemoteRef != "" {
			ref = s.RemoteRef
		}
		line("🔗 Reference", ref)
	}
	b.WriteString("\n")

	switch {
	case s.Uploading:
		pct := -1.0
		if m.uploadTotal > 0 {
			pct = float64(m.uploadSent) / float64(m.uploadTotal)
		}
		b.WriteString(m.spinner.View() + " ")
		b.WriteString(theme.CreateProgressTextStyle().Render(theme.FormatProgressMessage("Uploading", s.File.Name, pct*100)))
		b.WriteString("\n")
		if m.uploadTotal > 0 {
			b.WriteString(m.progress.ViewAs(pct))
			b.WriteString("\n")
			b.WriteString(theme.CreateSecondaryTextStyle().Render(
				fmt.Sprintf("%s / %s", humanize.Bytes(uint64(m.uploadSent)), humanize.Bytes(uint64(m.uploadTotal)))))
			b.WriteString("\n")
		}
	case s.Analyzing:
		b.WriteString(m.spinner.View() + " ")
		b.WriteString(theme.CreateProgressTextStyle().Render(theme.FormatProgressMessage("Analyzing", s.File.Name, s.Progress*100)))
		b.WriteString("\n")
		b.WriteString(m.progress.ViewAs(s.Progress))
		b.WriteString("\n")
	case s.CanAnalyze() && s.Result == nil && s.Err == nil:
		b.WriteString(theme.CreatePromptStyle().Render("Ready. Press a to analyze"))
		b.WriteString("\n")
	}

	if s.Result != nil && s.Err == nil {
		b.WriteString("\n")
		b.WriteString(theme.CreateSectionHeaderStyle().Render("Result"))
		b.WriteString("\n")
		classStyle := theme.CreateStatusIndicatorStyle(theme.GetClassificationColor(s.Result.Classification))
		b.WriteString(label.Render("Classification") + classStyle.Render(s.Result.Classification) + "\n")
		line("Confidence", s.Result.ConfidenceText())
		b.WriteString("\n")
		b.WriteString(info.Width(max(10, width-2)).Render(s.Result.Description))
		b.WriteString("\n")
	}

	if s.Err != nil {
		b.WriteString("\n")
		b.WriteString(theme.CreateErrorStyle().Width(max(10, width-2)).Render("❌ " + s.Err.Message))
		b.WriteString("\n")
	}

	style := lipgloss.NewStyle().
		Width(width).
		Height(m.panelHeight()).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder(), false, false, false, true).
		BorderForeground(lipgloss.Color(theme.ColorBrightBlue))
	return style.Render(b.String())
}

// renderFloatingDialog centres a dialog over the screen
func (m *ScanModel) renderFloatingDialog(dialog string) string {
	return lipgloss.Place(
		m.windowWidth,
		m.windowHeight,
		lipgloss.Center,
		lipgloss.Center,
		dialog,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color("#222222")),
	)
}

// previewDimensions reads the pixel size recorded with the live preview
func (m *ScanModel) previewDimensions() string {
	if m.state.Preview == "" || m.deps.Previews == nil {
		return ""
	}
	entry, ok := m.deps.Previews.Get(m.state.Preview)
	if !ok || entry.Original.Width == 0 {
		return ""
	}
	return fmt.Sprintf("%d x %d", entry.Original.Width, entry.Original.Height)
}

// acceptedHint 列出可分析的扩展名
func acceptedHint() string {
	return theme.CreateSecondaryTextStyle().Render("accepts " + strings.Join(utils.AcceptedExtensions(), " "))
}

func (m *ScanModel) renderPickerDialog() string {
	title := theme.CreateSectionHeaderStyle().Render("📂 Choose an image")
	dir := theme.CreateSecondaryTextStyle().Render(m.picker.CurrentDirectory)
	hint := theme.CreateSecondaryTextStyle().Render("enter select • esc up a directory • q close")
	width := min(tuiconfig.FilePickerDialogWidth, m.windowWidth-4)
	return theme.CreateDialogStyle(width, theme.ColorBrightCyan).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, dir, m.picker.View(), acceptedHint(), hint))
}

func (m *ScanModel) renderPathDialog() string {
	title := theme.CreateSectionHeaderStyle().Render("Image path")
	hint := theme.CreateSecondaryTextStyle().Render("enter open • esc cancel")
	width := min(tuiconfig.DialogDefaultWidth, m.windowWidth-4)
	return theme.CreateDialogStyle(width, theme.ColorBrightCyan).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, m.pathInput.View(), "", acceptedHint(), hint))
}

func (m *ScanModel) renderHelpDialog() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(theme.ColorBrightYellow)).
		MarginBottom(1).
		Render("🔬 DermaScan - Help")
	notice := theme.CreateSecondaryTextStyle().
		Render("Results come from an automated model and are not a diagnosis.")
	width := min(tuiconfig.DialogLargeWidth, m.windowWidth-4)
	return theme.CreateDialogStyle(width, theme.ColorBrightYellow).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, m.help.FullHelpView(m.keyMap.FullHelp()), "", notice))
}

