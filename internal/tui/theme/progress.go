package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// CreateProgressTextStyle creates a style for progress text
func CreateProgressTextStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorBrightCyan)).
		Bold(true)
}

// CreateStatusIndicatorStyle creates a style for status indicators
func CreateStatusIndicatorStyle(color string) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(color)).
		Bold(true)
}

// FormatProgressMessage formats a progress message with consistent styling
func FormatProgressMessage(operation, filename string, percentage float64) string {
	if percentage >= 0 {
		return fmt.Sprintf("%s %s... %.1f%%", operation, filename, percentage)
	}
	return fmt.Sprintf("%s %s...", operation, filename)
}
