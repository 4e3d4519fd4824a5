package theme

import "strings"

// Terminal-compatible color constants using ANSI standard colors
// These colors work consistently across different terminal themes
const (
	ColorWhite        = "#FFFFFF" // ANSI 15 - primary text
	ColorBrightBlack  = "#808080" // ANSI 8 - secondary text
	ColorBrightBlue   = "#5C7CFA" // ANSI 12 - primary accent
	ColorBrightCyan   = "#66D9E8" // ANSI 14 - secondary accent
	ColorBrightGreen  = "#51CF66" // ANSI 10 - success
	ColorBrightYellow = "#FFD43B" // ANSI 11 - warning
	ColorBrightRed    = "#FF6B6B" // ANSI 9 - error
	ColorDim          = "#666666"
)

// Message types, in the same order as messaging.MessageType
const (
	MessageInfo = iota
	MessageSuccess
	MessageWarning
	MessageError
)

// GetMessageColor returns the color for a given message type
func GetMessageColor(messageType int) string {
	switch messageType {
	case MessageError:
		return ColorBrightRed
	case MessageSuccess:
		return ColorBrightGreen
	case MessageWarning:
		return ColorBrightYellow
	default:
		return ColorBrightCyan
	}
}

// GetMessageIcon returns the icon for a given message type
func GetMessageIcon(messageType int) string {
	switch messageType {
	case MessageError:
		return "❌"
	case MessageSuccess:
		return "✅"
	case MessageWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

// GetPhaseColor returns the color used for a session phase label
func GetPhaseColor(phase string) string {
	switch phase {
	case "error":
		return ColorBrightRed
	case "resulted":
		return ColorBrightGreen
	case "uploading", "analyzing":
		return ColorBrightYellow
	case "ready", "file-accepted":
		return ColorBrightCyan
	default:
		return ColorBrightBlack
	}
}

// GetClassificationColor highlights malignant classes
func GetClassificationColor(classification string) string {
	c := strings.ToLower(classification)
	switch {
	case strings.Contains(c, "melanoma"), strings.Contains(c, "carcinoma"):
		return ColorBrightRed
	case strings.Contains(c, "keratos"):
		return ColorBrightYellow
	default:
		return ColorBrightGreen
	}
}
