package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageColorsFollowMessageOrder(t *testing.T) {
	assert.Equal(t, ColorBrightCyan, GetMessageColor(MessageInfo))
	assert.Equal(t, ColorBrightGreen, GetMessageColor(MessageSuccess))
	assert.Equal(t, ColorBrightYellow, GetMessageColor(MessageWarning))
	assert.Equal(t, ColorBrightRed, GetMessageColor(MessageError))
	assert.Equal(t, "❌", GetMessageIcon(MessageError))
}

func TestClassificationColor(t *testing.T) {
	assert.Equal(t, ColorBrightRed, GetClassificationColor("Melanoma"))
	assert.Equal(t, ColorBrightRed, GetClassificationColor("Basal cell carcinoma"))
	assert.Equal(t, ColorBrightYellow, GetClassificationColor("Actinic keratoses"))
	assert.Equal(t, ColorBrightGreen, GetClassificationColor("Melanocytic nevi"))
}

func TestFormatProgressMessage(t *testing.T) {
	assert.Equal(t, "Uploading a.png... 50.0%", FormatProgressMessage("Uploading", "a.png", 50))
	assert.Equal(t, "Analyzing a.png...", FormatProgressMessage("Analyzing", "a.png", -1))
}
