package preview

import (
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestDetectTerminal(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		terminal TerminalType
		protocol GraphicsProtocol
	}{
		{"kitty window", map[string]string{"KITTY_WINDOW_ID": "1"}, TerminalKitty, ProtocolKitty},
		{"kitty term", map[string]string{"TERM": "xterm-kitty"}, TerminalKitty, ProtocolKitty},
		{"ghostty", map[string]string{"TERM_PROGRAM": "ghostty"}, TerminalGhostty, ProtocolKitty},
		{"iterm", map[string]string{"TERM_PROGRAM": "iTerm.app"}, TerminalITerm2, ProtocolITerm},
		{"wezterm", map[string]string{"TERM_PROGRAM": "WezTerm"}, TerminalWezTerm, ProtocolITerm},
		{"sixel", map[string]string{"TERM": "mlterm"}, TerminalGeneric, ProtocolSixel},
		{"plain", map[string]string{"TERM": "xterm-256color"}, TerminalGeneric, ProtocolNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRenderer(MethodAuto, envFrom(tt.env))
			assert.Equal(t, tt.terminal, r.Terminal)
			assert.Equal(t, tt.protocol, r.Protocol)
			assert.Equal(t, tt.protocol == ProtocolNone, r.TextMode)
		})
	}
}

func TestNewRenderer_TextForced(t *testing.T) {
	r := newRenderer(MethodText, envFrom(map[string]string{"KITTY_WINDOW_ID": "1"}))
	assert.True(t, r.TextMode)
}

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lesion.png")
	require.NoError(t, os.WriteFile(path, pngFile(t, "lesion.png", w, h).Data, 0600))
	return path
}

func TestRender_ANSI(t *testing.T) {
	r := newRenderer(MethodText, envFrom(nil))
	out, err := r.Render(writePNG(t, 20, 20), 10, 5)
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 5)
	assert.Equal(t, 10, strings.Count(lines[0], "▀"))
	assert.Contains(t, out, "\x1b[38;2;200;40;40m")
}

func TestRender_Kitty(t *testing.T) {
	r := newRenderer(MethodGraphics, envFrom(map[string]string{"KITTY_WINDOW_ID": "1"}))
	require.False(t, r.TextMode)

	out, err := r.Render(writePNG(t, 64, 64), 10, 5)
	require.NoError(t, err)
	assert.Contains(t, out, "_G")
}

func TestRender_Errors(t *testing.T) {
	r := newRenderer(MethodText, envFrom(nil))

	_, err := r.Render(filepath.Join(t.TempDir(), "missing.png"), 10, 5)
	var renderErr *RenderError
	assert.ErrorAs(t, err, &renderErr)

	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0600))
	_, err = r.Render(bad, 10, 5)
	var formatErr *FormatError
	assert.ErrorAs(t, err, &formatErr)
}

func TestFallback(t *testing.T) {
	path := writePNG(t, 4, 4)
	assert.Contains(t, Fallback(path), "lesion.png")
	assert.Contains(t, Fallback(path), "Preview unavailable")
}

func TestCellsFor(t *testing.T) {
	cols, rows := cellsFor(imageRect(80, 32), 40, 16)
	assert.Equal(t, uint32(10), cols)
	assert.Equal(t, uint32(2), rows)

	cols, rows = cellsFor(imageRect(1, 1), 40, 16)
	assert.Equal(t, uint32(1), cols)
	assert.Equal(t, uint32(1), rows)
}

func imageRect(w, h int) image.Rectangle {
	return image.Rect(0, 0, w, h)
}
