package preview

import (
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"os"
	"path/filepath"
	"strings"

	"github.com/BourgeoisBear/rasterm"
	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
)

// 渲染配置
const (
	DefaultCols = 40
	DefaultRows = 16

	// 终端单元格像素尺寸的近似值
	cellPixelWidth  = 8
	cellPixelHeight = 16
)

// Method 预览方式，对应配置 ui.image_preview_method
type Method string

const (
	MethodAuto     Method = "auto"
	MethodText     Method = "text"
	MethodGraphics Method = "graphics"
)

// TerminalType 终端类型
type TerminalType string

const (
	TerminalKitty   TerminalType = "kitty"
	TerminalITerm2  TerminalType = "iterm2"
	TerminalWezTerm TerminalType = "wezterm"
	TerminalGhostty TerminalType = "ghostty"
	TerminalGeneric TerminalType = "generic"
)

// GraphicsProtocol 图形协议
type GraphicsProtocol string

const (
	ProtocolKitty GraphicsProtocol = "kitty"
	ProtocolITerm GraphicsProtocol = "iterm2"
	ProtocolSixel GraphicsProtocol = "sixel"
	ProtocolNone  GraphicsProtocol = "none"
)

// Renderer turns a preview file into terminal output
type Renderer struct {
	Terminal TerminalType
	Protocol GraphicsProtocol
	TextMode bool

	getenv func(string) string
}

// NewRenderer picks graphics or ANSI text output. "auto" uses graphics only
// when the terminal advertises a protocol rasterm can speak.
func NewRenderer(method string) *Renderer {
	return newRenderer(Method(strings.ToLower(method)), os.Getenv)
}

func newRenderer(method Method, getenv func(string) string) *Renderer {
	r := &Renderer{getenv: getenv}
	r.Terminal, r.Protocol = r.DetectTerminal()

	switch method {
	case MethodText:
		r.TextMode = true
	case MethodGraphics:
		r.TextMode = r.Protocol == ProtocolNone
	default:
		r.TextMode = r.Protocol == ProtocolNone
	}
	return r
}

// DetectTerminal 检测终端类型并选择图形协议
func (r *Renderer) DetectTerminal() (TerminalType, GraphicsProtocol) {
	term := strings.ToLower(r.getenv("TERM"))
	termProgram := strings.ToLower(r.getenv("TERM_PROGRAM"))

	// Kitty 终端检测
	if r.getenv("KITTY_WINDOW_ID") != "" || strings.Contains(term, "kitty") {
		return TerminalKitty, ProtocolKitty
	}

	// Ghostty 使用 Kitty 协议
	if r.getenv("GHOSTTY") != "" || termProgram == "ghostty" || strings.Contains(term, "ghostty") {
		return TerminalGhostty, ProtocolKitty
	}

	if termProgram == "iterm.app" {
		return TerminalITerm2, ProtocolITerm
	}

	// WezTerm 支持 iTerm2 协议
	if termProgram == "wezterm" {
		return TerminalWezTerm, ProtocolITerm
	}

	for _, sixelTerm := range []string{"xterm-sixel", "mlterm", "yaft"} {
		if strings.Contains(term, sixelTerm) {
			return TerminalGeneric, ProtocolSixel
		}
	}

	return TerminalGeneric, ProtocolNone
}

// Render draws the image at path into a cols x rows cell box
func (r *Renderer) Render(path string, cols, rows int) (string, error) {
	if cols <= 0 {
		cols = DefaultCols
	}
	if rows <= 0 {
		rows = DefaultRows
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		if os.IsNotExist(err) {
			return "", r.renderError(fmt.Errorf("image file not found: %s", path))
		}
		return "", &FormatError{
			Format:   strings.TrimPrefix(filepath.Ext(path), "."),
			FilePath: path,
			Reason:   err.Error(),
		}
	}

	if r.TextMode {
		return renderANSI(img, cols, rows), nil
	}

	var out strings.Builder
	switch r.Protocol {
	case ProtocolKitty:
		fitted := imaging.Fit(img, cols*cellPixelWidth, rows*cellPixelHeight, imaging.Lanczos)
		cellCols, cellRows := cellsFor(fitted.Bounds(), cols, rows)
		err = rasterm.KittyWriteImage(&out, fitted, rasterm.KittyImgOpts{DstCols: cellCols, DstRows: cellRows})
	case ProtocolITerm:
		fitted := imaging.Fit(img, cols*cellPixelWidth, rows*cellPixelHeight, imaging.Lanczos)
		err = rasterm.ItermWriteImage(&out, fitted)
	case ProtocolSixel:
		fitted := imaging.Fit(img, cols*cellPixelWidth, rows*cellPixelHeight, imaging.Lanczos)
		// Sixel 需要调色板图像
		paletted := image.NewPaletted(fitted.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(paletted, fitted.Bounds(), fitted, image.Point{})
		err = rasterm.SixelWriteImage(&out, paletted)
	default:
		return renderANSI(img, cols, rows), nil
	}
	if err != nil {
		return "", r.renderError(fmt.Errorf("failed to encode image: %w", err))
	}
	return out.String(), nil
}

// Fallback describes the file when it cannot be drawn
func Fallback(path string) string {
	stat, err := os.Stat(path)
	if err != nil {
		return fmt.Sprintf("🖼️ %s", filepath.Base(path))
	}
	return fmt.Sprintf("🖼️ %s (%s)\n⚠️  Preview unavailable", filepath.Base(path), humanize.Bytes(uint64(stat.Size())))
}

func (r *Renderer) renderError(err error) *RenderError {
	return &RenderError{Terminal: string(r.Terminal), Protocol: string(r.Protocol), Err: err}
}

// cellsFor 计算图片占用的终端单元格数量，至少为 1
func cellsFor(b image.Rectangle, maxCols, maxRows int) (uint32, uint32) {
	cols := (b.Dx() + cellPixelWidth - 1) / cellPixelWidth
	rows := (b.Dy() + cellPixelHeight - 1) / cellPixelHeight
	cols = min(max(cols, 1), maxCols)
	rows = min(max(rows, 1), maxRows)
	return uint32(cols), uint32(rows)
}

// renderANSI 使用 24 位颜色半块字符渲染，每个单元格显示上下两个像素
func renderANSI(img image.Image, cols, rows int) string {
	fitted := imaging.Fit(img, cols, rows*2, imaging.Box)
	b := fitted.Bounds()
	w, h := b.Dx(), b.Dy()

	var out strings.Builder
	for y := 0; y < h; y += 2 {
		for x := 0; x < w; x++ {
			top := fitted.NRGBAAt(x, y)
			bottom := top
			if y+1 < h {
				bottom = fitted.NRGBAAt(x, y+1)
			}
			fmt.Fprintf(&out, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm▀",
				top.R, top.G, top.B, bottom.R, bottom.G, bottom.B)
		}
		out.WriteString("\x1b[0m")
		if y+2 < h {
			out.WriteByte('\n')
		}
	}
	return out.String()
}
