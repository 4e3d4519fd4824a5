package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/HaiFongPan/dermascan-cli/internal/remote"
	"github.com/HaiFongPan/dermascan-cli/internal/session"
	tuiconfig "github.com/HaiFongPan/dermascan-cli/internal/tui/config"
	"github.com/HaiFongPan/dermascan-cli/internal/utils"
)

// Message types for tea.Cmd communication
type fileLoadedMsg struct {
	path string
	file *session.CandidateFile
	err  error
}

type previewReadyMsg struct {
	generation uint64
	handle     string
	err        error
}

type uploadProgressMsg struct {
	generation uint64
	sent       int64
	total      int64
}

type uploadSettledMsg struct {
	generation uint64
	ref        string
	err        error
}

type analyzeSettledMsg struct {
	generation uint64
	result     session.Result
	err        error
}

type progressTickMsg struct {
	generation uint64
}

type clipboardMsg struct {
	err error
}

type statusExpireMsg struct{}

// normalizePath accepts what terminals paste for a dropped file: quoted,
// shell-escaped or file:// paths
func normalizePath(raw string) string {
	p := strings.TrimSpace(raw)
	p = strings.Trim(p, `"'`)
	p = strings.TrimPrefix(p, "file://")
	p = strings.ReplaceAll(p, `\ `, " ")
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

func loadFileCmd(path string, maxBytes int64) tea.Cmd {
	return func() tea.Msg {
		file, err := utils.LoadCandidate(path, maxBytes)
		return fileLoadedMsg{path: path, file: file, err: err}
	}
}

func (m *ScanModel) createPreviewCmd(e session.CreatePreview) tea.Cmd {
	previews := m.deps.Previews
	return func() tea.Msg {
		handle, err := previews.Put(e.Generation, e.File)
		return previewReadyMsg{generation: e.Generation, handle: handle, err: err}
	}
}

func (m *ScanModel) releasePreviewCmd(e session.ReleasePreview) tea.Cmd {
	previews := m.deps.Previews
	return func() tea.Msg {
		if err := previews.Release(e.Handle); err != nil {
			logrus.WithError(err).WithField("handle", e.Handle).Warn("failed to release preview")
		}
		return nil
	}
}

func (m *ScanModel) uploadCmd(e session.StartUpload) tea.Cmd {
	uploader := m.deps.Uploader
	program := m.program
	ctx := remote.ContextWithProgress(m.ctx, func(sent, total int64) {
		if program != nil {
			program.Send(uploadProgressMsg{generation: e.Generation, sent: sent, total: total})
		}
	})
	return func() tea.Msg {
		ref, err := uploader.Upload(ctx, e.File)
		return uploadSettledMsg{generation: e.Generation, ref: ref, err: err}
	}
}

func (m *ScanModel) analyzeCmd(e session.StartAnalyze) tea.Cmd {
	analyzer := m.deps.Analyzer
	ctx := m.ctx
	return func() tea.Msg {
		result, err := analyzer.Analyze(ctx, e.Ref)
		return analyzeSettledMsg{generation: e.Generation, result: result, err: err}
	}
}

func (m *ScanModel) progressTick(generation uint64) tea.Cmd {
	return tea.Tick(m.tickInterval, func(time.Time) tea.Msg {
		return progressTickMsg{generation: generation}
	})
}

func statusExpireCmd(ttl time.Duration) tea.Cmd {
	return tea.Tick(ttl, func(time.Time) tea.Msg {
		return statusExpireMsg{}
	})
}

func copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return clipboardMsg{err: utils.CopyToClipboard(text)}
	}
}

// nextProgress moves the indicator a fixed share of the remaining distance
// towards the ceiling, so it never reaches 100% before the call settles
func nextProgress(p float64) float64 {
	return p + (tuiconfig.ProgressCeiling-p)*tuiconfig.ProgressStep
}

// resultSummary is what the copy key puts on the clipboard
func resultSummary(s session.State) string {
	if s.Result == nil {
		return ""
	}
	name := ""
	if s.File != nil {
		name = s.File.Name
	}
	return fmt.Sprintf("%s: %s (%s)\n%s", name, s.Result.Classification, s.Result.ConfidenceText(), s.Result.Description)
}
