// Package tui is the interactive scan screen: pick a lesion photo, watch it
// upload, trigger the analysis and read the result.
package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/HaiFongPan/dermascan-cli/internal/config"
	"github.com/HaiFongPan/dermascan-cli/internal/session"
	tuiconfig "github.com/HaiFongPan/dermascan-cli/internal/tui/config"
	"github.com/HaiFongPan/dermascan-cli/internal/tui/messaging"
	"github.com/HaiFongPan/dermascan-cli/internal/tui/preview"
	"github.com/HaiFongPan/dermascan-cli/internal/tui/theme"
)

// Uploader sends a candidate to the analysis service
type Uploader interface {
	Upload(ctx context.Context, file *session.CandidateFile) (string, error)
}

// Analyzer classifies a previously uploaded image
type Analyzer interface {
	Analyze(ctx context.Context, ref string) (session.Result, error)
}

// Previewer keeps local preview copies keyed by handle
type Previewer interface {
	Put(generation uint64, file *session.CandidateFile) (string, error)
	Get(handle string) (*preview.Entry, bool)
	Release(handle string) error
}

// Renderer draws a preview handle into a cell box
type Renderer interface {
	Render(path string, cols, rows int) (string, error)
}

// Deps are the collaborators of the scan screen
type Deps struct {
	Uploader Uploader
	Analyzer Analyzer
	Previews Previewer
	// Inline must produce plain ANSI output, it is laid out by lipgloss
	Inline Renderer
	// Full is used by the full-screen preview and may use graphics protocols
	Full     Renderer
	Validate session.Validator
	UserData *config.UserData
}

type mode int

const (
	modeMain mode = iota
	modePicker
	modePath
	modePreview
)

// ScanModel represents the scan screen TUI model
type ScanModel struct {
	state  session.State
	deps   Deps
	config *config.Config

	ctx    context.Context
	cancel context.CancelFunc

	keyMap    KeyMap
	help      help.Model
	spinner   spinner.Model
	progress  progress.Model
	picker    filepicker.Model
	pathInput textinput.Model
	status    messaging.StatusManager
	modal     *PreviewModal

	mode         mode
	showHelp     bool
	windowWidth  int
	windowHeight int
	tickInterval time.Duration
	statusTTL    time.Duration
	maxBytes     int64
	initialPath  string
	previewView  string
	uploadSent   int64
	uploadTotal  int64
	program      *tea.Program
	tornDown     bool
}

// NewScanModel creates a new scan screen model
func NewScanModel(cfg *config.Config, deps Deps) *ScanModel {
	ctx, cancel := context.WithCancel(context.Background())

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = theme.CreateLoadingStyle()

	h := help.New()
	h.ShowAll = false

	fp := filepicker.New()
	fp.AutoHeight = true
	fp.ShowHidden = false
	fp.DirAllowed = false
	fp.FileAllowed = true
	if deps.UserData != nil {
		fp.CurrentDirectory = deps.UserData.StartDir()
	}

	ti := textinput.New()
	ti.Placeholder = "/path/to/lesion.jpg"
	ti.Prompt = "📂 "
	ti.CharLimit = 4096
	ti.Width = tuiconfig.DialogDefaultWidth - 10

	interval := cfg.UI.ProgressInterval()
	if interval <= 0 {
		interval = 150 * time.Millisecond
	}

	if deps.Validate == nil {
		deps.Validate = func(string, string) error { return nil }
	}

	return &ScanModel{
		deps:         deps,
		config:       cfg,
		ctx:          ctx,
		cancel:       cancel,
		keyMap:       DefaultKeyMap(),
		help:         h,
		spinner:      s,
		progress:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(tuiconfig.ProgressBarWidth)),
		picker:       fp,
		pathInput:    ti,
		status:       messaging.NewStatusManager(),
		windowWidth:  80,
		windowHeight: 24,
		tickInterval: interval,
		statusTTL:    tuiconfig.StatusMessageTTL,
		maxBytes:     int64(cfg.Service.MaxUploadMB) << 20,
	}
}

// SetProgram sets the tea.Program reference for upload progress reporting
func (m *ScanModel) SetProgram(p *tea.Program) {
	m.program = p
}

// SetInitialPath selects a file as soon as the program starts
func (m *ScanModel) SetInitialPath(path string) {
	m.initialPath = path
}

// State returns the current session state
func (m *ScanModel) State() session.State {
	return m.state
}

// Init implements the bubbletea.Model interface
func (m *ScanModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	if m.initialPath != "" {
		cmds = append(cmds, loadFileCmd(normalizePath(m.initialPath), m.maxBytes))
	}
	return tea.Batch(cmds...)
}

// Update implements the bubbletea.Model interface
func (m *ScanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		m.help.Width = msg.Width
		m.progress.Width = min(tuiconfig.ProgressBarWidth, max(10, m.rightPanelWidth()-6))
		if m.modal != nil {
			m.modal.SetSize(msg.Width, msg.Height)
		}
		m.renderPreview()
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd

	case fileLoadedMsg:
		return m, m.handleFileLoaded(msg)

	case previewReadyMsg:
		if msg.err != nil {
			logrus.WithError(msg.err).Warn("preview unavailable")
			return m, nil
		}
		cmd := m.apply(session.PreviewReady{Generation: msg.generation, Handle: msg.handle})
		if m.state.Preview == msg.handle {
			m.renderPreview()
		}
		return m, cmd

	case uploadProgressMsg:
		if msg.generation == m.state.Generation && m.state.Uploading {
			m.uploadSent, m.uploadTotal = msg.sent, msg.total
		}
		return m, nil

	case uploadSettledMsg:
		current := msg.generation == m.state.Generation
		cmd := m.apply(session.UploadSettled{Generation: msg.generation, Ref: msg.ref, Err: msg.err})
		if current && m.state.Err == nil && m.state.RemoteRef != "" {
			return m, tea.Batch(cmd, m.setStatus("Uploaded, press a to analyze", messaging.MessageSuccess))
		}
		return m, cmd

	case progressTickMsg:
		if msg.generation != m.state.Generation || !m.state.Analyzing {
			return m, nil
		}
		cmd := m.apply(session.AnalyzeProgress{Generation: msg.generation, Value: nextProgress(m.state.Progress)})
		return m, tea.Batch(cmd, m.progressTick(msg.generation))

	case analyzeSettledMsg:
		current := msg.generation == m.state.Generation
		cmd := m.apply(session.AnalyzeSettled{Generation: msg.generation, Result: msg.result, Err: msg.err})
		if current && m.state.Result != nil && m.state.Err == nil {
			return m, tea.Batch(cmd, m.setStatus("Analysis complete", messaging.MessageSuccess))
		}
		return m, cmd

	case clipboardMsg:
		if msg.err != nil {
			return m, m.setStatus(fmt.Sprintf("Copy failed: %v", msg.err), messaging.MessageError)
		}
		return m, m.setStatus("Result copied to clipboard", messaging.MessageSuccess)

	case statusExpireMsg:
		if m.status.Expired(m.statusTTL) {
			m.status.ClearMessage()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	// directory listings and other picker internals
	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	return m, cmd
}

func (m *ScanModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, m.quit()
	}

	switch m.mode {
	case modePicker:
		return m.handlePickerKey(msg)
	case modePath:
		return m.handlePathKey(msg)
	case modePreview:
		if key.Matches(msg, m.keyMap.Close) || key.Matches(msg, m.keyMap.Preview) {
			m.modal = nil
			m.mode = modeMain
		}
		return m, nil
	}

	// a file dropped onto the terminal arrives as a bracketed paste
	if msg.Paste {
		return m, loadFileCmd(normalizePath(string(msg.Runes)), m.maxBytes)
	}

	if m.showHelp {
		if key.Matches(msg, m.keyMap.Help) || key.Matches(msg, m.keyMap.Close) {
			m.showHelp = false
			m.help.ShowAll = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keyMap.Quit):
		return m, m.quit()

	case key.Matches(msg, m.keyMap.Open):
		m.mode = modePicker
		return m, m.picker.Init()

	case key.Matches(msg, m.keyMap.Path):
		m.mode = modePath
		m.pathInput.SetValue("")
		return m, m.pathInput.Focus()

	case key.Matches(msg, m.keyMap.Analyze):
		return m, m.apply(session.AnalyzeRequested{})

	case key.Matches(msg, m.keyMap.Preview):
		if m.state.Preview == "" || m.deps.Full == nil {
			return m, m.setStatus("No preview available", messaging.MessageWarning)
		}
		m.modal = NewPreviewModal(m.deps.Full, m.state.File.Name, m.state.Preview, m.windowWidth, m.windowHeight)
		m.mode = modePreview
		return m, nil

	case key.Matches(msg, m.keyMap.Copy):
		summary := resultSummary(m.state)
		if summary == "" {
			return m, m.setStatus("Nothing to copy yet", messaging.MessageWarning)
		}
		return m, copyCmd(summary)

	case key.Matches(msg, m.keyMap.Help):
		m.showHelp = true
		m.help.ShowAll = true
	}
	return m, nil
}

func (m *ScanModel) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// esc walks up a directory inside the picker
	if msg.String() == "q" {
		m.mode = modeMain
		return m, nil
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)

	if ok, path := m.picker.DidSelectFile(msg); ok {
		m.mode = modeMain
		return m, tea.Batch(cmd, loadFileCmd(path, m.maxBytes))
	}
	return m, cmd
}

func (m *ScanModel) handlePathKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeMain
		m.pathInput.Blur()
		return m, nil
	case tea.KeyEnter:
		path := normalizePath(m.pathInput.Value())
		m.mode = modeMain
		m.pathInput.Blur()
		if path == "" {
			return m, nil
		}
		return m, loadFileCmd(path, m.maxBytes)
	}

	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	return m, cmd
}

func (m *ScanModel) handleFileLoaded(msg fileLoadedMsg) tea.Cmd {
	if msg.err != nil {
		logrus.WithError(msg.err).WithField("path", msg.path).Warn("failed to read candidate")
		return m.setStatus(fmt.Sprintf("Cannot read %s: %v", filepath.Base(msg.path), msg.err), messaging.MessageError)
	}

	ev := session.Select([]*session.CandidateFile{msg.file}, m.deps.Validate)
	cmd := m.apply(ev)

	if _, ok := ev.(session.FileSelected); ok {
		m.status.ClearMessage()
		if m.deps.UserData != nil {
			if err := m.deps.UserData.RememberFile(msg.path); err != nil {
				logrus.WithError(err).Debug("failed to save user data")
			}
			m.picker.CurrentDirectory = m.deps.UserData.StartDir()
		}
	}
	return cmd
}

// apply runs one session transition and turns its effects into commands
func (m *ScanModel) apply(ev session.Event) tea.Cmd {
	if ev == nil {
		return nil
	}

	prevGen := m.state.Generation
	prevPreview := m.state.Preview
	var effects []session.Effect
	m.state, effects = m.state.Apply(ev)

	if m.state.Generation != prevGen {
		m.uploadSent, m.uploadTotal = 0, 0
	}
	if m.state.Preview != prevPreview {
		m.previewView = ""
	}

	cmds := make([]tea.Cmd, 0, len(effects)+1)
	for _, effect := range effects {
		switch e := effect.(type) {
		case session.CreatePreview:
			cmds = append(cmds, m.createPreviewCmd(e))
		case session.ReleasePreview:
			cmds = append(cmds, m.releasePreviewCmd(e))
		case session.StartUpload:
			cmds = append(cmds, m.uploadCmd(e))
		case session.StartAnalyze:
			cmds = append(cmds, m.analyzeCmd(e), m.progressTick(e.Generation))
		}
	}
	if len(cmds) == 0 {
		return nil
	}
	return tea.Batch(cmds...)
}

func (m *ScanModel) setStatus(message string, msgType messaging.MessageType) tea.Cmd {
	m.status.SetMessage(message, msgType)
	if msgType == messaging.MessageError {
		return nil
	}
	return statusExpireCmd(m.statusTTL)
}

// quit tears the session down synchronously, the program exits before
// batched commands would run
func (m *ScanModel) quit() tea.Cmd {
	m.Teardown()
	return tea.Quit
}

// Teardown cancels in-flight calls and releases the current preview. It is
// safe to call more than once.
func (m *ScanModel) Teardown() {
	if m.tornDown {
		return
	}
	m.tornDown = true
	m.cancel()

	var effects []session.Effect
	m.state, effects = m.state.Apply(session.Teardown{})
	for _, effect := range effects {
		if e, ok := effect.(session.ReleasePreview); ok && m.deps.Previews != nil {
			if err := m.deps.Previews.Release(e.Handle); err != nil {
				logrus.WithError(err).Warn("failed to release preview")
			}
		}
	}
	m.previewView = ""
	m.modal = nil
}

func (m *ScanModel) renderPreview() {
	if m.state.Preview == "" || m.deps.Inline == nil {
		m.previewView = ""
		return
	}
	cols, rows := m.previewCells()
	out, err := m.deps.Inline.Render(m.state.Preview, cols, rows)
	if err != nil {
		logrus.WithError(err).Debug("inline preview failed")
		m.previewView = theme.CreateSecondaryTextStyle().Render("Preview unavailable")
		return
	}
	m.previewView = lipgloss.NewStyle().MaxWidth(cols).Render(out)
}
