package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/HaiFongPan/dermascan-cli/internal/config"
	"github.com/HaiFongPan/dermascan-cli/internal/session"
	"github.com/HaiFongPan/dermascan-cli/internal/tui/preview"
	"github.com/HaiFongPan/dermascan-cli/internal/utils"
)

// MockService 模拟分析服务
type MockService struct {
	mock.Mock
}

func (m *MockService) Upload(ctx context.Context, file *session.CandidateFile) (string, error) {
	args := m.Called(ctx, file)
	return args.String(0), args.Error(1)
}

func (m *MockService) Analyze(ctx context.Context, ref string) (session.Result, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(session.Result), args.Error(1)
}

// fakePreviews 记录创建和释放的预览句柄
type fakePreviews struct {
	mutex    sync.Mutex
	live     map[string]bool
	released []string
}

func newFakePreviews() *fakePreviews {
	return &fakePreviews{live: make(map[string]bool)}
}

func (f *fakePreviews) Put(generation uint64, file *session.CandidateFile) (string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	handle := filepath.Join("/previews", file.Name) + "#" + string(rune('0'+generation))
	f.live[handle] = true
	return handle, nil
}

func (f *fakePreviews) Get(handle string) (*preview.Entry, bool) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if !f.live[handle] {
		return nil, false
	}
	return &preview.Entry{Handle: handle, Original: preview.Size{Width: 640, Height: 480}}, true
}

func (f *fakePreviews) Release(handle string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	delete(f.live, handle)
	f.released = append(f.released, handle)
	return nil
}

type fakeRenderer struct{}

func (fakeRenderer) Render(path string, cols, rows int) (string, error) {
	return "IMG " + filepath.Base(path), nil
}

func newTestModel(t *testing.T, svc *MockService) (*ScanModel, *fakePreviews) {
	t.Helper()
	previews := newFakePreviews()
	cfg := &config.Config{UI: config.UIConfig{ProgressIntervalMS: 1}}
	m := NewScanModel(cfg, Deps{
		Uploader: svc,
		Analyzer: svc,
		Previews: previews,
		Inline:   fakeRenderer{},
		Full:     fakeRenderer{},
		Validate: utils.Validator(),
	})
	m.statusTTL = time.Millisecond
	m.Update(tea.WindowSizeMsg{Width: 160, Height: 40})
	t.Cleanup(m.Teardown)
	return m, previews
}

// runCmd executes a command and flattens batches into their messages
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	switch msg := cmd().(type) {
	case nil:
		return nil
	case tea.BatchMsg:
		var out []tea.Msg
		for _, c := range msg {
			out = append(out, runCmd(c)...)
		}
		return out
	default:
		return []tea.Msg{msg}
	}
}

// drive feeds msg and every message its commands produce until quiet
func drive(m *ScanModel, msg tea.Msg) {
	queue := []tea.Msg{msg}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		_, cmd := m.Update(next)
		queue = append(queue, runCmd(cmd)...)
	}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func lesionFile() *session.CandidateFile {
	return &session.CandidateFile{Name: "lesion.png", ContentType: "image/png", Data: []byte("png bytes")}
}

func loaded(f *session.CandidateFile) fileLoadedMsg {
	return fileLoadedMsg{path: filepath.Join("/photos", f.Name), file: f}
}

func TestScan_SelectUploadAnalyze(t *testing.T) {
	svc := &MockService{}
	svc.On("Upload", mock.Anything, mock.Anything).Return("abc123.png", nil).Once()
	svc.On("Analyze", mock.Anything, "abc123.png").Return(session.Result{
		Classification: "Benign nevus",
		Confidence:     0.95,
		Description:    "A common mole.",
	}, nil).Once()

	m, _ := newTestModel(t, svc)
	drive(m, loaded(lesionFile()))

	state := m.State()
	assert.Equal(t, session.PhaseReady, state.Phase())
	assert.Equal(t, "abc123.png", state.RemoteRef)
	assert.NotEmpty(t, state.Preview)
	assert.Contains(t, m.View(), "IMG ")

	drive(m, keyRunes("a"))

	state = m.State()
	require.NotNil(t, state.Result)
	assert.Equal(t, session.PhaseResulted, state.Phase())
	assert.Equal(t, 1.0, state.Progress)

	view := m.View()
	assert.Contains(t, view, "Benign nevus")
	assert.Contains(t, view, "95.00%")
	assert.Contains(t, view, "abc123.png")
	svc.AssertExpectations(t)
}

func TestScan_InvalidFileKeepsUpload(t *testing.T) {
	svc := &MockService{}
	svc.On("Upload", mock.Anything, mock.Anything).Return("abc123.png", nil).Once()

	m, _ := newTestModel(t, svc)
	drive(m, loaded(lesionFile()))
	drive(m, loaded(&session.CandidateFile{Name: "notes.txt", ContentType: "text/plain", Data: []byte("x")}))

	state := m.State()
	require.NotNil(t, state.Err)
	assert.Equal(t, session.MsgInvalidFile, state.Err.Message)
	assert.Equal(t, "abc123.png", state.RemoteRef)
	assert.Equal(t, "lesion.png", state.File.Name)
	assert.Contains(t, m.View(), session.MsgInvalidFile)
	svc.AssertNumberOfCalls(t, "Upload", 1)
}

func TestScan_ErrorHidesEarlierResult(t *testing.T) {
	svc := &MockService{}
	svc.On("Upload", mock.Anything, mock.Anything).Return("abc123.png", nil).Once()
	svc.On("Analyze", mock.Anything, "abc123.png").
		Return(session.Result{Classification: "Melanoma", Confidence: 0.8, Description: "dark"}, nil).Once()

	m, _ := newTestModel(t, svc)
	drive(m, loaded(lesionFile()))
	drive(m, keyRunes("a"))
	require.Contains(t, m.View(), "Melanoma")

	drive(m, loaded(&session.CandidateFile{Name: "notes.txt", ContentType: "text/plain", Data: []byte("x")}))

	state := m.State()
	assert.Equal(t, session.PhaseError, state.Phase())
	assert.NotNil(t, state.Result)

	view := m.View()
	assert.Contains(t, view, session.MsgInvalidFile)
	assert.NotContains(t, view, "Melanoma")
	assert.NotContains(t, view, "80.00%")
}

func TestScan_OversizedNonImageRejectedByType(t *testing.T) {
	svc := &MockService{}
	m, _ := newTestModel(t, svc)
	m.maxBytes = 10

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0644))

	drive(m, fileLoadedMsgFor(t, path, m.maxBytes))

	require.NotNil(t, m.State().Err)
	assert.Equal(t, session.MsgInvalidFile, m.State().Err.Message)
	svc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestScan_OversizedImageOnlyReportsStatus(t *testing.T) {
	svc := &MockService{}
	m, _ := newTestModel(t, svc)
	m.maxBytes = 10

	path := filepath.Join(t.TempDir(), "big.png")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0644))

	drive(m, fileLoadedMsgFor(t, path, m.maxBytes))

	assert.Nil(t, m.State().Err)
	assert.Contains(t, m.View(), "larger than the 10 B limit")
}

func TestScan_ShowsPreviewDimensions(t *testing.T) {
	svc := &MockService{}
	svc.On("Upload", mock.Anything, mock.Anything).Return("abc123.png", nil).Once()

	m, _ := newTestModel(t, svc)
	drive(m, loaded(lesionFile()))

	assert.Contains(t, m.View(), "640 x 480")
}

func TestScan_DialogsListAcceptedExtensions(t *testing.T) {
	m, _ := newTestModel(t, &MockService{})

	m.Update(keyRunes("p"))
	assert.Contains(t, m.View(), "accepts .gif .jpe .jpeg .jpg .png")
}

// fileLoadedMsgFor runs the real load command for path
func fileLoadedMsgFor(t *testing.T, path string, maxBytes int64) tea.Msg {
	t.Helper()
	msgs := runCmd(loadFileCmd(path, maxBytes))
	require.Len(t, msgs, 1)
	return msgs[0]
}

func TestScan_AnalyzeWithoutUpload(t *testing.T) {
	svc := &MockService{}
	m, _ := newTestModel(t, svc)

	drive(m, keyRunes("a"))

	require.NotNil(t, m.State().Err)
	assert.Equal(t, session.MsgMissingUpload, m.State().Err.Message)
	svc.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
}

func TestScan_UploadFailureShowsServerMessage(t *testing.T) {
	svc := &MockService{}
	svc.On("Upload", mock.Anything, mock.Anything).
		Return("", session.NewError(session.KindUpload, "File type not allowed", nil)).Once()

	m, _ := newTestModel(t, svc)
	drive(m, loaded(lesionFile()))

	state := m.State()
	assert.Equal(t, session.PhaseError, state.Phase())
	assert.Empty(t, state.RemoteRef)
	assert.Contains(t, m.View(), "File type not allowed")
}

func TestScan_AnalyzeFailureAllowsRetry(t *testing.T) {
	svc := &MockService{}
	svc.On("Upload", mock.Anything, mock.Anything).Return("abc123.png", nil).Once()
	svc.On("Analyze", mock.Anything, "abc123.png").
		Return(session.Result{}, errors.New("boom")).Once()
	svc.On("Analyze", mock.Anything, "abc123.png").
		Return(session.Result{Classification: "Melanoma", Confidence: 0.5}, nil).Once()

	m, _ := newTestModel(t, svc)
	drive(m, loaded(lesionFile()))

	drive(m, keyRunes("a"))
	require.NotNil(t, m.State().Err)
	assert.Equal(t, session.MsgAnalyzeFailed, m.State().Err.Message)
	assert.Nil(t, m.State().Result)

	drive(m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, m.State().Result)
	assert.Equal(t, "Melanoma", m.State().Result.Classification)
	assert.Nil(t, m.State().Err)
	svc.AssertExpectations(t)
}

func TestScan_StaleUploadDiscarded(t *testing.T) {
	svc := &MockService{}
	m, _ := newTestModel(t, svc)

	// commands are dropped, results are delivered by hand
	m.Update(loaded(lesionFile()))
	m.Update(loaded(&session.CandidateFile{Name: "second.jpg", ContentType: "image/jpeg", Data: []byte("jpg")}))
	require.Equal(t, uint64(2), m.State().Generation)

	m.Update(uploadSettledMsg{generation: 1, ref: "old.png"})
	assert.Empty(t, m.State().RemoteRef)
	assert.True(t, m.State().Uploading)

	m.Update(uploadSettledMsg{generation: 2, ref: "new.jpg"})
	assert.Equal(t, "new.jpg", m.State().RemoteRef)
}

func TestScan_StalePreviewReleased(t *testing.T) {
	svc := &MockService{}
	m, previews := newTestModel(t, svc)

	m.Update(loaded(lesionFile()))
	m.Update(loaded(&session.CandidateFile{Name: "second.jpg", ContentType: "image/jpeg", Data: []byte("jpg")}))

	_, cmd := m.Update(previewReadyMsg{generation: 1, handle: "stale-handle"})
	runCmd(cmd)

	assert.Empty(t, m.State().Preview)
	assert.Contains(t, previews.released, "stale-handle")
}

func TestScan_BusyGuard(t *testing.T) {
	svc := &MockService{}
	m, _ := newTestModel(t, svc)

	m.Update(loaded(lesionFile()))
	m.Update(uploadSettledMsg{generation: 1, ref: "abc123.png"})

	_, first := m.Update(keyRunes("a"))
	require.NotNil(t, first)
	require.True(t, m.State().Analyzing)

	_, second := m.Update(keyRunes("a"))
	assert.Nil(t, second)
	assert.True(t, m.State().Analyzing)
}

func TestScan_ProgressTicks(t *testing.T) {
	svc := &MockService{}
	m, _ := newTestModel(t, svc)

	m.Update(loaded(lesionFile()))
	m.Update(uploadSettledMsg{generation: 1, ref: "abc123.png"})
	m.Update(keyRunes("a"))

	var last float64
	for i := 0; i < 5; i++ {
		_, cmd := m.Update(progressTickMsg{generation: 1})
		assert.NotNil(t, cmd)
		p := m.State().Progress
		assert.Greater(t, p, last)
		assert.Less(t, p, 0.95)
		last = p
	}

	_, cmd := m.Update(progressTickMsg{generation: 0})
	assert.Nil(t, cmd)
	assert.Equal(t, last, m.State().Progress)

	m.Update(analyzeSettledMsg{generation: 1, result: session.Result{Classification: "Melanoma", Confidence: 0.7}})
	assert.Equal(t, 1.0, m.State().Progress)

	_, cmd = m.Update(progressTickMsg{generation: 1})
	assert.Nil(t, cmd)
}

func TestScan_UploadProgress(t *testing.T) {
	svc := &MockService{}
	m, _ := newTestModel(t, svc)
	m.Update(loaded(lesionFile()))

	m.Update(uploadProgressMsg{generation: 1, sent: 512, total: 1024})
	assert.Equal(t, int64(512), m.uploadSent)
	assert.Contains(t, m.View(), "512 B / 1.0 kB")

	m.Update(uploadProgressMsg{generation: 7, sent: 1024, total: 1024})
	assert.Equal(t, int64(512), m.uploadSent)
}

func TestScan_QuitReleasesPreview(t *testing.T) {
	svc := &MockService{}
	svc.On("Upload", mock.Anything, mock.Anything).Return("abc123.png", nil).Once()

	m, previews := newTestModel(t, svc)
	drive(m, loaded(lesionFile()))
	handle := m.State().Preview
	require.NotEmpty(t, handle)

	_, cmd := m.Update(keyRunes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Contains(t, previews.released, handle)
	assert.Empty(t, m.State().Preview)
	assert.Error(t, m.ctx.Err())
}

func TestScan_ReadErrorLeavesState(t *testing.T) {
	svc := &MockService{}
	m, _ := newTestModel(t, svc)

	m.Update(fileLoadedMsg{path: "/missing.png", err: os.ErrNotExist})

	assert.Equal(t, session.PhaseIdle, m.State().Phase())
	msg, _, ok := m.status.GetMessage()
	assert.True(t, ok)
	assert.Contains(t, msg, "missing.png")
}

func TestScan_PathInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "my lesion.png")
	require.NoError(t, os.WriteFile(path, []byte("png bytes"), 0600))

	svc := &MockService{}
	m, _ := newTestModel(t, svc)

	m.Update(keyRunes("p"))
	require.Equal(t, modePath, m.mode)
	m.Update(keyRunes(`"` + path + `"`))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, modeMain, m.mode)

	msgs := runCmd(cmd)
	require.Len(t, msgs, 1)
	got, ok := msgs[0].(fileLoadedMsg)
	require.True(t, ok)
	require.NoError(t, got.err)
	assert.Equal(t, "my lesion.png", got.file.Name)
	assert.Equal(t, "image/png", got.file.ContentType)
}

func TestScan_PasteLoadsFile(t *testing.T) {
	svc := &MockService{}
	m, _ := newTestModel(t, svc)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("'/nowhere/a.png'"), Paste: true})
	msgs := runCmd(cmd)
	require.Len(t, msgs, 1)
	got := msgs[0].(fileLoadedMsg)
	assert.Equal(t, "/nowhere/a.png", got.path)
	assert.Error(t, got.err)
}

func TestScan_HelpToggle(t *testing.T) {
	m, _ := newTestModel(t, &MockService{})

	m.Update(keyRunes("?"))
	assert.True(t, m.showHelp)
	assert.Contains(t, m.View(), "Help")

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.showHelp)
}

func TestScan_CopyWithoutResult(t *testing.T) {
	m, _ := newTestModel(t, &MockService{})
	m.Update(keyRunes("y"))
	msg, _, ok := m.status.GetMessage()
	assert.True(t, ok)
	assert.Equal(t, "Nothing to copy yet", msg)
}

func TestNormalizePath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		in   string
		want string
	}{
		{"  /tmp/a.png\n", "/tmp/a.png"},
		{`"/tmp/my photo.png"`, "/tmp/my photo.png"},
		{"'/tmp/a.png'", "/tmp/a.png"},
		{"file:///tmp/a.png", "/tmp/a.png"},
		{`/tmp/my\ photo.png`, "/tmp/my photo.png"},
		{"~/a.png", filepath.Join(home, "a.png")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePath(tt.in))
		})
	}
}

func TestNextProgress(t *testing.T) {
	p := 0.0
	for i := 0; i < 200; i++ {
		next := nextProgress(p)
		assert.Greater(t, next, p)
		p = next
	}
	assert.Less(t, p, 0.95)
}

func TestResultSummary(t *testing.T) {
	assert.Empty(t, resultSummary(session.State{}))

	s := session.State{
		File:   lesionFile(),
		Result: &session.Result{Classification: "Melanoma", Confidence: 0.5, Description: "Serious."},
	}
	assert.Equal(t, "lesion.png: Melanoma (50.00%)\nSerious.", resultSummary(s))
}
