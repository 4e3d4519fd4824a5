package session

import (
	"github.com/sirupsen/logrus"
)

// State is the single source of truth for one scan session. It is a value:
// Apply returns a new State and never mutates the receiver.
type State struct {
	// Generation increases on every accepted file. Async work is tagged with
	// the generation it was issued for and discarded when it no longer matches.
	Generation uint64

	File      *CandidateFile
	Preview   string
	RemoteRef string
	Result    *Result
	Err       *Error

	Uploading bool
	Analyzing bool
	Progress  float64
}

// Event is an input to the session state machine
type Event interface {
	event()
}

// FileSelected carries a candidate that already passed validation.
// A nil File is an empty selection and changes nothing.
type FileSelected struct {
	File *CandidateFile
}

// FileRejected carries a candidate that failed validation
type FileRejected struct {
	Name   string
	Reason error
}

// PreviewReady reports the preview handle derived for a generation's file
type PreviewReady struct {
	Generation uint64
	Handle     string
}

// UploadSettled reports the outcome of an upload call
type UploadSettled struct {
	Generation uint64
	Ref        string
	Err        error
}

// AnalyzeRequested is the explicit user trigger for analysis
type AnalyzeRequested struct{}

// AnalyzeProgress advances the progress indicator of an in-flight analysis
type AnalyzeProgress struct {
	Generation uint64
	Value      float64
}

// AnalyzeSettled reports the outcome of an analyze call
type AnalyzeSettled struct {
	Generation uint64
	Result     Result
	Err        error
}

// Teardown releases session resources and invalidates in-flight work
type Teardown struct{}

func (FileSelected) event()     {}
func (FileRejected) event()     {}
func (PreviewReady) event()     {}
func (UploadSettled) event()    {}
func (AnalyzeRequested) event() {}
func (AnalyzeProgress) event()  {}
func (AnalyzeSettled) event()   {}
func (Teardown) event()         {}

// Effect is asynchronous work the caller must launch after a transition
type Effect interface {
	effect()
}

// StartUpload asks the caller to upload File and report UploadSettled
type StartUpload struct {
	Generation uint64
	File       *CandidateFile
}

// StartAnalyze asks the caller to analyze Ref and report AnalyzeSettled
type StartAnalyze struct {
	Generation uint64
	Ref        string
}

// CreatePreview asks the caller to derive a preview handle for File
type CreatePreview struct {
	Generation uint64
	File       *CandidateFile
}

// ReleasePreview asks the caller to free a preview handle
type ReleasePreview struct {
	Handle string
}

func (StartUpload) effect()    {}
func (StartAnalyze) effect()   {}
func (CreatePreview) effect()  {}
func (ReleasePreview) effect() {}

// Validator decides whether a declared MIME type is acceptable
type Validator func(name, contentType string) error

// Select turns a user selection into an event. Only the first file counts;
// an empty selection yields nil.
func Select(files []*CandidateFile, validate Validator) Event {
	if len(files) == 0 || files[0] == nil {
		return nil
	}
	f := files[0]
	if err := validate(f.Name, f.ContentType); err != nil {
		return FileRejected{Name: f.Name, Reason: err}
	}
	return FileSelected{File: f}
}

// Apply runs one transition
func (s State) Apply(ev Event) (State, []Effect) {
	switch ev := ev.(type) {
	case FileSelected:
		return s.selectFile(ev)
	case FileRejected:
		s.Err = NewError(KindValidation, MsgInvalidFile, ev.Reason)
		logrus.WithField("file", ev.Name).Debug("session: candidate rejected")
		return s, nil
	case PreviewReady:
		return s.previewReady(ev)
	case UploadSettled:
		return s.uploadSettled(ev), nil
	case AnalyzeRequested:
		return s.requestAnalyze()
	case AnalyzeProgress:
		return s.advanceProgress(ev), nil
	case AnalyzeSettled:
		return s.analyzeSettled(ev), nil
	case Teardown:
		var effects []Effect
		if s.Preview != "" {
			effects = append(effects, ReleasePreview{Handle: s.Preview})
		}
		return State{Generation: s.Generation + 1}, effects
	default:
		return s, nil
	}
}

func (s State) selectFile(ev FileSelected) (State, []Effect) {
	if ev.File == nil {
		return s, nil
	}

	var effects []Effect
	if s.Preview != "" {
		effects = append(effects, ReleasePreview{Handle: s.Preview})
	}

	next := State{
		Generation: s.Generation + 1,
		File:       ev.File,
		Uploading:  true,
	}
	effects = append(effects,
		CreatePreview{Generation: next.Generation, File: ev.File},
		StartUpload{Generation: next.Generation, File: ev.File},
	)

	logrus.WithFields(logrus.Fields{
		"generation": next.Generation,
		"file":       ev.File.Name,
		"size":       ev.File.Size(),
	}).Debug("session: file accepted")
	return next, effects
}

func (s State) previewReady(ev PreviewReady) (State, []Effect) {
	if ev.Handle == "" {
		return s, nil
	}
	if ev.Generation != s.Generation {
		return s, []Effect{ReleasePreview{Handle: ev.Handle}}
	}
	var effects []Effect
	if s.Preview != "" && s.Preview != ev.Handle {
		effects = append(effects, ReleasePreview{Handle: s.Preview})
	}
	s.Preview = ev.Handle
	return s, effects
}

func (s State) uploadSettled(ev UploadSettled) State {
	if s.stale(ev.Generation, "upload") || !s.Uploading {
		return s
	}
	s.Uploading = false
	switch {
	case ev.Err != nil:
		s.RemoteRef = ""
		s.Err = AsError(KindUpload, ev.Err)
	case ev.Ref == "":
		s.RemoteRef = ""
		s.Err = NewError(KindUpload, MsgUploadFailed, nil)
	default:
		s.RemoteRef = ev.Ref
		s.Err = nil
	}
	return s
}

func (s State) requestAnalyze() (State, []Effect) {
	if s.Analyzing {
		logrus.WithField("generation", s.Generation).Debug("session: analyze already in flight, ignoring trigger")
		return s, nil
	}
	if s.RemoteRef == "" {
		s.Err = NewError(KindPrecondition, MsgMissingUpload, nil)
		return s, nil
	}
	s.Analyzing = true
	s.Progress = 0
	s.Result = nil
	s.Err = nil
	return s, []Effect{StartAnalyze{Generation: s.Generation, Ref: s.RemoteRef}}
}

func (s State) advanceProgress(ev AnalyzeProgress) State {
	if ev.Generation != s.Generation || !s.Analyzing {
		return s
	}
	v := ev.Value
	if v > 1 {
		v = 1
	}
	if v > s.Progress {
		s.Progress = v
	}
	return s
}

func (s State) analyzeSettled(ev AnalyzeSettled) State {
	if s.stale(ev.Generation, "analyze") || !s.Analyzing {
		return s
	}
	s.Analyzing = false
	s.Progress = 1
	if ev.Err != nil {
		s.Err = AsError(KindAnalysis, ev.Err)
		return s
	}
	r := ev.Result.Normalize()
	s.Result = &r
	s.Err = nil
	return s
}

func (s State) stale(gen uint64, op string) bool {
	if gen == s.Generation {
		return false
	}
	logrus.WithFields(logrus.Fields{
		"op":         op,
		"generation": gen,
		"current":    s.Generation,
	}).Debug("session: discarding stale result")
	return true
}

// Phase derives the visible state. Error takes precedence over everything.
func (s State) Phase() Phase {
	switch {
	case s.Err != nil:
		return PhaseError
	case s.Analyzing:
		return PhaseAnalyzing
	case s.Result != nil:
		return PhaseResulted
	case s.Uploading:
		return PhaseUploading
	case s.RemoteRef != "":
		return PhaseReady
	case s.File != nil:
		return PhaseFileAccepted
	default:
		return PhaseIdle
	}
}

// CanAnalyze reports whether an analyze trigger would start a call
func (s State) CanAnalyze() bool {
	return s.RemoteRef != "" && !s.Analyzing
}
