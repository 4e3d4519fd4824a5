package session

import (
	"fmt"
	"math"
)

// CandidateFile is the file most recently selected by the user
type CandidateFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the byte length of the candidate
func (f *CandidateFile) Size() int64 {
	if f == nil {
		return 0
	}
	return int64(len(f.Data))
}

// Result is the classification returned by the analyzer
type Result struct {
	Classification string  `json:"classification"`
	Confidence     float64 `json:"confidence"`
	Description    string  `json:"description"`
}

// Normalize clamps confidence into [0,1]. NaN becomes 0.
func (r Result) Normalize() Result {
	switch {
	case math.IsNaN(r.Confidence), r.Confidence < 0:
		r.Confidence = 0
	case r.Confidence > 1:
		r.Confidence = 1
	}
	return r
}

// ConfidenceText renders the confidence as a percentage with two decimals
func (r Result) ConfidenceText() string {
	return FormatConfidence(r.Confidence)
}

// FormatConfidence renders 0.95 as "95.00%"
func FormatConfidence(c float64) string {
	return fmt.Sprintf("%.2f%%", c*100)
}

// Phase is the visible state of a session, derived from its data
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseFileAccepted
	PhaseUploading
	PhaseReady
	PhaseAnalyzing
	PhaseResulted
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseFileAccepted:
		return "file-accepted"
	case PhaseUploading:
		return "uploading"
	case PhaseReady:
		return "ready"
	case PhaseAnalyzing:
		return "analyzing"
	case PhaseResulted:
		return "resulted"
	case PhaseError:
		return "error"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}
