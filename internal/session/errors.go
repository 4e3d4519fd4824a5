package session

import (
	"errors"
	"fmt"
)

// ErrorKind classifies where an error state came from
type ErrorKind int

const (
	// KindValidation is a local MIME type rejection
	KindValidation ErrorKind = iota
	// KindUpload is a server-reported or transport-level upload failure
	KindUpload
	// KindAnalysis is a server-reported or transport-level analyze failure
	KindAnalysis
	// KindPrecondition is an analyze request without a remote reference
	KindPrecondition
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUpload:
		return "upload"
	case KindAnalysis:
		return "analysis"
	case KindPrecondition:
		return "precondition"
	default:
		return "unknown"
	}
}

// Fixed user-facing messages
const (
	MsgInvalidFile   = "Please upload a valid image file."
	MsgMissingUpload = "Please upload an image before scanning."
	MsgUploadFailed  = "Failed to upload image"
	MsgAnalyzeFailed = "Failed to analyze image"
)

// Error is the single error state a session can hold. Message is what the
// user sees; Err keeps the underlying cause for logs.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind so callers can compare against the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

var (
	// ErrInvalidFile is returned for candidate files outside the accepted types
	ErrInvalidFile = &Error{Kind: KindValidation, Message: MsgInvalidFile}
	// ErrMissingUpload is returned when analysis is requested before upload succeeded
	ErrMissingUpload = &Error{Kind: KindPrecondition, Message: MsgMissingUpload}
)

// NewError builds an error state of the given kind
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// AsError converts any error into a session error of the given kind. Errors
// that already carry a session kind are returned as is; anything else gets
// the kind's fixed fallback message.
func AsError(kind ErrorKind, err error) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return NewError(kind, fallbackMessage(kind), err)
}

func fallbackMessage(kind ErrorKind) string {
	switch kind {
	case KindValidation:
		return MsgInvalidFile
	case KindUpload:
		return MsgUploadFailed
	case KindAnalysis:
		return MsgAnalyzeFailed
	case KindPrecondition:
		return MsgMissingUpload
	default:
		return "Unexpected error"
	}
}
