package messaging

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/HaiFongPan/dermascan-cli/internal/tui/theme"
)

// MessageType represents different message types for status display
type MessageType int

// Message type constants
const (
	MessageInfo    MessageType = theme.MessageInfo
	MessageSuccess MessageType = theme.MessageSuccess
	MessageWarning MessageType = theme.MessageWarning
	MessageError   MessageType = theme.MessageError
)

// StatusManager manages status messages and their display
type StatusManager interface {
	SetMessage(message string, msgType MessageType)
	ClearMessage()
	GetMessage() (string, MessageType, bool)
	RenderMessage() string
	HasMessage() bool
	Expired(ttl time.Duration) bool
}

// StatusManagerImpl implements the StatusManager interface
type StatusManagerImpl struct {
	statusMessage string
	messageType   MessageType
	messageTimer  time.Time
	now           func() time.Time
}

// NewStatusManager creates a new status manager instance
func NewStatusManager() StatusManager {
	return &StatusManagerImpl{
		messageType: MessageInfo,
		now:         time.Now,
	}
}

// SetMessage sets a status message with type
func (sm *StatusManagerImpl) SetMessage(message string, msgType MessageType) {
	sm.statusMessage = message
	sm.messageType = msgType
	sm.messageTimer = sm.now()

	logrus.Debugf("StatusManager: setMessage called with message='%s', type=%d", message, msgType)
}

// ClearMessage clears the status message
func (sm *StatusManagerImpl) ClearMessage() {
	sm.statusMessage = ""
}

// GetMessage returns the current message, type, and whether a message exists
func (sm *StatusManagerImpl) GetMessage() (string, MessageType, bool) {
	return sm.statusMessage, sm.messageType, sm.statusMessage != ""
}

// HasMessage returns whether there is currently a status message
func (sm *StatusManagerImpl) HasMessage() bool {
	return sm.statusMessage != ""
}

// Expired reports whether the current message is older than ttl. Errors never expire.
func (sm *StatusManagerImpl) Expired(ttl time.Duration) bool {
	if !sm.HasMessage() || sm.messageType == MessageError {
		return false
	}
	return sm.now().Sub(sm.messageTimer) > ttl
}

// RenderMessage renders the current status message with appropriate styling
func (sm *StatusManagerImpl) RenderMessage() string {
	if !sm.HasMessage() {
		return ""
	}

	messageColor := theme.GetMessageColor(int(sm.messageType))
	messageIcon := theme.GetMessageIcon(int(sm.messageType))

	messageStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(messageColor)).
		Bold(true)

	return messageStyle.Render(fmt.Sprintf("%s %s", messageIcon, sm.statusMessage))
}
