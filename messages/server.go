package messages

import (
	"encoding/base64"
	"time"

	"github.com/room4-2/holoassist/audio"
	"github.com/room4-2/holoassist/eventlog"
	"github.com/room4-2/holoassist/gemini"
)

// Error codes
const (
	ErrCodeInvalidMessage = "INVALID_MESSAGE"
	ErrCodeGeminiError    = "GEMINI_ERROR"
	ErrCodeSessionFailed  = "SESSION_FAILED"
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeBufferFull     = "BUFFER_FULL"
	ErrCodeMissingAPIKey  = "MISSING_API_KEY"
	ErrCodeFeatureFailed  = "FEATURE_FAILED"
)

// Message types
const (
	TypeAudio    = "audio"
	TypeStop     = "stop"
	TypeStatus   = "status"
	TypeLog      = "log"
	TypeSpeaking = "speaking"
	TypeNavigate = "navigate"
	TypeResult   = "result"
	TypeError    = "error"
	TypePong     = "pong"
)

// ServerMessage represents a message sent to frontend client
type ServerMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// AudioResponsePayload is one scheduled output buffer. The client starts it
// StartAt seconds after its playback clock began.
type AudioResponsePayload struct {
	ID       uint64  `json:"id"`
	StartAt  float64 `json:"startAt"`
	Data     string  `json:"data"`     // Base64-encoded PCM audio
	MimeType string  `json:"mimeType"` // "audio/pcm;rate=24000"
}

// StopPayload silences scheduled buffers.
type StopPayload struct {
	ID uint64 `json:"id"`
}

// StatusPayload carries the voice session state.
type StatusPayload struct {
	Status  string `json:"status"` // "DISCONNECTED", "CONNECTING", "CONNECTED", "ERROR"
	Message string `json:"message,omitempty"`
}

// SpeakingPayload reports whether the microphone picks up speech.
type SpeakingPayload struct {
	Speaking bool `json:"speaking"`
}

// NavigatePayload asks the client to open a deep-link.
type NavigatePayload struct {
	URL string `json:"url"`
}

// ErrorPayload contains error information
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewAudioMessage creates an audio message for a scheduled buffer.
func NewAudioMessage(sessionID string, id uint64, startAt time.Duration, pcm []byte) *ServerMessage {
	return &ServerMessage{
		Type:      TypeAudio,
		SessionID: sessionID,
		Payload: AudioResponsePayload{
			ID:       id,
			StartAt:  startAt.Seconds(),
			Data:     base64.StdEncoding.EncodeToString(pcm),
			MimeType: audio.MIMEType(audio.OutputSampleRate),
		},
	}
}

// NewStopMessage silences the buffer with the given id.
func NewStopMessage(sessionID string, id uint64) *ServerMessage {
	return &ServerMessage{Type: TypeStop, SessionID: sessionID, Payload: StopPayload{ID: id}}
}

// NewStatusMessage creates a status message
func NewStatusMessage(sessionID, status, message string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeStatus,
		SessionID: sessionID,
		Payload: StatusPayload{
			Status:  status,
			Message: message,
		},
	}
}

// NewLogMessage forwards an activity log entry.
func NewLogMessage(sessionID string, entry eventlog.Entry) *ServerMessage {
	return &ServerMessage{Type: TypeLog, SessionID: sessionID, Payload: entry}
}

// NewSpeakingMessage reports a change in the speaking indicator.
func NewSpeakingMessage(sessionID string, speaking bool) *ServerMessage {
	return &ServerMessage{Type: TypeSpeaking, SessionID: sessionID, Payload: SpeakingPayload{Speaking: speaking}}
}

// NewNavigateMessage asks the client to open link.
func NewNavigateMessage(sessionID, link string) *ServerMessage {
	return &ServerMessage{Type: TypeNavigate, SessionID: sessionID, Payload: NavigatePayload{URL: link}}
}

// NewResultMessage carries a feature result.
func NewResultMessage(sessionID string, result gemini.Result) *ServerMessage {
	return &ServerMessage{Type: TypeResult, SessionID: sessionID, Payload: result}
}

// NewPongMessage answers a ping.
func NewPongMessage(sessionID string) *ServerMessage {
	return &ServerMessage{Type: TypePong, SessionID: sessionID}
}

// NewErrorMessage creates an error message
func NewErrorMessage(sessionID, code, message string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeError,
		SessionID: sessionID,
		Payload: ErrorPayload{
			Code:    code,
			Message: message,
		},
	}
}
