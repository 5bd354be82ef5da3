package messages

import (
	"encoding/json"

	"github.com/bytedance/sonic"

	"github.com/room4-2/holoassist/gemini"
)

// Client message types, besides TypeAudio. Microphone audio may also
// arrive as binary frames of float32 little-endian samples at 16kHz.
const (
	TypeControl = "control"
	TypeFeature = "feature"
)

// Control actions.
const (
	ActionConnect    = "connect"
	ActionDisconnect = "disconnect"
	ActionPing       = "ping"
)

// ClientMessage represents a message from frontend client
type ClientMessage struct {
	Type    string          `json:"type"` // "audio", "control", "feature"
	Payload json.RawMessage `json:"payload"`
}

// AudioPayload contains audio data from client
type AudioPayload struct {
	Data string `json:"data"` // Base64-encoded 16-bit PCM at 16kHz
}

// ControlPayload contains control commands
type ControlPayload struct {
	Action string `json:"action"` // "connect", "disconnect", "ping"
}

// FeaturePayload runs a one-shot feature.
type FeaturePayload = gemini.Request

// DecodeClientMessage parses a text frame.
func DecodeClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DecodePayload parses msg's payload into v.
func (msg *ClientMessage) DecodePayload(v any) error {
	return sonic.Unmarshal(msg.Payload, v)
}
