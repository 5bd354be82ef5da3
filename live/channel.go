// Package live manages one realtime voice session: microphone frames go out
// to the remote model, streamed audio comes back and is played gap-free, and
// tool calls are executed and answered on the same channel.
package live

import (
	"context"
	"time"

	"github.com/room4-2/holoassist/audio"
	"github.com/room4-2/holoassist/functions"
)

// Message is one inbound event from the remote channel. Any combination of
// fields may be set.
type Message struct {
	Audio       [][]byte // PCM16LE chunks at the output rate
	Interrupted bool
	ToolCalls   []ToolCall
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResponse answers exactly one ToolCall.
type ToolResponse struct {
	ID     string
	Name   string
	Result functions.Result
}

// Handlers receive the four channel events. They may be called from any
// goroutine, but never concurrently for the same channel.
type Handlers struct {
	OnOpen    func()
	OnMessage func(*Message)
	OnClose   func()
	OnError   func(error)
}

// Channel is an open bidirectional session with the remote model.
type Channel interface {
	// Listen registers handlers and starts delivering events, beginning
	// with OnOpen.
	Listen(h Handlers)
	// SendAudio sends one encoded frame. Delivery is not confirmed.
	SendAudio(pcm []byte) error
	// SendToolResponse answers a tool call.
	SendToolResponse(resp ToolResponse) error
	// Close ends the session without waiting for the remote side.
	Close() error
}

// Dialer opens remote channels.
type Dialer interface {
	Dial(ctx context.Context) (Channel, error)
}

// Capture is an open microphone (the input audio context).
type Capture interface {
	// Start begins delivering fixed-size frames to onFrame.
	Start(onFrame func(frame []float32)) error
	Close() error
}

// Voice is one scheduled output buffer.
type Voice interface {
	// Stop silences the voice if it has not finished. It must not call
	// the voice's onEnded callback.
	Stop()
}

// Playback is the output audio context.
type Playback interface {
	audio.Clock
	// Play schedules buf to start at the given context time. onEnded is
	// called once the buffer has finished playing naturally, never from
	// inside Play or Stop.
	Play(buf *audio.Buffer, at time.Duration, onEnded func()) (Voice, error)
	Close() error
}

// Devices opens the session's media resources.
type Devices interface {
	OpenMicrophone(ctx context.Context, sampleRate, frameSize int) (Capture, error)
	OpenSpeaker(ctx context.Context, sampleRate int) (Playback, error)
}

// ToolRunner executes tool calls.
type ToolRunner interface {
	Execute(ctx context.Context, name string, args map[string]any) functions.Result
}
