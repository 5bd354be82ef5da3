package live

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/room4-2/holoassist/audio"
	"github.com/room4-2/holoassist/functions"
)

type fakeVoice struct {
	at      time.Duration
	dur     time.Duration
	stopped bool
	onEnded func()
}

func (v *fakeVoice) Stop() { v.stopped = true }

type fakeSpeaker struct {
	audio.ManualClock
	mu      sync.Mutex
	voices  []*fakeVoice
	closed  bool
	playErr error
}

func (s *fakeSpeaker) Play(buf *audio.Buffer, at time.Duration, onEnded func()) (Voice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playErr != nil {
		return nil, s.playErr
	}
	v := &fakeVoice{at: at, dur: buf.Duration(), onEnded: onEnded}
	s.voices = append(s.voices, v)
	return v, nil
}

func (s *fakeSpeaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSpeaker) starts() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Duration
	for _, v := range s.voices {
		out = append(out, v.at)
	}
	return out
}

type fakeMic struct {
	mu       sync.Mutex
	onFrame  func([]float32)
	closed   bool
	startErr error
}

func (m *fakeMic) Start(onFrame func([]float32)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.onFrame = onFrame
	return nil
}

func (m *fakeMic) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *fakeMic) push(frame []float32) {
	m.mu.Lock()
	fn := m.onFrame
	m.mu.Unlock()
	if fn != nil {
		fn(frame)
	}
}

type fakeDevices struct {
	mic      *fakeMic
	speaker  *fakeSpeaker
	micErr   error
	opened   int
	rates    []int
	frameLen int
}

func (d *fakeDevices) OpenMicrophone(_ context.Context, rate, frameSize int) (Capture, error) {
	if d.micErr != nil {
		return nil, d.micErr
	}
	d.opened++
	d.rates = append(d.rates, rate)
	d.frameLen = frameSize
	d.mic = &fakeMic{}
	return d.mic, nil
}

func (d *fakeDevices) OpenSpeaker(_ context.Context, rate int) (Playback, error) {
	d.rates = append(d.rates, rate)
	d.speaker = &fakeSpeaker{}
	return d.speaker, nil
}

type fakeChannel struct {
	mu        sync.Mutex
	h         Handlers
	frames    [][]byte
	responses []ToolResponse
	closed    int
	sendErr   error
}

func (c *fakeChannel) Listen(h Handlers) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.h = h
}

func (c *fakeChannel) SendAudio(pcm []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.frames = append(c.frames, pcm)
	return nil
}

func (c *fakeChannel) SendToolResponse(resp ToolResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, resp)
	return c.sendErr
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeChannel) handlers() Handlers {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.h
}

type fakeDialer struct {
	channels []*fakeChannel
	err      error
}

func (d *fakeDialer) Dial(context.Context) (Channel, error) {
	if d.err != nil {
		return nil, d.err
	}
	ch := &fakeChannel{}
	d.channels = append(d.channels, ch)
	return ch, nil
}

func (d *fakeDialer) last() *fakeChannel {
	return d.channels[len(d.channels)-1]
}

type fakeTools struct {
	calls []string
}

func (t *fakeTools) Execute(_ context.Context, name string, _ map[string]any) functions.Result {
	t.calls = append(t.calls, name)
	if name == "broken" {
		return functions.Result{Status: functions.StatusFailed, Details: "device offline"}
	}
	return functions.Result{Status: functions.StatusOK, Details: name + " done"}
}

var errDenied = errors.New("permission denied")

// pcmChunk returns n samples of silence at the output rate.
func pcmChunk(n int) []byte {
	return make([]byte, n*2)
}
