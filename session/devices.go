package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/room4-2/holoassist/audio"
	"github.com/room4-2/holoassist/live"
	"github.com/room4-2/holoassist/messages"
)

var errDeviceClosed = errors.New("device closed")

// clientDevices exposes the websocket client as the voice session's
// microphone and speaker.
type clientDevices struct {
	cs *ClientSession
}

func (d clientDevices) OpenMicrophone(_ context.Context, sampleRate, frameSize int) (live.Capture, error) {
	if sampleRate != audio.InputSampleRate {
		return nil, errors.New("client microphone only streams 16kHz")
	}
	return d.cs.mic.open(frameSize), nil
}

func (d clientDevices) OpenSpeaker(_ context.Context, sampleRate int) (live.Playback, error) {
	if sampleRate != audio.OutputSampleRate {
		return nil, errors.New("client speaker only plays 24kHz")
	}
	return newClientSpeaker(d.cs), nil
}

// clientMic frames the samples the client streams. Samples that arrive
// while no capture is running are dropped.
type clientMic struct {
	mu      sync.Mutex
	framer  *audio.Framer
	onFrame func([]float32)
}

func (m *clientMic) open(frameSize int) *clientCapture {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.framer = audio.NewFramer(frameSize, frameSize*16)
	m.onFrame = nil
	return &clientCapture{mic: m}
}

// feed delivers client samples; it returns audio.ErrFramerFull if the
// client sends more than the framer holds.
func (m *clientMic) feed(samples []float32) error {
	m.mu.Lock()
	framer, onFrame := m.framer, m.onFrame
	m.mu.Unlock()
	if framer == nil || onFrame == nil {
		return nil
	}
	frames, err := framer.Write(samples)
	if err != nil {
		return err
	}
	for _, f := range frames {
		onFrame(f)
	}
	return nil
}

type clientCapture struct {
	mic *clientMic
}

func (c *clientCapture) Start(onFrame func([]float32)) error {
	c.mic.mu.Lock()
	defer c.mic.mu.Unlock()
	if c.mic.framer == nil {
		return errDeviceClosed
	}
	c.mic.onFrame = onFrame
	return nil
}

func (c *clientCapture) Close() error {
	c.mic.mu.Lock()
	defer c.mic.mu.Unlock()
	c.mic.onFrame = nil
	c.mic.framer = nil
	return nil
}

// clientSpeaker sends scheduled buffers to the client tagged with their
// start time on a clock that begins when the speaker opens, right after the
// CONNECTING status. The client plays them on its own audio clock; a timer
// tracks when each one ends.
type clientSpeaker struct {
	*audio.WallClock
	cs *ClientSession

	mu     sync.Mutex
	seq    uint64
	closed bool
}

func newClientSpeaker(cs *ClientSession) *clientSpeaker {
	return &clientSpeaker{WallClock: audio.NewWallClock(), cs: cs}
}

func (s *clientSpeaker) Play(buf *audio.Buffer, at time.Duration, onEnded func()) (live.Voice, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errDeviceClosed
	}
	s.seq++
	id := s.seq
	s.mu.Unlock()

	s.cs.queueMessage(messages.NewAudioMessage(s.cs.ID, id, at, buf.PCM()))
	v := &clientVoice{speaker: s, id: id}
	v.timer = time.AfterFunc(at+buf.Duration()-s.Now(), onEnded)
	return v, nil
}

func (s *clientSpeaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type clientVoice struct {
	speaker *clientSpeaker
	id      uint64
	timer   *time.Timer
}

func (v *clientVoice) Stop() {
	v.timer.Stop()
	v.speaker.cs.queueMessage(messages.NewStopMessage(v.speaker.cs.ID, v.id))
}
