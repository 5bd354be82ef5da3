package live

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/room4-2/holoassist/eventlog"
	"github.com/room4-2/holoassist/functions"
)

type harness struct {
	m       *Manager
	dialer  *fakeDialer
	devices *fakeDevices
	tools   *fakeTools
	ring    *eventlog.Ring
	states  []State
}

func newHarness(t *testing.T, apiKey string) *harness {
	t.Helper()
	h := &harness{
		dialer:  &fakeDialer{},
		devices: &fakeDevices{},
		tools:   &fakeTools{},
		ring:    eventlog.NewRing(100, "test"),
	}
	h.m = NewManager(DefaultOptions(apiKey), h.dialer, h.devices, h.tools, h.ring)
	h.m.OnStateChange = func(s State) { h.states = append(h.states, s) }
	return h
}

func (h *harness) connect(t *testing.T) *fakeChannel {
	t.Helper()
	if err := h.m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	ch := h.dialer.last()
	ch.handlers().OnOpen()
	if got := h.m.State(); got != Connected {
		t.Fatalf("state=%v, want CONNECTED", got)
	}
	return ch
}

func (h *harness) logged(substr string) bool {
	for _, e := range h.ring.Entries() {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func TestConnectLifecycle(t *testing.T) {
	h := newHarness(t, "key")
	h.connect(t)

	want := []State{Connecting, Connected}
	if len(h.states) != len(want) {
		t.Fatalf("states=%v", h.states)
	}
	for i := range want {
		if h.states[i] != want[i] {
			t.Errorf("states[%d]=%v, want %v", i, h.states[i], want[i])
		}
	}
	if h.devices.rates[0] != 16000 || h.devices.rates[1] != 24000 {
		t.Errorf("rates=%v", h.devices.rates)
	}
	if h.devices.frameLen != 4096 {
		t.Errorf("frame size=%d", h.devices.frameLen)
	}
	if !h.logged("System Online") {
		t.Error("missing online log entry")
	}
}

func TestConnectMissingCredential(t *testing.T) {
	h := newHarness(t, "")
	err := h.m.Connect(context.Background())
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("err=%v", err)
	}
	if h.m.State() != Disconnected {
		t.Errorf("state=%v", h.m.State())
	}
	if h.devices.opened != 0 || len(h.dialer.channels) != 0 {
		t.Error("no resources should be acquired without a key")
	}
	if !h.logged("API Key missing.") {
		t.Error("missing credential log entry")
	}
}

func TestConnectMicrophoneDenied(t *testing.T) {
	h := newHarness(t, "key")
	h.devices.micErr = errDenied
	var reported error
	h.m.OnError = func(err error) { reported = err }

	err := h.m.Connect(context.Background())
	if !errors.Is(err, errDenied) {
		t.Fatalf("err=%v", err)
	}
	if h.m.State() != Errored {
		t.Errorf("state=%v", h.m.State())
	}
	if !errors.Is(h.m.Err(), errDenied) || !errors.Is(reported, errDenied) {
		t.Errorf("Err=%v reported=%v", h.m.Err(), reported)
	}
	if len(h.dialer.channels) != 0 {
		t.Error("dialed after microphone failure")
	}
	if !h.logged("Initialization Error") {
		t.Error("missing init error log entry")
	}
}

func TestConnectDialFailureReleasesDevices(t *testing.T) {
	h := newHarness(t, "key")
	h.dialer.err = errors.New("handshake failed")

	if err := h.m.Connect(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if h.m.State() != Errored {
		t.Errorf("state=%v", h.m.State())
	}
	if !h.devices.mic.closed || !h.devices.speaker.closed {
		t.Error("devices not released")
	}
}

func TestPlaybackIsGapless(t *testing.T) {
	h := newHarness(t, "key")
	ch := h.connect(t)

	// 2400, 4800 and 1200 samples at 24kHz.
	ch.handlers().OnMessage(&Message{Audio: [][]byte{pcmChunk(2400), pcmChunk(4800)}})
	ch.handlers().OnMessage(&Message{Audio: [][]byte{pcmChunk(1200)}})

	got := h.devices.speaker.starts()
	want := []time.Duration{0, 100 * time.Millisecond, 300 * time.Millisecond}
	if len(got) != len(want) {
		t.Fatalf("starts=%v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("start[%d]=%v, want %v", i, got[i], want[i])
		}
	}
	if h.m.Pending() != 3 {
		t.Errorf("pending=%d", h.m.Pending())
	}
}

func TestInterruptionFlushesBeforeNewAudio(t *testing.T) {
	h := newHarness(t, "key")
	ch := h.connect(t)
	sp := h.devices.speaker

	ch.handlers().OnMessage(&Message{Audio: [][]byte{pcmChunk(2400), pcmChunk(2400)}})
	sp.Advance(50 * time.Millisecond)
	ch.handlers().OnMessage(&Message{Interrupted: true, Audio: [][]byte{pcmChunk(2400)}})

	for i, v := range sp.voices[:2] {
		if !v.stopped {
			t.Errorf("voice %d still playing after interruption", i)
		}
	}
	if sp.voices[2].stopped {
		t.Error("audio arriving with the interruption was discarded")
	}
	if sp.voices[2].at != 50*time.Millisecond {
		t.Errorf("post-interrupt start=%v, want now", sp.voices[2].at)
	}
	if h.m.Pending() != 1 {
		t.Errorf("pending=%d", h.m.Pending())
	}
	if !h.logged("Interruption detected") {
		t.Error("missing interruption log entry")
	}
}

func TestInterruptionWithNothingQueued(t *testing.T) {
	h := newHarness(t, "key")
	ch := h.connect(t)
	ch.handlers().OnMessage(&Message{Interrupted: true})
	if h.m.Pending() != 0 {
		t.Errorf("pending=%d", h.m.Pending())
	}
	if h.m.State() != Connected {
		t.Errorf("state=%v", h.m.State())
	}
}

func TestToolCallsAnsweredOnce(t *testing.T) {
	h := newHarness(t, "key")
	ch := h.connect(t)

	ch.handlers().OnMessage(&Message{ToolCalls: []ToolCall{
		{ID: "a1", Name: functions.NameAppControl, Args: map[string]any{"appName": "spotify"}},
		{ID: "b2", Name: "broken"},
	}})

	if len(ch.responses) != 2 {
		t.Fatalf("responses=%d", len(ch.responses))
	}
	if ch.responses[0].ID != "a1" || ch.responses[0].Result.Status != functions.StatusOK {
		t.Errorf("first=%+v", ch.responses[0])
	}
	if ch.responses[1].ID != "b2" || ch.responses[1].Name != "broken" ||
		ch.responses[1].Result.Status != functions.StatusFailed {
		t.Errorf("second=%+v", ch.responses[1])
	}
	if len(h.tools.calls) != 2 {
		t.Errorf("executed=%v", h.tools.calls)
	}
}

func TestToolCallWithoutRunner(t *testing.T) {
	h := newHarness(t, "key")
	h.m.tools = nil
	ch := h.connect(t)

	ch.handlers().OnMessage(&Message{ToolCalls: []ToolCall{{ID: "x", Name: "anything"}}})
	if len(ch.responses) != 1 || ch.responses[0].Result.Details != "Unknown command" {
		t.Errorf("responses=%+v", ch.responses)
	}
}

func TestDecodeFailureIsLogged(t *testing.T) {
	h := newHarness(t, "key")
	ch := h.connect(t)

	ch.handlers().OnMessage(&Message{Audio: [][]byte{{0x01, 0x02, 0x03}, pcmChunk(240)}})
	if !h.logged("Dropped inbound audio") {
		t.Error("decode failure not logged")
	}
	if h.m.Pending() != 1 {
		t.Errorf("valid chunk not scheduled: pending=%d", h.m.Pending())
	}
	if h.m.State() != Connected {
		t.Errorf("state=%v", h.m.State())
	}
}

func TestCaptureStreamsFrames(t *testing.T) {
	h := newHarness(t, "key")
	ch := h.connect(t)
	var speaking []bool
	h.m.OnSpeaking = func(b bool) { speaking = append(speaking, b) }

	loud := make([]float32, 8)
	for i := range loud {
		loud[i] = 0.5
	}
	h.devices.mic.push(loud)
	h.devices.mic.push(loud)
	h.devices.mic.push(make([]float32, 8))

	if len(ch.frames) != 3 {
		t.Fatalf("frames=%d", len(ch.frames))
	}
	if len(ch.frames[0]) != 16 {
		t.Errorf("frame bytes=%d", len(ch.frames[0]))
	}
	if len(speaking) != 2 || !speaking[0] || speaking[1] {
		t.Errorf("speaking transitions=%v", speaking)
	}
	if h.m.Speaking() {
		t.Error("still speaking after silence")
	}
}

func TestCaptureSendFailureIsIgnored(t *testing.T) {
	h := newHarness(t, "key")
	ch := h.connect(t)
	ch.sendErr = errors.New("socket closed")

	h.devices.mic.push(make([]float32, 4))
	if h.m.State() != Connected {
		t.Errorf("state=%v", h.m.State())
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	h := newHarness(t, "key")
	h.m.Disconnect()
	if h.m.State() != Disconnected {
		t.Errorf("state=%v", h.m.State())
	}

	ch := h.connect(t)
	ch.handlers().OnMessage(&Message{Audio: [][]byte{pcmChunk(2400)}})

	h.m.Disconnect()
	h.m.Disconnect()

	if h.m.State() != Disconnected {
		t.Errorf("state=%v", h.m.State())
	}
	if ch.closed != 1 {
		t.Errorf("channel closed %d times", ch.closed)
	}
	if !h.devices.mic.closed || !h.devices.speaker.closed {
		t.Error("devices not released")
	}
	if !h.devices.speaker.voices[0].stopped {
		t.Error("scheduled voice not stopped")
	}
	if h.m.Pending() != 0 {
		t.Errorf("pending=%d", h.m.Pending())
	}
}

func TestRemoteCloseTearsDown(t *testing.T) {
	h := newHarness(t, "key")
	ch := h.connect(t)

	ch.handlers().OnClose()
	if h.m.State() != Disconnected {
		t.Errorf("state=%v", h.m.State())
	}
	if !h.devices.mic.closed {
		t.Error("mic not released")
	}
	if !h.logged("Connection terminated.") {
		t.Error("missing close log entry")
	}

	// Late events from the closed channel are ignored.
	ch.handlers().OnMessage(&Message{Audio: [][]byte{pcmChunk(240)}})
	ch.handlers().OnError(errors.New("late"))
	if h.m.State() != Disconnected {
		t.Errorf("state after late events=%v", h.m.State())
	}
	if len(h.devices.speaker.voices) != 0 {
		t.Error("audio scheduled after close")
	}
}

func TestRemoteErrorTearsDown(t *testing.T) {
	h := newHarness(t, "key")
	ch := h.connect(t)
	boom := errors.New("quota exceeded")

	ch.handlers().OnError(boom)
	if h.m.State() != Errored {
		t.Errorf("state=%v", h.m.State())
	}
	if !errors.Is(h.m.Err(), boom) {
		t.Errorf("Err=%v", h.m.Err())
	}
	if ch.closed != 1 {
		t.Errorf("channel closed %d times", ch.closed)
	}
	if !h.logged("System Failure") {
		t.Error("missing failure log entry")
	}
}

func TestDisconnectClearsError(t *testing.T) {
	h := newHarness(t, "key")
	ch := h.connect(t)
	ch.handlers().OnError(errors.New("socket reset"))
	if h.m.State() != Errored {
		t.Fatalf("state=%v", h.m.State())
	}

	h.m.Disconnect()
	if h.m.State() != Disconnected {
		t.Errorf("state after Disconnect=%v, want DISCONNECTED", h.m.State())
	}
	if last := h.states[len(h.states)-1]; last != Disconnected {
		t.Errorf("last reported state=%v", last)
	}
	if ch.closed != 1 {
		t.Errorf("channel closed %d times", ch.closed)
	}

	n := len(h.states)
	h.m.Disconnect()
	if len(h.states) != n {
		t.Error("second Disconnect reported a state change")
	}
}

func TestReconnectReplacesSession(t *testing.T) {
	h := newHarness(t, "key")
	first := h.connect(t)
	firstMic := h.devices.mic

	second := h.connect(t)
	if first == second {
		t.Fatal("expected a fresh channel")
	}
	if first.closed != 1 || !firstMic.closed {
		t.Error("previous session not torn down")
	}

	// Events from the replaced session must not affect the new one.
	first.handlers().OnClose()
	if h.m.State() != Connected {
		t.Errorf("state=%v", h.m.State())
	}
	if h.m.Err() != nil {
		t.Errorf("Err=%v", h.m.Err())
	}
}
