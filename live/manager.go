package live

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/room4-2/holoassist/audio"
	"github.com/room4-2/holoassist/eventlog"
	"github.com/room4-2/holoassist/functions"
)

var (
	// ErrMissingCredential is returned by Connect when no API key is configured.
	ErrMissingCredential = errors.New("live: API key missing")
	// ErrConnectCanceled is returned when Disconnect runs while Connect is
	// still acquiring resources.
	ErrConnectCanceled = errors.New("live: connect canceled")
)

// Options configures a Manager.
type Options struct {
	APIKey            string
	InputSampleRate   int
	OutputSampleRate  int
	FrameSize         int
	SpeakingThreshold float32
}

// DefaultOptions returns the standard capture and playback settings.
func DefaultOptions(apiKey string) Options {
	return Options{
		APIKey:            apiKey,
		InputSampleRate:   audio.InputSampleRate,
		OutputSampleRate:  audio.OutputSampleRate,
		FrameSize:         4096,
		SpeakingThreshold: 0.01,
	}
}

// Manager owns at most one live session at a time.
type Manager struct {
	opts    Options
	dialer  Dialer
	devices Devices
	tools   ToolRunner
	log     eventlog.Logger

	// OnStateChange, OnSpeaking and OnError are optional observers. Set
	// them before the first Connect.
	OnStateChange func(State)
	OnSpeaking    func(bool)
	OnError       func(error)

	mu      sync.Mutex
	state   State
	cur     *instance
	lastErr error
}

// instance is one Connect: everything it acquires is released together.
type instance struct {
	mic      Capture
	speaker  Playback
	sched    *Scheduler
	ch       Channel
	ctx      context.Context
	cancel   context.CancelFunc
	speaking bool
	done     bool
}

// NewManager creates a disconnected manager. tools may be nil, in which case
// every tool call fails; logger may be nil.
func NewManager(opts Options, dialer Dialer, devices Devices, tools ToolRunner, logger eventlog.Logger) *Manager {
	if logger == nil {
		logger = eventlog.Discard
	}
	return &Manager{
		opts:    opts,
		dialer:  dialer,
		devices: devices,
		tools:   tools,
		log:     logger,
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Speaking reports whether the last captured frame was above the threshold.
func (m *Manager) Speaking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur != nil && m.cur.speaking
}

// Err returns the error that last moved the manager to the error state.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Pending returns the number of output buffers still scheduled.
func (m *Manager) Pending() int {
	m.mu.Lock()
	inst := m.cur
	m.mu.Unlock()
	if inst == nil || inst.sched == nil {
		return 0
	}
	return inst.sched.Pending()
}

// Connect starts a new session, tearing down any previous one. It returns
// once the channel is dialed; the session becomes Connected when the remote
// side opens.
func (m *Manager) Connect(ctx context.Context) error {
	if m.opts.APIKey == "" {
		m.log.Log(eventlog.Error, "API Key missing.")
		return ErrMissingCredential
	}
	m.Disconnect()

	inst := &instance{}
	inst.ctx, inst.cancel = context.WithCancel(context.WithoutCancel(ctx))

	m.mu.Lock()
	m.cur = inst
	m.lastErr = nil
	m.mu.Unlock()
	m.setState(Connecting)
	m.log.Log(eventlog.Info, "Initializing Neural Handshake...")

	mic, err := m.devices.OpenMicrophone(ctx, m.opts.InputSampleRate, m.opts.FrameSize)
	if err != nil {
		return m.fail(inst, fmt.Errorf("microphone: %w", err))
	}
	if !m.attach(inst, func() { inst.mic = mic }) {
		mic.Close()
		return ErrConnectCanceled
	}

	speaker, err := m.devices.OpenSpeaker(ctx, m.opts.OutputSampleRate)
	if err != nil {
		return m.fail(inst, fmt.Errorf("speaker: %w", err))
	}
	if !m.attach(inst, func() {
		inst.speaker = speaker
		inst.sched = NewScheduler(speaker)
	}) {
		speaker.Close()
		return ErrConnectCanceled
	}

	ch, err := m.dialer.Dial(ctx)
	if err != nil {
		return m.fail(inst, fmt.Errorf("dial: %w", err))
	}
	if !m.attach(inst, func() { inst.ch = ch }) {
		ch.Close()
		return ErrConnectCanceled
	}

	ch.Listen(Handlers{
		OnOpen:    func() { m.handleOpen(inst) },
		OnMessage: func(msg *Message) { m.handleMessage(inst, msg) },
		OnClose:   func() { m.handleClose(inst) },
		OnError:   func(err error) { m.handleError(inst, err) },
	})
	return nil
}

// Disconnect tears down the active session, if any, without waiting for the
// remote side to acknowledge. With no active session it only clears an
// ERROR state back to DISCONNECTED.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	inst := m.cur
	errored := m.state == Errored
	m.mu.Unlock()
	if inst == nil {
		if errored {
			m.setState(Disconnected)
			m.log.Log(eventlog.Info, "Voice interface offline.")
		}
		return
	}
	if m.finish(inst, Disconnected, true) {
		m.log.Log(eventlog.Info, "Voice interface offline.")
	}
}

func (m *Manager) handleOpen(inst *instance) {
	if !m.active(inst) {
		return
	}
	m.setState(Connected)
	m.log.Log(eventlog.Success, "System Online. Voice Interface Active.")

	if err := inst.mic.Start(func(frame []float32) { m.handleFrame(inst, frame) }); err != nil {
		m.handleError(inst, fmt.Errorf("start capture: %w", err))
	}
}

func (m *Manager) handleFrame(inst *instance, frame []float32) {
	speaking := audio.MeanAbs(frame) > m.opts.SpeakingThreshold

	m.mu.Lock()
	if inst.done {
		m.mu.Unlock()
		return
	}
	changed := speaking != inst.speaking
	inst.speaking = speaking
	ch := inst.ch
	onSpeaking := m.OnSpeaking
	m.mu.Unlock()

	if changed && onSpeaking != nil {
		onSpeaking(speaking)
	}
	// Frames the transport cannot take right now are dropped.
	_ = ch.SendAudio(audio.EncodeToWire(frame))
}

func (m *Manager) handleMessage(inst *instance, msg *Message) {
	if msg == nil || !m.active(inst) {
		return
	}

	if msg.Interrupted {
		m.log.Log(eventlog.Warning, "Interruption detected. Clearing buffer.")
		inst.sched.Flush()
	}

	for _, chunk := range msg.Audio {
		buf, err := audio.DecodeFromWire(chunk, m.opts.OutputSampleRate, 1)
		if err != nil {
			m.log.Log(eventlog.Error, fmt.Sprintf("Dropped inbound audio: %v", err))
			continue
		}
		if _, err := inst.sched.Schedule(buf); err != nil {
			m.log.Log(eventlog.Error, fmt.Sprintf("Playback error: %v", err))
		}
	}

	for _, call := range msg.ToolCalls {
		res := functions.Result{Status: functions.StatusFailed, Details: "Unknown command"}
		if m.tools != nil {
			res = m.tools.Execute(inst.ctx, call.Name, call.Args)
		}
		resp := ToolResponse{ID: call.ID, Name: call.Name, Result: res}
		if err := inst.ch.SendToolResponse(resp); err != nil {
			m.log.Log(eventlog.Error, fmt.Sprintf("Tool response for %s failed: %v", call.Name, err))
		}
	}
}

func (m *Manager) handleClose(inst *instance) {
	if m.finish(inst, Disconnected, false) {
		m.log.Log(eventlog.Info, "Connection terminated.")
	}
}

func (m *Manager) handleError(inst *instance, err error) {
	if !m.finish(inst, Errored, true) {
		return
	}
	m.report(err)
	m.log.Log(eventlog.Error, fmt.Sprintf("System Failure: %v", err))
}

func (m *Manager) fail(inst *instance, err error) error {
	if m.finish(inst, Errored, true) {
		m.report(err)
		m.log.Log(eventlog.Error, fmt.Sprintf("Initialization Error: %v", err))
	}
	return err
}

func (m *Manager) report(err error) {
	m.mu.Lock()
	m.lastErr = err
	onError := m.OnError
	m.mu.Unlock()
	if onError != nil {
		onError(err)
	}
}

// finish releases inst and, if it was the current session, moves to final.
// It reports whether this call did the teardown.
func (m *Manager) finish(inst *instance, final State, closeChannel bool) bool {
	m.mu.Lock()
	if inst.done {
		m.mu.Unlock()
		return false
	}
	inst.done = true
	current := m.cur == inst
	if current {
		m.cur = nil
	}
	m.mu.Unlock()

	inst.release(closeChannel)
	if current {
		m.setState(final)
	}
	return true
}

func (m *Manager) attach(inst *instance, fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inst.done {
		return false
	}
	fn()
	return true
}

func (m *Manager) active(inst *instance) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !inst.done && m.cur == inst
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	onState := m.OnStateChange
	m.mu.Unlock()
	if onState != nil {
		onState(s)
	}
}

func (in *instance) release(closeChannel bool) {
	if in.cancel != nil {
		in.cancel()
	}
	if in.mic != nil {
		in.mic.Close()
	}
	if in.sched != nil {
		in.sched.Flush()
	}
	if in.speaker != nil {
		in.speaker.Close()
	}
	if closeChannel && in.ch != nil {
		in.ch.Close()
	}
}
