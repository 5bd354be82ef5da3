package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/room4-2/holoassist/audio"
	"github.com/room4-2/holoassist/device"
	"github.com/room4-2/holoassist/eventlog"
	"github.com/room4-2/holoassist/functions"
	"github.com/room4-2/holoassist/gemini"
	"github.com/room4-2/holoassist/live"
	"github.com/room4-2/holoassist/messages"
)

const (
	writeBufferSize = 256
	writeTimeout    = 10 * time.Second
	readLimit       = 16 * 1024 * 1024 // feature uploads carry base64 media
)

// FeatureRunner executes one-shot feature requests.
type FeatureRunner interface {
	Run(ctx context.Context, req gemini.Request) (gemini.Result, error)
}

// Options configures a ClientSession.
type Options struct {
	APIKey          string
	LiveModel       string
	Voice           string
	KeepAlivePeriod time.Duration
}

// ClientSession represents a single user's connection: one voice session,
// one activity log and at most one running feature request.
type ClientSession struct {
	ID           string
	ClientConn   *websocket.Conn
	CreatedAt    time.Time
	LastActivity time.Time

	Log      *eventlog.Ring
	voice    *live.Manager
	mic      *clientMic
	features FeatureRunner
	onStatus func(status string)

	keepAlive time.Duration
	writeChan chan *messages.ServerMessage

	mu        sync.RWMutex
	closed    bool
	busy      bool
	CloseChan chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClientSession wires a session for clientConn. onStatus, if set, is
// called with the voice session state on every change.
func NewClientSession(id string, clientConn *websocket.Conn, opts Options, deps Deps, onStatus func(string)) *ClientSession {
	ctx, cancel := context.WithCancel(context.Background())

	clientConn.SetReadLimit(readLimit)
	clientConn.EnableWriteCompression(true)

	cs := &ClientSession{
		ID:           id,
		ClientConn:   clientConn,
		CreatedAt:    time.Now(),
		LastActivity: time.Now(),
		Log:          eventlog.NewRing(eventlog.DefaultLimit, shortID(id)),
		mic:          &clientMic{},
		onStatus:     onStatus,
		keepAlive:    opts.KeepAlivePeriod,
		writeChan:    make(chan *messages.ServerMessage, writeBufferSize),
		CloseChan:    make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}

	nav := device.Navigators{device.NavigatorFunc(cs.navigate)}
	if deps.Navigator != nil {
		nav = append(nav, deps.Navigator)
	}
	dispatcher := device.NewDispatcher(nav)
	if len(deps.Contacts) > 0 {
		dispatcher.Contacts = deps.Contacts
	}

	dialer := deps.dialer(gemini.LiveConfig{
		APIKey:       opts.APIKey,
		Model:        opts.LiveModel,
		Voice:        opts.Voice,
		SystemPrompt: functions.SystemPrompt(device.ContactNames(dispatcher.Contacts), device.AppKeys(dispatcher.Apps)),
		Tools:        functions.Tools(),
	}, shortID(id))

	cs.voice = live.NewManager(
		live.DefaultOptions(opts.APIKey),
		dialer,
		clientDevices{cs: cs},
		functions.NewExecutor(dispatcher, cs.Log),
		cs.Log,
	)
	cs.voice.OnStateChange = cs.handleState
	cs.voice.OnSpeaking = func(speaking bool) {
		cs.queueMessage(messages.NewSpeakingMessage(cs.ID, speaking))
	}
	cs.voice.OnError = func(err error) {
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeGeminiError, err.Error()))
	}
	cs.features = deps.featureRunner(cs.Log)

	return cs
}

// Start begins the bidirectional message handling.
func (cs *ClientSession) Start() {
	go cs.writePump()
	cs.Log.Subscribe(func(e eventlog.Entry) {
		cs.queueMessage(messages.NewLogMessage(cs.ID, e))
	})
	cs.queueMessage(messages.NewStatusMessage(cs.ID, live.Disconnected.String(), "Session established"))
	go cs.handleClientMessages()
}

// Voice exposes the session's voice manager.
func (cs *ClientSession) Voice() *live.Manager {
	return cs.voice
}

// handleState mirrors voice state changes to the client. The cause of an
// ERROR state follows as a separate error message.
func (cs *ClientSession) handleState(s live.State) {
	cs.queueMessage(messages.NewStatusMessage(cs.ID, s.String(), ""))
	if cs.onStatus != nil {
		cs.onStatus(s.String())
	}
}

func (cs *ClientSession) navigate(_ context.Context, link string) error {
	if cs.IsClosed() {
		return errors.New("client disconnected")
	}
	cs.queueMessage(messages.NewNavigateMessage(cs.ID, link))
	return nil
}

// writePump handles all outgoing messages in a single goroutine
func (cs *ClientSession) writePump() {
	var ping <-chan time.Time
	if cs.keepAlive > 0 {
		ticker := time.NewTicker(cs.keepAlive)
		defer ticker.Stop()
		ping = ticker.C
	}

	defer func() {
		cs.ClientConn.SetWriteDeadline(time.Now().Add(writeTimeout))
		cs.ClientConn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
	}()

	for {
		select {
		case <-cs.CloseChan:
			return
		case <-ping:
			if err := cs.ClientConn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case msg, ok := <-cs.writeChan:
			if !ok {
				return
			}
			if err := cs.write(msg); err != nil {
				return
			}

			n := len(cs.writeChan)
			for i := 0; i < n; i++ {
				select {
				case msg, ok := <-cs.writeChan:
					if !ok {
						return
					}
					if err := cs.write(msg); err != nil {
						return
					}
				default:
				}
			}
		}
	}
}

func (cs *ClientSession) write(msg *messages.ServerMessage) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		log.Printf("❌ [%s] Failed to encode %s message: %v", shortID(cs.ID), msg.Type, err)
		return nil
	}
	cs.ClientConn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return cs.ClientConn.WriteMessage(websocket.TextMessage, data)
}

// queueMessage adds a message to the write queue (non-blocking)
func (cs *ClientSession) queueMessage(msg *messages.ServerMessage) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if cs.closed {
		return
	}
	select {
	case cs.writeChan <- msg:
	default:
		log.Printf("⚠️ [%s] Write queue full, dropping %s message", shortID(cs.ID), msg.Type)
	}
}

func (cs *ClientSession) touch() {
	cs.mu.Lock()
	cs.LastActivity = time.Now()
	cs.mu.Unlock()
}

// Idle returns how long the client has been silent.
func (cs *ClientSession) Idle() time.Duration {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return time.Since(cs.LastActivity)
}

// Close terminates the session and cleans up resources
func (cs *ClientSession) Close() error {
	cs.mu.Lock()
	if cs.closed {
		cs.mu.Unlock()
		return nil
	}
	cs.closed = true
	close(cs.writeChan)
	close(cs.CloseChan)
	cs.mu.Unlock()

	cs.voice.Disconnect()
	cs.cancel()

	if cs.ClientConn != nil {
		cs.ClientConn.Close()
	}
	return nil
}

// IsClosed returns whether the session is closed
func (cs *ClientSession) IsClosed() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.closed
}

func (cs *ClientSession) handleClientMessages() {
	defer cs.Close()

	cs.ClientConn.SetPongHandler(func(string) error {
		cs.touch()
		return nil
	})

	for {
		messageType, message, err := cs.ClientConn.ReadMessage()
		if err != nil {
			if !cs.IsClosed() && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("❌ [%s] WebSocket read error: %v", shortID(cs.ID), err)
			}
			return
		}
		cs.touch()

		if messageType == websocket.BinaryMessage {
			if len(message)%4 != 0 {
				cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Binary audio must be float32 samples"))
				continue
			}
			cs.feedAudio(audio.Float32FromLE(message))
			continue
		}

		msg, err := messages.DecodeClientMessage(message)
		if err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid message format"))
			continue
		}
		cs.processClientMessage(msg)
	}
}

func (cs *ClientSession) feedAudio(samples []float32) {
	if err := cs.mic.feed(samples); err != nil {
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeBufferFull, err.Error()))
	}
}

func (cs *ClientSession) processClientMessage(msg *messages.ClientMessage) {
	switch msg.Type {
	case messages.TypeAudio:
		var payload messages.AudioPayload
		if err := msg.DecodePayload(&payload); err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid audio payload"))
			return
		}
		pcm, err := audio.Base64Decode(payload.Data)
		if err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid base64 audio data"))
			return
		}
		buf, err := audio.DecodeFromWire(pcm, audio.InputSampleRate, 1)
		if err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, err.Error()))
			return
		}
		cs.feedAudio(buf.Mono())

	case messages.TypeControl:
		var payload messages.ControlPayload
		if err := msg.DecodePayload(&payload); err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid control payload"))
			return
		}
		cs.handleControlMessage(&payload)

	case messages.TypeFeature:
		var payload messages.FeaturePayload
		if err := msg.DecodePayload(&payload); err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid feature payload"))
			return
		}
		cs.handleFeature(payload)

	default:
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Unknown message type: "+msg.Type))
	}
}

func (cs *ClientSession) handleControlMessage(payload *messages.ControlPayload) {
	switch payload.Action {
	case messages.ActionPing:
		cs.queueMessage(messages.NewPongMessage(cs.ID))
	case messages.ActionConnect:
		go cs.connectVoice()
	case messages.ActionDisconnect:
		cs.voice.Disconnect()
	default:
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Unknown control action: "+payload.Action))
	}
}

// connectVoice starts the voice session. Failures after the credential
// check are reported through the manager's error observer.
func (cs *ClientSession) connectVoice() {
	err := cs.voice.Connect(cs.ctx)
	if errors.Is(err, live.ErrMissingCredential) {
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeMissingAPIKey, "Gemini API key is not configured"))
	}
}

func (cs *ClientSession) handleFeature(req gemini.Request) {
	if cs.features == nil {
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeMissingAPIKey, "Gemini API key is not configured"))
		return
	}

	cs.mu.Lock()
	if cs.busy {
		cs.mu.Unlock()
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeFeatureFailed, "Another request is still running"))
		return
	}
	cs.busy = true
	cs.mu.Unlock()

	go func() {
		result, err := cs.features.Run(cs.ctx, req)

		cs.mu.Lock()
		cs.busy = false
		cs.mu.Unlock()

		if err != nil {
			if cs.ctx.Err() != nil {
				return
			}
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeFeatureFailed, fmt.Sprintf("%s: %v", req.Mode, err)))
			return
		}
		cs.queueMessage(messages.NewResultMessage(cs.ID, result))
	}()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
