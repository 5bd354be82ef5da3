package gemini

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/gorilla/websocket"
	"google.golang.org/genai"

	"github.com/room4-2/holoassist/audio"
	"github.com/room4-2/holoassist/live"
)

const (
	DefaultLiveModel = "gemini-2.5-flash-native-audio-preview-09-2025"
	DefaultVoice     = "Zephyr"
)

// LiveConfig configures the realtime session opened by a Dialer.
type LiveConfig struct {
	APIKey       string
	Model        string
	Voice        string // Puck, Charon, Kore, Fenrir, Aoede, Leda, Orus, Zephyr
	SystemPrompt string
	Tools        []*genai.Tool
}

// liveSession is the subset of *genai.Session a Proxy drives.
type liveSession interface {
	Receive() (*genai.LiveServerMessage, error)
	SendRealtimeInput(input genai.LiveRealtimeInput) error
	SendToolResponse(input genai.LiveToolResponseInput) error
	Close() error
}

// Dialer opens Gemini Live sessions.
type Dialer struct {
	cfg LiveConfig
	tag string
}

// NewDialer returns a dialer for cfg. tag prefixes process-log lines.
func NewDialer(cfg LiveConfig, tag string) *Dialer {
	if cfg.Model == "" {
		cfg.Model = DefaultLiveModel
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	return &Dialer{cfg: cfg, tag: tag}
}

// Dial connects to the Live API.
func (d *Dialer) Dial(ctx context.Context) (live.Channel, error) {
	client, err := NewGenAIClient(ctx, d.cfg.APIKey)
	if err != nil {
		return nil, err
	}

	session, err := client.Live.Connect(ctx, d.cfg.Model, d.connectConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Live API: %w", unwrapAPIError(err))
	}

	log.Printf("✅ [%s] Connected to Gemini Live (%s)", d.tag, d.cfg.Model)
	return newProxy(session, d.tag), nil
}

func (d *Dialer) connectConfig() *genai.LiveConnectConfig {
	return &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: d.cfg.SystemPrompt}},
		},
		Tools: d.cfg.Tools,
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: d.cfg.Voice},
			},
		},
	}
}

// NewGenAIClient creates a Gemini API client.
func NewGenAIClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return client, nil
}

// Proxy is an open Live session. It implements live.Channel.
// The session's websocket allows one writer, so capture frames and tool
// responses take turns on writeMu.
type Proxy struct {
	session liveSession
	tag     string

	writeMu sync.Mutex

	mu     sync.RWMutex
	closed bool
}

func newProxy(session liveSession, tag string) *Proxy {
	return &Proxy{session: session, tag: tag}
}

// Listen reports the session open, then delivers inbound messages from a
// receive goroutine until the session ends.
func (p *Proxy) Listen(h live.Handlers) {
	if h.OnOpen != nil {
		h.OnOpen()
	}
	go p.receive(h)
}

func (p *Proxy) receive(h live.Handlers) {
	for {
		resp, err := p.session.Receive()
		if err != nil {
			if p.isClosed() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("🔌 [%s] Gemini closed the session", p.tag)
				if h.OnClose != nil {
					h.OnClose()
				}
				return
			}
			log.Printf("❌ [%s] Gemini receive error: %v", p.tag, err)
			if h.OnError != nil {
				h.OnError(unwrapAPIError(err))
			}
			return
		}

		msg := toMessage(resp)
		if msg == nil || h.OnMessage == nil {
			continue
		}
		if n := len(msg.ToolCalls); n > 0 {
			log.Printf("📥 [%s] Received from Gemini: %d function call(s)", p.tag, n)
		}
		h.OnMessage(msg)
	}
}

// toMessage keeps the parts of a server message the session acts on.
// It returns nil when there is nothing to act on.
func toMessage(resp *genai.LiveServerMessage) *live.Message {
	if resp == nil {
		return nil
	}
	msg := &live.Message{}
	if sc := resp.ServerContent; sc != nil {
		msg.Interrupted = sc.Interrupted
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
					msg.Audio = append(msg.Audio, part.InlineData.Data)
				}
			}
		}
	}
	if tc := resp.ToolCall; tc != nil {
		for _, fc := range tc.FunctionCalls {
			if fc == nil {
				continue
			}
			msg.ToolCalls = append(msg.ToolCalls, live.ToolCall{ID: fc.ID, Name: fc.Name, Args: fc.Args})
		}
	}
	if !msg.Interrupted && len(msg.Audio) == 0 && len(msg.ToolCalls) == 0 {
		return nil
	}
	return msg
}

// SendAudio forwards one 16kHz PCM frame.
func (p *Proxy) SendAudio(pcm []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if p.isClosed() {
		return errClosed
	}
	err := p.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{
			MIMEType: audio.MIMEType(audio.InputSampleRate),
			Data:     pcm,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send audio: %w", err)
	}
	return nil
}

// SendToolResponse answers one function call.
func (p *Proxy) SendToolResponse(resp live.ToolResponse) error {
	p.writeMu.Lock()
	err := p.sendToolResponse(resp)
	p.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to send tool response: %w", err)
	}
	log.Printf("📤 [%s] Sent tool response for %s (%s)", p.tag, resp.Name, resp.Result.Status)
	return nil
}

// Close terminates the session. Calling it more than once is a no-op.
func (p *Proxy) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.session.Close()
}

func (p *Proxy) sendToolResponse(resp live.ToolResponse) error {
	if p.isClosed() {
		return errClosed
	}
	return p.session.SendToolResponse(genai.LiveToolResponseInput{
		FunctionResponses: []*genai.FunctionResponse{{
			ID:       resp.ID,
			Name:     resp.Name,
			Response: resp.Result.Response(),
		}},
	})
}

func (p *Proxy) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

var errClosed = errors.New("gemini: session closed")
