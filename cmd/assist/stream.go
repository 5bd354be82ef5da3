package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/room4-2/holoassist/audio"
	"github.com/room4-2/holoassist/eventlog"
	"github.com/room4-2/holoassist/messages"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Stream an audio file to a running server",
	Long: `Connect to a HoloAssist server, start a voice session and stream a
16kHz mono PCM16 file (raw or WAV) as if it were the microphone. Replies
are played through sox.

Examples:
  assist stream -f question.wav
  assist stream --server ws://holo.local:8080/ws -f question.pcm --mute`,
	RunE: func(cmd *cobra.Command, args []string) error {
		serverURL, _ := cmd.Flags().GetString("server")
		file, _ := cmd.Flags().GetString("file")
		mute, _ := cmd.Flags().GetBool("mute")
		wait, _ := cmd.Flags().GetDuration("wait")
		if file == "" {
			return fmt.Errorf("input file is required, use -f flag")
		}
		return runStream(serverURL, file, mute, wait)
	},
}

func init() {
	streamCmd.Flags().String("server", "ws://localhost:8080/ws", "WebSocket server URL")
	streamCmd.Flags().StringP("file", "f", "", "Audio file to send (PCM or WAV, 16kHz mono)")
	streamCmd.Flags().Bool("mute", false, "Do not play replies")
	streamCmd.Flags().Duration("wait", 30*time.Second, "How long to wait for replies after sending")
}

type serverMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

func runStream(serverURL, file string, mute bool, wait time.Duration) error {
	pcm, err := loadAudioFile(file)
	if err != nil {
		return err
	}

	fmt.Println(dimStyle.Render("Connecting to " + serverURL + "..."))
	conn, _, err := websocket.DefaultDialer.Dial(serverURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	var player *audioPlayer
	if !mute {
		if player, err = newAudioPlayer(audio.OutputSampleRate); err != nil {
			return err
		}
		defer player.Close()
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	connected := make(chan struct{})
	done := make(chan struct{})
	var once sync.Once
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg serverMessage
			if err := sonic.Unmarshal(data, &msg); err != nil {
				continue
			}
			if handleServerMessage(&msg, player) {
				once.Do(func() { close(connected) })
			}
		}
	}()

	if err := writeJSON(conn, messages.TypeControl, messages.ControlPayload{Action: messages.ActionConnect}); err != nil {
		return err
	}
	select {
	case <-connected:
	case <-done:
		return fmt.Errorf("connection closed before the voice session started")
	case <-time.After(15 * time.Second):
		return fmt.Errorf("timed out waiting for the voice session")
	}

	// 100ms chunks at real-time pace.
	chunkSize := audio.InputSampleRate / 10 * 2
	for i := 0; i < len(pcm); i += chunkSize {
		end := min(i+chunkSize, len(pcm))
		payload := messages.AudioPayload{Data: base64.StdEncoding.EncodeToString(pcm[i:end])}
		if err := writeJSON(conn, messages.TypeAudio, payload); err != nil {
			return fmt.Errorf("send audio: %w", err)
		}
		time.Sleep(100 * time.Millisecond)
	}
	fmt.Println(dimStyle.Render("Audio sent, waiting for replies..."))

	select {
	case <-done:
	case <-interrupt:
	case <-time.After(wait):
	}
	writeJSON(conn, messages.TypeControl, messages.ControlPayload{Action: messages.ActionDisconnect})
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return nil
}

func writeJSON(conn *websocket.Conn, typ string, payload any) error {
	body, err := sonic.Marshal(payload)
	if err != nil {
		return err
	}
	data, err := sonic.Marshal(messages.ClientMessage{Type: typ, Payload: body})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// handleServerMessage prints or plays msg and reports whether it announced
// a connected voice session.
func handleServerMessage(msg *serverMessage, player *audioPlayer) bool {
	switch msg.Type {
	case messages.TypeAudio:
		var p messages.AudioResponsePayload
		if sonic.Unmarshal(msg.Payload, &p) != nil || player == nil {
			return false
		}
		if data, err := base64.StdEncoding.DecodeString(p.Data); err == nil {
			player.Play(data)
		}
	case messages.TypeLog:
		var e eventlog.Entry
		if sonic.Unmarshal(msg.Payload, &e) == nil {
			printEntry(e)
		}
	case messages.TypeStatus:
		var p messages.StatusPayload
		if sonic.Unmarshal(msg.Payload, &p) == nil {
			fmt.Println(dimStyle.Render("status: " + p.Status))
			return p.Status == "CONNECTED"
		}
	case messages.TypeNavigate:
		var p messages.NavigatePayload
		if sonic.Unmarshal(msg.Payload, &p) == nil {
			fmt.Println(titleStyle.Render("↗ " + p.URL))
		}
	case messages.TypeError:
		var p messages.ErrorPayload
		if sonic.Unmarshal(msg.Payload, &p) == nil {
			printEntry(eventlog.Entry{Timestamp: time.Now().Format("15:04:05"), Severity: eventlog.Error, Message: p.Code + ": " + p.Message})
		}
	}
	return false
}

// audioPlayer streams PCM16 mono to sox.
type audioPlayer struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	mu     sync.Mutex
	closed bool
}

func newAudioPlayer(sampleRate int) (*audioPlayer, error) {
	cmd := exec.Command("sox", "-q",
		"-t", "raw",
		"-r", strconv.Itoa(sampleRate),
		"-b", "16",
		"-c", "1",
		"-e", "signed-integer",
		"-",
		"-d",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start sox (is it installed? use --mute to skip playback): %w", err)
	}
	return &audioPlayer{cmd: cmd, stdin: stdin}, nil
}

func (p *audioPlayer) Play(pcm []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.stdin.Write(pcm)
}

func (p *audioPlayer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.stdin.Close()
	p.cmd.Wait()
}

// loadAudioFile returns the PCM samples of a raw or WAV file.
func loadAudioFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) > 44 && string(data[0:4]) == "RIFF" {
		data = data[44:]
	}
	return data[:len(data)&^1], nil
}
