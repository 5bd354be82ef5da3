// Package localaudio runs a voice session on this machine's microphone and
// speakers through the sox command-line tool.
package localaudio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/room4-2/holoassist/audio"
	"github.com/room4-2/holoassist/live"
)

const (
	readChunk = 3200 // 100ms at 16kHz
	// Playback is written in 20ms slices kept at most lead ahead of the
	// clock, so a stopped voice goes quiet within lead.
	slice = 20 * time.Millisecond
	lead  = 80 * time.Millisecond
)

// ErrSoxMissing is returned when the sox binary cannot be found.
var ErrSoxMissing = errors.New("sox not found in PATH (install sox to use local audio)")

// Devices opens the default sound card through sox. It implements
// live.Devices.
type Devices struct {
	// Binary is the sox executable; empty means "sox".
	Binary string

	// command builds the process; tests replace it.
	command func(name string, args ...string) *exec.Cmd
}

// NewDevices returns devices backed by the sox on PATH.
func NewDevices() *Devices {
	return &Devices{Binary: "sox"}
}

func (d *Devices) cmd(args ...string) (*exec.Cmd, error) {
	bin := d.Binary
	if bin == "" {
		bin = "sox"
	}
	if d.command != nil {
		return d.command(bin, args...), nil
	}
	if _, err := exec.LookPath(bin); err != nil {
		return nil, ErrSoxMissing
	}
	return exec.Command(bin, args...), nil
}

func rawArgs(sampleRate int) []string {
	return []string{"-t", "raw", "-r", strconv.Itoa(sampleRate), "-b", "16", "-c", "1", "-e", "signed-integer"}
}

// OpenMicrophone starts recording from the default input.
func (d *Devices) OpenMicrophone(_ context.Context, sampleRate, frameSize int) (live.Capture, error) {
	args := append([]string{"-q", "-d"}, rawArgs(sampleRate)...)
	cmd, err := d.cmd(append(args, "-")...)
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start recorder: %w", err)
	}
	return &microphone{
		cmd:        cmd,
		stdout:     stdout,
		sampleRate: sampleRate,
		framer:     audio.NewFramer(frameSize, 0),
		done:       make(chan struct{}),
	}, nil
}

type microphone struct {
	cmd        *exec.Cmd
	stdout     io.ReadCloser
	sampleRate int
	framer     *audio.Framer
	done       chan struct{}

	mu      sync.Mutex
	started bool
	closed  bool
}

func (m *microphone) Start(onFrame func([]float32)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("microphone closed")
	}
	if m.started {
		return errors.New("microphone already started")
	}
	m.started = true
	go m.read(onFrame)
	return nil
}

func (m *microphone) read(onFrame func([]float32)) {
	defer close(m.done)
	buf := make([]byte, readChunk)
	var carry []byte
	for {
		n, err := m.stdout.Read(buf)
		if n > 0 {
			data := append(carry, buf[:n]...)
			even := len(data) &^ 1
			carry = append([]byte(nil), data[even:]...)

			pcm, decErr := audio.DecodeFromWire(data[:even], m.sampleRate, 1)
			if decErr == nil {
				frames, _ := m.framer.Write(pcm.Mono())
				for _, f := range frames {
					onFrame(f)
				}
			}
		}
		if err != nil {
			if err != io.EOF && !m.isClosed() {
				log.Printf("❌ Recorder stopped: %v", err)
			}
			return
		}
	}
}

func (m *microphone) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *microphone) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	started := m.started
	m.mu.Unlock()

	if m.cmd.Process != nil {
		m.cmd.Process.Kill()
	}
	if started {
		<-m.done
	}
	m.cmd.Wait()
	return nil
}

// OpenSpeaker starts a player on the default output.
func (d *Devices) OpenSpeaker(_ context.Context, sampleRate int) (live.Playback, error) {
	args := append([]string{"-q"}, rawArgs(sampleRate)...)
	cmd, err := d.cmd(append(args, "-", "-d")...)
	if err != nil {
		return nil, err
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start player: %w", err)
	}
	return &speaker{
		WallClock:  audio.NewWallClock(),
		cmd:        cmd,
		stdin:      stdin,
		sliceBytes: int(int64(sampleRate)*int64(slice)/int64(time.Second)) * 2,
		closing:    make(chan struct{}),
	}, nil
}

// speaker feeds scheduled buffers to the player process in real time.
type speaker struct {
	*audio.WallClock
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	sliceBytes int

	writeMu sync.Mutex
	mu      sync.Mutex
	closed  bool
	closing chan struct{}
	wg      sync.WaitGroup
}

func (s *speaker) Play(buf *audio.Buffer, at time.Duration, onEnded func()) (live.Voice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("speaker closed")
	}
	v := &voice{stopped: make(chan struct{})}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.render(buf, at, v) {
			onEnded()
		}
	}()
	return v, nil
}

// render writes buf slice by slice starting at context time at, then waits
// for the last slice to finish. It reports whether playback completed.
func (s *speaker) render(buf *audio.Buffer, at time.Duration, v *voice) bool {
	pcm := buf.PCM()
	for off := 0; off < len(pcm); off += s.sliceBytes {
		due := at + time.Duration(off/s.sliceBytes)*slice - lead
		if !s.wait(due, v) {
			return false
		}
		end := min(off+s.sliceBytes, len(pcm))
		s.writeMu.Lock()
		_, err := s.stdin.Write(pcm[off:end])
		s.writeMu.Unlock()
		if err != nil {
			return false
		}
	}
	return s.wait(at+buf.Duration(), v)
}

// wait sleeps until context time t. It returns false if the voice was
// stopped or the speaker closed first.
func (s *speaker) wait(t time.Duration, v *voice) bool {
	d := t - s.Now()
	if d <= 0 {
		select {
		case <-v.stopped:
			return false
		case <-s.closing:
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-v.stopped:
		return false
	case <-s.closing:
		return false
	}
}

func (s *speaker) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.closing)
	s.mu.Unlock()

	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	s.wg.Wait()
	s.stdin.Close()
	s.cmd.Wait()
	return nil
}

type voice struct {
	once    sync.Once
	stopped chan struct{}
}

func (v *voice) Stop() {
	v.once.Do(func() { close(v.stopped) })
}
