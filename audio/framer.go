package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"
)

// ErrFramerFull is returned when pending samples would exceed the limit.
var ErrFramerFull = errors.New("audio framer full")

// Framer accumulates capture samples until whole frames are available.
// Microphones deliver whatever block size they like; the live session
// expects fixed-size frames.
type Framer struct {
	frameSize  int
	maxPending int
	pending    []float32
	mu         sync.Mutex
}

// NewFramer creates a framer emitting frames of frameSize samples.
// maxPending bounds the samples held between writes; zero means four frames.
func NewFramer(frameSize, maxPending int) *Framer {
	if maxPending <= 0 {
		maxPending = frameSize * 4
	}
	return &Framer{
		frameSize:  frameSize,
		maxPending: maxPending,
		pending:    make([]float32, 0, frameSize),
	}
}

// FrameSize returns the number of samples per emitted frame.
func (f *Framer) FrameSize() int {
	return f.frameSize
}

// Write appends samples and returns every complete frame now available.
// Returns ErrFramerFull if the samples would overflow the pending limit.
func (f *Framer) Write(samples []float32) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.pending)+len(samples) > f.maxPending {
		return nil, ErrFramerFull
	}
	f.pending = append(f.pending, samples...)

	var frames [][]float32
	for len(f.pending) >= f.frameSize {
		frame := make([]float32, f.frameSize)
		copy(frame, f.pending[:f.frameSize])
		frames = append(frames, frame)
		f.pending = f.pending[f.frameSize:]
	}
	if len(f.pending) == 0 {
		f.pending = f.pending[:0:0]
	}
	return frames, nil
}

// Pending returns the number of samples waiting for a full frame.
func (f *Framer) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// MeanAbs returns the mean absolute amplitude of a frame.
func MeanAbs(frame []float32) float32 {
	if len(frame) == 0 {
		return 0
	}
	var sum float32
	for _, s := range frame {
		if s < 0 {
			sum -= s
		} else {
			sum += s
		}
	}
	return sum / float32(len(frame))
}

// Float32FromLE decodes little-endian IEEE-754 float32 samples, the format
// browsers produce from getChannelData. Trailing partial samples are ignored.
func Float32FromLE(data []byte) []float32 {
	n := len(data) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}
