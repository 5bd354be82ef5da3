// Package audio converts between float samples and the 16-bit PCM wire
// format used by the live API, and provides the small playback helpers the
// realtime session needs (buffers, frame accumulation, clocks).
//
// Wire format: signed 16-bit little-endian, interleaved when multi-channel.
// Capture runs at 16kHz, playback at 24kHz.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// InputSampleRate is the capture rate sent to the live API.
	InputSampleRate = 16000
	// OutputSampleRate is the rate of audio returned by the live API.
	OutputSampleRate = 24000

	sampleWidth = 2
)

// ErrSampleWidth is returned when a PCM payload is not a whole number of samples.
var ErrSampleWidth = errors.New("audio: byte length is not a multiple of the sample width")

// MIMEType returns the wire MIME type for PCM at the given rate.
func MIMEType(sampleRate int) string {
	return fmt.Sprintf("audio/pcm;rate=%d", sampleRate)
}

// EncodeToWire converts samples in [-1, 1] to 16-bit little-endian PCM.
// Out-of-range samples are clamped before scaling so they never wrap;
// +1.0 saturates at 32767.
func EncodeToWire(samples []float32) []byte {
	out := make([]byte, len(samples)*sampleWidth)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*sampleWidth:], uint16(floatToInt16(s)))
	}
	return out
}

func floatToInt16(s float32) int16 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	v := math.Round(float64(s) * 32768)
	if v > math.MaxInt16 {
		v = math.MaxInt16
	}
	return int16(v)
}

// DecodeFromWire reconstructs a playable buffer from 16-bit little-endian PCM.
// Interleaved samples are split into one slice per channel.
func DecodeFromWire(data []byte, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audio: invalid sample rate %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("audio: invalid channel count %d", channels)
	}
	if len(data)%(sampleWidth*channels) != 0 {
		return nil, fmt.Errorf("%w: %d bytes for %d channel(s)", ErrSampleWidth, len(data), channels)
	}

	frames := len(data) / (sampleWidth * channels)
	buf := &Buffer{
		SampleRate: sampleRate,
		Channels:   make([][]float32, channels),
	}
	for ch := range buf.Channels {
		buf.Channels[ch] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			off := (i*channels + ch) * sampleWidth
			v := int16(binary.LittleEndian.Uint16(data[off:]))
			buf.Channels[ch][i] = float32(v) / 32768
		}
	}
	return buf, nil
}

// Base64Decode decodes a standard base64 payload.
func Base64Decode(text string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("audio: invalid base64: %w", err)
	}
	return data, nil
}

// Buffer is decoded audio ready to be scheduled on a player.
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// Len returns the number of sample frames in the buffer.
func (b *Buffer) Len() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Len()) * time.Second / time.Duration(b.SampleRate)
}

// Mono returns the first channel's samples.
func (b *Buffer) Mono() []float32 {
	if len(b.Channels) == 0 {
		return nil
	}
	return b.Channels[0]
}

// PCM re-encodes the first channel to the wire format.
func (b *Buffer) PCM() []byte {
	return EncodeToWire(b.Mono())
}
