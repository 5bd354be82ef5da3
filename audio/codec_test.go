package audio

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	const step = 1.0 / 32768
	samples := make([]float32, 0, 2001)
	for i := -1000; i <= 1000; i++ {
		samples = append(samples, float32(i)/1000)
	}
	samples = append(samples, 0.99, -0.99, 0.123456, 1e-6)

	buf, err := DecodeFromWire(EncodeToWire(samples), InputSampleRate, 1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := buf.Mono()
	if len(got) != len(samples) {
		t.Fatalf("len=%d, want %d", len(got), len(samples))
	}
	for i, want := range samples {
		if d := math.Abs(float64(got[i] - want)); d > step+1e-9 {
			t.Errorf("sample %d: got %v want %v (diff %v)", i, got[i], want, d)
		}
	}
}

func TestEncodeClamps(t *testing.T) {
	tests := []struct {
		in, same float32
	}{
		{1.5, 1},
		{-1.5, -1},
		{42, 1},
		{-42, -1},
	}
	for _, tt := range tests {
		got := EncodeToWire([]float32{tt.in})
		want := EncodeToWire([]float32{tt.same})
		if !bytes.Equal(got, want) {
			t.Errorf("encode(%v)=%v, want encode(%v)=%v", tt.in, got, tt.same, want)
		}
	}

	// +1 must not wrap to a negative value.
	pos := EncodeToWire([]float32{1})
	if pos[0] != 0xFF || pos[1] != 0x7F {
		t.Errorf("encode(1)=%x, want ff7f", pos)
	}
	neg := EncodeToWire([]float32{-1})
	if neg[0] != 0x00 || neg[1] != 0x80 {
		t.Errorf("encode(-1)=%x, want 0080", neg)
	}
}

func TestDecodeRejectsPartialSamples(t *testing.T) {
	_, err := DecodeFromWire([]byte{1, 2, 3}, OutputSampleRate, 1)
	if !errors.Is(err, ErrSampleWidth) {
		t.Fatalf("err=%v, want ErrSampleWidth", err)
	}
	_, err = DecodeFromWire([]byte{1, 2, 3, 4, 5, 6}, OutputSampleRate, 2)
	if !errors.Is(err, ErrSampleWidth) {
		t.Fatalf("stereo err=%v, want ErrSampleWidth", err)
	}
	if _, err := DecodeFromWire(nil, 0, 1); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
}

func TestDecodeStereo(t *testing.T) {
	data := EncodeToWire([]float32{0.5, -0.5, 0.25, -0.25})
	buf, err := DecodeFromWire(data, OutputSampleRate, 2)
	if err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 2 {
		t.Fatalf("len=%d", buf.Len())
	}
	if buf.Channels[0][1] != 0.25 || buf.Channels[1][0] != -0.5 {
		t.Errorf("channels=%v", buf.Channels)
	}
}

func TestBufferDuration(t *testing.T) {
	buf, err := DecodeFromWire(make([]byte, OutputSampleRate*2), OutputSampleRate, 1)
	if err != nil {
		t.Fatal(err)
	}
	if buf.Duration() != time.Second {
		t.Errorf("duration=%v", buf.Duration())
	}
	if (&Buffer{}).Duration() != 0 {
		t.Error("empty buffer should have zero duration")
	}
}

func TestBase64Decode(t *testing.T) {
	got, err := Base64Decode("AAEC")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{0, 1, 2}) {
		t.Errorf("got=%v", got)
	}
	if _, err := Base64Decode("not base64!"); err == nil {
		t.Error("expected error for malformed input")
	}
}
