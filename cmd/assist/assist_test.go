package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMedia(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "shot.png")
	os.WriteFile(png, []byte("\x89PNG\r\n\x1a\nrest"), 0644)
	noext := filepath.Join(dir, "clip")
	os.WriteFile(noext, []byte("\x89PNG\r\n\x1a\nrest"), 0644)

	m, err := loadMedia(png)
	if err != nil || m.MIMEType != "image/png" {
		t.Fatalf("loadMedia(png) = %+v, %v", m, err)
	}
	m, err = loadMedia(noext)
	if err != nil || m.MIMEType != "image/png" {
		t.Fatalf("loadMedia(sniffed) = %+v, %v", m, err)
	}
	if _, err := loadMedia(filepath.Join(dir, "missing.jpg")); err == nil {
		t.Fatal("missing file loaded")
	}
}

func TestDecodeDataURI(t *testing.T) {
	data, err := decodeDataURI("data:image/png;base64,aGVsbG8=")
	if err != nil || string(data) != "hello" {
		t.Fatalf("decodeDataURI = %q, %v", data, err)
	}
	if _, err := decodeDataURI("https://example.com/a.png"); err == nil {
		t.Fatal("plain URL accepted")
	}
}

func TestLoadAudioFile(t *testing.T) {
	dir := t.TempDir()
	wav := filepath.Join(dir, "a.wav")
	header := append([]byte("RIFF"), make([]byte, 40)...)
	os.WriteFile(wav, append(header, 1, 2, 3, 4, 5), 0644)

	pcm, err := loadAudioFile(wav)
	if err != nil {
		t.Fatal(err)
	}
	if len(pcm) != 4 || pcm[0] != 1 {
		t.Fatalf("pcm = %v", pcm)
	}
}

func TestFileStore(t *testing.T) {
	out := filepath.Join(t.TempDir(), "clip.mp4")
	url, err := fileStore{path: out}.Put(context.Background(), "x.mp4", "video/mp4", []byte("v"))
	if err != nil || url != out {
		t.Fatalf("Put = %q, %v", url, err)
	}
	if data, _ := os.ReadFile(out); string(data) != "v" {
		t.Fatalf("file = %q", data)
	}
}

func TestHandleServerMessage(t *testing.T) {
	if !handleServerMessage(&serverMessage{Type: "status", Payload: []byte(`{"status":"CONNECTED"}`)}, nil) {
		t.Fatal("CONNECTED status not recognised")
	}
	if handleServerMessage(&serverMessage{Type: "status", Payload: []byte(`{"status":"DISCONNECTED"}`)}, nil) {
		t.Fatal("DISCONNECTED reported as connected")
	}
	if handleServerMessage(&serverMessage{Type: "audio", Payload: []byte(`{"id":1,"data":"AAA="}`)}, nil) {
		t.Fatal("audio reported as connected")
	}
}
