package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/room4-2/holoassist/config"
	"github.com/room4-2/holoassist/media"
	"github.com/room4-2/holoassist/messages"
	"github.com/room4-2/holoassist/session"
)

func newTestServer(t *testing.T, cfg *config.Config, store media.Store) *httptest.Server {
	t.Helper()
	cfg.RedisURL = "127.0.0.1:1"
	if cfg.SessionTimeout == 0 {
		cfg.SessionTimeout = time.Minute
	}
	sm := session.NewManager(cfg, session.Deps{Media: store})
	srv := httptest.NewServer(NewServer(cfg, sm, store).Handler())
	t.Cleanup(func() {
		sm.Shutdown()
		srv.Close()
	})
	return srv
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &config.Config{MaxSessions: 1, AllowedOrigins: []string{"*"}, GeminiAPIKey: "k"}, nil)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
		Voice    bool   `json:"voice"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Sessions != 0 || !body.Voice {
		t.Fatalf("health = %+v", body)
	}
}

func TestMediaRoute(t *testing.T) {
	store := media.NewMemory(4, "")
	url, err := store.Put(context.Background(), "clip.mp4", "video/mp4", []byte("mp4 bytes"))
	if err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, &config.Config{MaxSessions: 1}, store)

	resp, err := http.Get(srv.URL + url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(data) != "mp4 bytes" {
		t.Fatalf("GET %s = %d %q", url, resp.StatusCode, data)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "video/mp4" {
		t.Fatalf("Content-Type = %q", ct)
	}
}

func TestNoMediaRouteWithoutStore(t *testing.T) {
	srv := newTestServer(t, &config.Config{MaxSessions: 1}, nil)

	resp, err := http.Get(srv.URL + "/media/clip.mp4")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestWebSocketRateLimited(t *testing.T) {
	srv := newTestServer(t, &config.Config{MaxSessions: 0, AllowedOrigins: []string{"*"}}, nil)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var msg struct {
		Type    string                `json:"type"`
		Payload messages.ErrorPayload `json:"payload"`
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != messages.TypeError || msg.Payload.Code != messages.ErrCodeRateLimited {
		t.Fatalf("got %+v", msg)
	}
}

func TestWebSocketOriginCheck(t *testing.T) {
	srv := newTestServer(t, &config.Config{MaxSessions: 1, AllowedOrigins: []string{"https://holo.example"}}, nil)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	if err == nil {
		t.Fatal("dial from disallowed origin succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("resp = %v", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://holo.example"}})
	if err != nil {
		t.Fatalf("dial from allowed origin: %v", err)
	}
	conn.Close()
}

func TestWebSocketWithoutOrigin(t *testing.T) {
	srv := newTestServer(t, &config.Config{MaxSessions: 1, AllowedOrigins: []string{"https://holo.example"}}, nil)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial without Origin: %v", err)
	}
	conn.Close()
}
