// Package server exposes client sessions over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/room4-2/holoassist/config"
	"github.com/room4-2/holoassist/media"
	"github.com/room4-2/holoassist/messages"
	"github.com/room4-2/holoassist/session"
)

type Server struct {
	httpServer *http.Server
	upgrader   websocket.Upgrader
	sessions   *session.Manager
	config     *config.Config
	startedAt  time.Time
}

type healthStatus struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Voice    bool   `json:"voice"`
	Uptime   int64  `json:"uptimeSeconds"`
}

// NewServer serves the client websocket on /ws and generated media on
// /media/. store may be nil when media is hosted elsewhere.
func NewServer(cfg *config.Config, sessions *session.Manager, store media.Store) *Server {
	s := &Server{
		sessions:  sessions,
		config:    cfg,
		startedAt: time.Now(),
	}
	s.upgrader = websocket.Upgrader{
		// Microphone frames arrive as 16KB binary messages.
		ReadBufferSize:    32 * 1024,
		WriteBufferSize:   32 * 1024,
		EnableCompression: true,
		CheckOrigin:       s.allowOrigin,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	if store != nil {
		mux.Handle(media.DefaultBaseURL, media.Handler(store))
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the server's HTTP routes.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	log.Printf("🚀 HoloAssist listening on :%d", s.config.Port)
	log.Printf("📡 Clients connect to ws://localhost:%d/ws", s.config.Port)
	return s.httpServer.ListenAndServe()
}

// Shutdown closes every client session, then stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("🛑 Shutting down server...")
	s.sessions.Shutdown()
	return s.httpServer.Shutdown(ctx)
}

// allowOrigin accepts browsers from the configured origins. Native clients
// send no Origin header and are always accepted.
func (s *Server) allowOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	log.Printf("🚫 Rejected websocket from origin %q", origin)
	return false
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	cs, err := s.sessions.CreateSession(r.Context(), conn)
	if err != nil {
		log.Printf("❌ Could not open session for %s: %v", r.RemoteAddr, err)
		code := messages.ErrCodeSessionFailed
		if errors.Is(err, session.ErrMaxSessions) {
			code = messages.ErrCodeRateLimited
		}
		_ = conn.WriteJSON(messages.NewErrorMessage("", code, err.Error()))
		conn.Close()
		return
	}

	log.Printf("✅ Session %s opened for %s", cs.ID, r.RemoteAddr)
	cs.Start()
	<-cs.CloseChan

	s.sessions.RemoveSession(context.Background(), cs.ID)
	log.Printf("🔌 Session %s closed after %s", cs.ID, time.Since(cs.CreatedAt).Round(time.Second))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body, err := sonic.Marshal(healthStatus{
		Status:   "ok",
		Sessions: s.sessions.GetActiveSessionCount(),
		Voice:    s.config.GeminiAPIKey != "",
		Uptime:   int64(time.Since(s.startedAt).Seconds()),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}
