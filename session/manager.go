package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"google.golang.org/genai"

	"github.com/room4-2/holoassist/config"
	"github.com/room4-2/holoassist/device"
	"github.com/room4-2/holoassist/eventlog"
	"github.com/room4-2/holoassist/gemini"
	"github.com/room4-2/holoassist/live"
)

const activeSessionsKey = "active_sessions"

// ErrMaxSessions is returned by CreateSession when the server is full.
var ErrMaxSessions = errors.New("maximum sessions reached")

// Deps are the collaborators shared by every session.
type Deps struct {
	// GenAI runs feature requests; nil disables them.
	GenAI *genai.Client
	// Media stores generated videos.
	Media gemini.MediaStore
	// Contacts replaces the default directory when non-empty.
	Contacts []device.Contact
	// Navigator receives deep-links in addition to the client.
	Navigator device.Navigator

	// Dialer and Features override how sessions reach the model.
	Dialer   func(cfg gemini.LiveConfig, tag string) live.Dialer
	Features func(logger eventlog.Logger) FeatureRunner
}

func (d Deps) dialer(cfg gemini.LiveConfig, tag string) live.Dialer {
	if d.Dialer != nil {
		return d.Dialer(cfg, tag)
	}
	return gemini.NewDialer(cfg, tag)
}

func (d Deps) featureRunner(logger eventlog.Logger) FeatureRunner {
	if d.Features != nil {
		return d.Features(logger)
	}
	if d.GenAI == nil {
		return nil
	}
	return gemini.NewClient(d.GenAI, d.Media, logger)
}

// Manager manages all client sessions
type Manager struct {
	sessions map[string]*ClientSession
	mu       sync.RWMutex
	redis    *redis.Client
	config   *config.Config
	deps     Deps
}

// NewManager creates a session manager. Sessions are mirrored to Redis
// when it is reachable.
func NewManager(cfg *config.Config, deps Deps) *Manager {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("⚠️ Redis unavailable at %s, tracking sessions in memory only: %v", cfg.RedisURL, err)
		redisClient.Close()
		redisClient = nil
	}

	return newManager(cfg, deps, redisClient)
}

func newManager(cfg *config.Config, deps Deps, redisClient *redis.Client) *Manager {
	return &Manager{
		sessions: make(map[string]*ClientSession),
		redis:    redisClient,
		config:   cfg,
		deps:     deps,
	}
}

// CreateSession creates a new client session
func (sm *Manager) CreateSession(ctx context.Context, clientConn *websocket.Conn) (*ClientSession, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if len(sm.sessions) >= sm.config.MaxSessions {
		return nil, ErrMaxSessions
	}

	sessionID := uuid.New().String()
	opts := Options{
		APIKey:          sm.config.GeminiAPIKey,
		LiveModel:       sm.config.LiveModel,
		Voice:           sm.config.VoiceName,
		KeepAlivePeriod: sm.config.KeepAlivePeriod,
	}
	session := NewClientSession(sessionID, clientConn, opts, sm.deps, func(status string) {
		sm.UpdateStatus(context.Background(), sessionID, status)
	})

	sm.sessions[sessionID] = session
	if sm.redis != nil {
		sm.redis.HSet(ctx, "session:"+sessionID, map[string]interface{}{
			"created_at":    session.CreatedAt.Format(time.RFC3339),
			"last_activity": session.LastActivity.Format(time.RFC3339),
			"status":        live.Disconnected.String(),
			"remote_addr":   clientConn.RemoteAddr().String(),
		})
		sm.redis.SAdd(ctx, activeSessionsKey, sessionID)
		sm.redis.Expire(ctx, "session:"+sessionID, sm.config.SessionTimeout)
	}
	return session, nil
}

// UpdateStatus records the voice state of a session in Redis.
func (sm *Manager) UpdateStatus(ctx context.Context, sessionID, status string) {
	if sm.redis == nil {
		return
	}
	key := "session:" + sessionID
	sm.redis.HSet(ctx, key, "status", status, "last_activity", time.Now().Format(time.RFC3339))
	sm.redis.Expire(ctx, key, sm.config.SessionTimeout)
}

// GetSession retrieves a session by ID
func (sm *Manager) GetSession(sessionID string) (*ClientSession, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[sessionID]
	return session, exists
}

// RemoveSession cleans up and removes a session
func (sm *Manager) RemoveSession(ctx context.Context, sessionID string) {
	sm.mu.Lock()
	session, exists := sm.sessions[sessionID]
	delete(sm.sessions, sessionID)
	sm.mu.Unlock()

	if !exists {
		return
	}
	session.Close()
	sm.forget(ctx, sessionID)
}

func (sm *Manager) forget(ctx context.Context, sessionID string) {
	if sm.redis != nil {
		sm.redis.Del(ctx, "session:"+sessionID)
		sm.redis.SRem(ctx, activeSessionsKey, sessionID)
	}
}

// GetActiveSessionCount returns current session count
func (sm *Manager) GetActiveSessionCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// CleanupInactiveSessions removes sessions whose client has been silent
// longer than the session timeout.
func (sm *Manager) CleanupInactiveSessions(ctx context.Context) {
	var stale []*ClientSession

	sm.mu.Lock()
	for id, session := range sm.sessions {
		if session.Idle() > sm.config.SessionTimeout {
			stale = append(stale, session)
			delete(sm.sessions, id)
		}
	}
	sm.mu.Unlock()

	for _, session := range stale {
		log.Printf("🧹 [%s] Closing inactive session", shortID(session.ID))
		session.Close()
		sm.forget(ctx, session.ID)
	}
}

// StartCleanupRoutine starts periodic cleanup of inactive sessions
func (sm *Manager) StartCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.CleanupInactiveSessions(ctx)
		}
	}
}

// Shutdown closes all sessions
func (sm *Manager) Shutdown() {
	sm.mu.Lock()
	sessions := sm.sessions
	sm.sessions = make(map[string]*ClientSession)
	sm.mu.Unlock()

	ctx := context.Background()
	for id, session := range sessions {
		session.Close()
		sm.forget(ctx, id)
	}

	if sm.redis != nil {
		sm.redis.Close()
	}
}
