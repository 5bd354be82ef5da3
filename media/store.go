// Package media keeps generated files (videos from the feature client) and
// serves them back over HTTP, standing in for browser object URLs.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned by Get for unknown names.
var ErrNotFound = errors.New("media: not found")

// Object is a stored file.
type Object struct {
	Name        string
	ContentType string
	Data        []byte
	Created     time.Time
}

// Store keeps media objects. Put returns the URL clients fetch the object
// from. Implementations must be safe for concurrent use.
type Store interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
	Get(ctx context.Context, name string) (*Object, error)
}

// DefaultBaseURL is the path the media handler is mounted on.
const DefaultBaseURL = "/media/"

func objectURL(base, name string) string {
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + name
}

func validName(name string) bool {
	return name != "" && !strings.Contains(name, "/") && name != "." && name != ".."
}

// Memory is an in-process Store holding at most Limit objects; the oldest is
// evicted first.
type Memory struct {
	mu      sync.Mutex
	objects map[string]*Object
	order   []string
	limit   int
	baseURL string
}

// NewMemory creates a memory store. limit <= 0 means 32 objects.
func NewMemory(limit int, baseURL string) *Memory {
	if limit <= 0 {
		limit = 32
	}
	return &Memory{
		objects: make(map[string]*Object),
		limit:   limit,
		baseURL: baseURL,
	}
}

// Put stores data under name, replacing any previous object.
func (m *Memory) Put(_ context.Context, name, contentType string, data []byte) (string, error) {
	if !validName(name) {
		return "", fmt.Errorf("media: invalid name %q", name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[name]; !ok {
		m.order = append(m.order, name)
	}
	m.objects[name] = &Object{Name: name, ContentType: contentType, Data: data, Created: time.Now()}
	for len(m.order) > m.limit {
		delete(m.objects, m.order[0])
		m.order = m.order[1:]
	}
	return objectURL(m.baseURL, name), nil
}

// Get returns the named object.
func (m *Memory) Get(_ context.Context, name string) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return obj, nil
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Handler serves objects from s by the last path element of the request.
func Handler(s Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		name := path.Base(r.URL.Path)
		if !validName(name) {
			http.NotFound(w, r)
			return
		}
		obj, err := s.Get(r.Context(), name)
		if errors.Is(err, ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			log.Printf("❌ Media fetch %s failed: %v", name, err)
			http.Error(w, "media unavailable", http.StatusBadGateway)
			return
		}
		if obj.ContentType != "" {
			w.Header().Set("Content-Type", obj.ContentType)
		}
		http.ServeContent(w, r, obj.Name, obj.Created, bytes.NewReader(obj.Data))
	})
}
