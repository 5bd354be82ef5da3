package audio

import (
	"sync"
	"time"
)

// Clock reports the playback position of an output context.
type Clock interface {
	Now() time.Duration
}

// WallClock measures elapsed time since it was started.
type WallClock struct {
	start time.Time
}

// NewWallClock starts a clock at zero.
func NewWallClock() *WallClock {
	return &WallClock{start: time.Now()}
}

// Now returns the time elapsed since the clock started.
func (c *WallClock) Now() time.Duration {
	return time.Since(c.start)
}

// ManualClock is a clock advanced by hand, for tests and offline rendering.
type ManualClock struct {
	mu  sync.Mutex
	now time.Duration
}

// Now returns the current position.
func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
