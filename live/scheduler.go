package live

import (
	"sync"
	"time"

	"github.com/room4-2/holoassist/audio"
)

// Scheduler queues inbound audio on a Playback so chunks play back to back
// in arrival order. It owns every voice it schedules until the voice ends or
// is flushed.
type Scheduler struct {
	out Playback

	mu     sync.Mutex
	next   time.Duration
	voices map[uint64]Voice
	seq    uint64
}

// NewScheduler creates a scheduler over out with the cursor at zero.
func NewScheduler(out Playback) *Scheduler {
	return &Scheduler{
		out:    out,
		voices: make(map[uint64]Voice),
	}
}

// Schedule plays buf immediately after the last scheduled buffer, or now if
// the queue has drained. It returns the start time used.
func (s *Scheduler) Schedule(buf *audio.Buffer) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now := s.out.Now(); now > s.next {
		s.next = now
	}
	s.seq++
	id := s.seq
	start := s.next

	v, err := s.out.Play(buf, start, func() { s.release(id) })
	if err != nil {
		return 0, err
	}
	s.voices[id] = v
	s.next += buf.Duration()
	return start, nil
}

func (s *Scheduler) release(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.voices, id)
}

// Flush stops every scheduled voice and resets the cursor to zero.
// It returns the number of voices stopped.
func (s *Scheduler) Flush() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.voices)
	for id, v := range s.voices {
		v.Stop()
		delete(s.voices, id)
	}
	s.next = 0
	return n
}

// Pending returns the number of voices scheduled and not yet finished.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.voices)
}

// Next returns the scheduling cursor.
func (s *Scheduler) Next() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
