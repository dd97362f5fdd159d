package control

import (
	"sync"
	"time"
)

// VirtualScheduler is a Scheduler driven by a virtual clock. Callbacks run
// only when Advance is called, in due order, on the caller of Advance.
// Its Now method can be passed to WithClock so tick timestamps follow the
// virtual clock.
type VirtualScheduler struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	pending []virtualTask
}

type virtualTask struct {
	due time.Time
	seq uint64
	fn  func()
}

// NewVirtualScheduler creates a scheduler whose clock starts at start.
func NewVirtualScheduler(start time.Time) *VirtualScheduler {
	return &VirtualScheduler{now: start}
}

// Now returns the virtual time.
func (s *VirtualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// ScheduleOnce queues fn to run delay after the current virtual time.
func (s *VirtualScheduler) ScheduleOnce(delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.pending = append(s.pending, virtualTask{due: s.now.Add(delay), seq: s.seq, fn: fn})
}

// CancelAll drops every queued callback.
func (s *VirtualScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
}

// Pending returns the number of queued callbacks.
func (s *VirtualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Advance moves the clock to the earliest queued callback and runs it.
// It returns false if nothing is queued.
func (s *VirtualScheduler) Advance() bool {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return false
	}

	next := 0
	for i, t := range s.pending[1:] {
		if t.due.Before(s.pending[next].due) ||
			(t.due.Equal(s.pending[next].due) && t.seq < s.pending[next].seq) {
			next = i + 1
		}
	}
	task := s.pending[next]
	s.pending = append(s.pending[:next], s.pending[next+1:]...)
	if task.due.After(s.now) {
		s.now = task.due
	}
	s.mu.Unlock()

	task.fn()
	return true
}
