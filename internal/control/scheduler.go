package control

import (
	"sync"
	"time"
)

// TimerScheduler is a Scheduler backed by time.AfterFunc and a single executor
// goroutine, so scheduled callbacks never run concurrently.
type TimerScheduler struct {
	mu     sync.Mutex
	epoch  uint64
	timers map[*time.Timer]struct{}

	queue  chan task
	stopCh chan struct{}
	doneCh chan struct{}
	closed bool
}

type task struct {
	epoch uint64
	fn    func()
}

// NewTimerScheduler creates a scheduler and starts its executor.
// Call Close to stop the executor.
func NewTimerScheduler() *TimerScheduler {
	s := &TimerScheduler{
		timers: make(map[*time.Timer]struct{}),
		queue:  make(chan task),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go s.run()
	return s
}

// ScheduleOnce runs fn on the executor after delay.
func (s *TimerScheduler) ScheduleOnce(delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	t := task{epoch: s.epoch, fn: fn}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, timer)
		s.mu.Unlock()

		select {
		case s.queue <- t:
		case <-s.stopCh:
		}
	})
	s.timers[timer] = struct{}{}
}

// CancelAll drops every pending callback, including ones whose timer has
// already fired but which have not started running yet.
func (s *TimerScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	for timer := range s.timers {
		timer.Stop()
	}
	clear(s.timers)
}

// Close cancels pending callbacks and stops the executor. It waits for a
// running callback to return.
func (s *TimerScheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.CancelAll()
	close(s.stopCh)
	<-s.doneCh
}

// run is the executor loop.
func (s *TimerScheduler) run() {
	defer close(s.doneCh)

	for {
		select {
		case <-s.stopCh:
			return
		case t := <-s.queue:
			s.mu.Lock()
			stale := t.epoch != s.epoch
			s.mu.Unlock()

			if !stale {
				t.fn()
			}
		}
	}
}
