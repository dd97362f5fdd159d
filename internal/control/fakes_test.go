package control

import (
	"errors"
	"sync"
	"time"
)

// fakeSource returns a fixed block on every read.
type fakeSource struct {
	mu       sync.Mutex
	block    []int16
	openErr  error
	readErr  error
	panicMsg string
	opens    int
	closes   int
	reads    int
}

func (s *fakeSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return s.openErr
	}
	s.opens++
	return nil
}

func (s *fakeSource) ReadBlock() ([]int16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.block, nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeSource) setBlock(block []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.block = block
}

func (s *fakeSource) counts() (opens, closes, reads int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens, s.closes, s.reads
}

// fakeSink records every volume written to it.
type fakeSink struct {
	mu         sync.Mutex
	current    int
	max        int
	maxErr     error
	currentErr error
	setErr     error
	sets       []int
}

func (s *fakeSink) Current() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentErr != nil {
		return 0, s.currentErr
	}
	return s.current, nil
}

func (s *fakeSink) Max() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxErr != nil {
		return 0, s.maxErr
	}
	return s.max, nil
}

func (s *fakeSink) SetCurrent(level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.current = level
	s.sets = append(s.sets, level)
	return nil
}

func (s *fakeSink) setExternally(level int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = level
}

func (s *fakeSink) writes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.sets...)
}

// manualScheduler queues callbacks until the test runs them.
type manualScheduler struct {
	mu        sync.Mutex
	pending   []scheduledCall
	scheduled int
	cancels   int
}

type scheduledCall struct {
	delay time.Duration
	fn    func()
}

func (s *manualScheduler) ScheduleOnce(delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled++
	s.pending = append(s.pending, scheduledCall{delay: delay, fn: fn})
}

func (s *manualScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
	s.pending = nil
}

// runNext runs the oldest pending callback outside the scheduler lock.
func (s *manualScheduler) runNext() bool {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return false
	}
	call := s.pending[0]
	s.pending = s.pending[1:]
	s.mu.Unlock()

	call.fn()
	return true
}

func (s *manualScheduler) peek() (scheduledCall, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return scheduledCall{}, false
	}
	return s.pending[0], true
}

func (s *manualScheduler) pendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

var errBoom = errors.New("boom")

// blockWithMean returns a block whose mean absolute amplitude is mean.
func blockWithMean(mean int16) []int16 {
	return []int16{mean, -mean, mean, -mean}
}
