// Package mixer provides an in-process volume sink for dry runs, offline
// simulation and tests.
package mixer

import (
	"fmt"
	"sync"
)

// Memory is a control.VolumeSink that keeps the volume in memory.
type Memory struct {
	mu      sync.Mutex
	current int
	max     int
	writes  []int
	onSet   func(level int)
}

// NewMemory creates a sink with levels 0..maxLevel starting at initial.
// The initial level is clamped into range.
func NewMemory(maxLevel, initial int) *Memory {
	maxLevel = max(maxLevel, 0)
	return &Memory{
		max:     maxLevel,
		current: min(max(initial, 0), maxLevel),
	}
}

// OnSet registers a callback invoked after every successful SetCurrent.
func (m *Memory) OnSet(fn func(level int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSet = fn
}

// Current returns the current level.
func (m *Memory) Current() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, nil
}

// Max returns the highest level.
func (m *Memory) Max() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.max, nil
}

// SetCurrent sets the level. Levels outside 0..Max are rejected.
func (m *Memory) SetCurrent(level int) error {
	m.mu.Lock()
	if level < 0 || level > m.max {
		m.mu.Unlock()
		return fmt.Errorf("volume %d out of range 0..%d", level, m.max)
	}
	m.current = level
	m.writes = append(m.writes, level)
	fn := m.onSet
	m.mu.Unlock()

	if fn != nil {
		fn(level)
	}
	return nil
}

// Writes returns every level written so far, in order.
func (m *Memory) Writes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.writes))
	copy(out, m.writes)
	return out
}
