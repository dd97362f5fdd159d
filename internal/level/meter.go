package level

import "sync"

// Meter keeps a short history of scores for status reporting.
// It only observes; the control path uses Estimate directly.
type Meter struct {
	mu     sync.Mutex
	window []float64
	next   int
	filled bool
	peak   float64
	last   float64
}

// NewMeter creates a meter averaging over the last size scores.
func NewMeter(size int) *Meter {
	if size < 1 {
		size = 1
	}
	return &Meter{window: make([]float64, size)}
}

// Observe records a score.
func (m *Meter) Observe(score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.window[m.next] = score
	m.next = (m.next + 1) % len(m.window)
	if m.next == 0 {
		m.filled = true
	}
	if score > m.peak {
		m.peak = score
	}
	m.last = score
}

// Reading is a point-in-time view of a Meter.
type Reading struct {
	Last    float64 `json:"last" yaml:"last"`
	Average float64 `json:"average" yaml:"average"`
	Peak    float64 `json:"peak" yaml:"peak"`
	Samples int     `json:"samples" yaml:"samples"`
}

// Reading returns the last, average and peak scores seen.
func (m *Meter) Reading() Reading {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.next
	if m.filled {
		n = len(m.window)
	}

	r := Reading{Last: m.last, Peak: m.peak, Samples: n}
	if n == 0 {
		return r
	}

	var sum float64
	for _, v := range m.window[:n] {
		sum += v
	}
	r.Average = sum / float64(n)
	return r
}

// Reset clears all recorded scores.
func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.window)
	m.next = 0
	m.filled = false
	m.peak = 0
	m.last = 0
}
