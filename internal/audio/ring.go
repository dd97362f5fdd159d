package audio

import "sync"

// RingBuffer is a thread-safe circular buffer of int16 samples.
// When full, writes overwrite the oldest samples so readers always see the
// most recent audio.
type RingBuffer struct {
	mu       sync.Mutex
	buffer   []int16
	writePos int
	count    int // Number of samples currently in buffer
}

// NewRingBuffer creates a ring buffer with the given capacity in samples.
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{
		buffer: make([]int16, max(capacity, 1)),
	}
}

// Write appends samples, dropping the oldest ones on overflow.
func (rb *RingBuffer) Write(samples []int16) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	size := len(rb.buffer)
	if len(samples) > size {
		samples = samples[len(samples)-size:]
	}
	for _, s := range samples {
		rb.buffer[rb.writePos] = s
		rb.writePos = (rb.writePos + 1) % size
	}
	rb.count = min(rb.count+len(samples), size)
}

// ReadLatest returns up to n of the most recent samples, oldest first, and
// empties the buffer.
func (rb *RingBuffer) ReadLatest(n int) []int16 {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n = min(n, rb.count)
	if n <= 0 {
		return nil
	}

	size := len(rb.buffer)
	out := make([]int16, n)
	start := (rb.writePos - n + size) % size
	for i := range out {
		out[i] = rb.buffer[(start+i)%size]
	}
	rb.count = 0
	return out
}

// Reset discards all buffered samples.
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.count = 0
	rb.writePos = 0
}
