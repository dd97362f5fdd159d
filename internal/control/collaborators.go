package control

import "time"

// SampleSource delivers blocks of mono PCM16 samples.
type SampleSource interface {
	// Open acquires the device. The Loop wraps any error in ErrSourceUnavailable.
	Open() error

	// ReadBlock returns the next block. An empty block means no data this tick
	// and is not an error.
	ReadBlock() ([]int16, error)

	// Close releases the device.
	Close() error
}

// VolumeSink is the output whose volume the Loop controls.
type VolumeSink interface {
	// Current returns the current volume level.
	Current() (int, error)

	// Max returns the highest volume level. It is read once per Start.
	Max() (int, error)

	// SetCurrent sets the volume level.
	SetCurrent(level int) error
}

// Scheduler runs callbacks after a delay.
//
// Implementations must run callbacks one at a time and never on the goroutine
// that called ScheduleOnce.
type Scheduler interface {
	ScheduleOnce(delay time.Duration, fn func())
	CancelAll()
}
