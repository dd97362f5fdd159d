package daemon

import (
	"log/slog"
	"sync"

	"github.com/jmylchreest/autovol/internal/store"
)

// recorderQueue is how many post-tick jobs may wait before new ones are dropped.
const recorderQueue = 256

// recorder runs the disk and bus writes that follow a tick on its own
// goroutine. Ticks run with the loop lock held, so anything slow done there
// would also delay Stop and pause.
//
// Jobs run in the order they were queued. Status writes are coalesced: the
// snapshot is taken when the write happens, so only the latest state lands.
type recorder struct {
	logger *slog.Logger
	status func() store.Status

	jobs    chan func()
	dirty   chan struct{}
	flushes chan chan struct{}
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newRecorder(status func() store.Status, queue int, logger *slog.Logger) *recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &recorder{
		logger:  logger,
		status:  status,
		jobs:    make(chan func(), max(queue, 1)),
		dirty:   make(chan struct{}, 1),
		flushes: make(chan chan struct{}),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// enqueue queues fn. It reports false if the recorder is closed or the
// queue is full.
func (r *recorder) enqueue(fn func()) bool {
	select {
	case <-r.quit:
		return false
	default:
	}

	select {
	case r.jobs <- fn:
		return true
	default:
		return false
	}
}

// markDirty requests a status file write.
func (r *recorder) markDirty() {
	select {
	case r.dirty <- struct{}{}:
	default:
	}
}

// flush returns once everything queued before the call has been written.
func (r *recorder) flush() {
	ack := make(chan struct{})
	select {
	case r.flushes <- ack:
		<-ack
	case <-r.done:
	}
}

// close writes what is still queued and stops the goroutine. Safe to call
// more than once.
func (r *recorder) close() {
	r.once.Do(func() { close(r.quit) })
	<-r.done
}

func (r *recorder) run() {
	defer close(r.done)

	for {
		select {
		case fn := <-r.jobs:
			fn()
		case <-r.dirty:
			r.writeStatus()
		case ack := <-r.flushes:
			r.drain()
			close(ack)
		case <-r.quit:
			r.drain()
			return
		}
	}
}

// drain runs every queued job, then writes the status if one was requested.
func (r *recorder) drain() {
	for len(r.jobs) > 0 {
		(<-r.jobs)()
	}

	select {
	case <-r.dirty:
		r.writeStatus()
	default:
	}
}

func (r *recorder) writeStatus() {
	st := r.status()
	if err := store.SaveStatus(&st); err != nil {
		r.logger.Debug("failed to write status file", "error", err)
	}
}
