package control

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/autovol/internal/level"
)

// State is a snapshot of the loop state.
type State struct {
	Running       bool
	CurrentVolume int
	MaxVolume     int
}

// TickResult describes what a single tick observed and did.
type TickResult struct {
	At      time.Time
	Score   float64 // Loudness score, 0 for empty blocks and read failures
	Samples int     // Number of samples read
	Current int     // Volume read from the sink before stepping
	Target  int     // Volume the mapper asked for
	Level   int     // Volume after stepping
	Applied bool    // Whether Level was written to the sink
	ReadErr error   // Source read failure, if any
	SinkErr error   // Sink read or write failure, if any
	Panic   any     // Recovered panic value, if the tick panicked
}

// Observer receives the result of every tick.
// It is called on the tick executor while the loop lock is held and must not
// call back into the Loop.
type Observer interface {
	ObserveTick(result TickResult)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(result TickResult)

// ObserveTick calls f(result).
func (f ObserverFunc) ObserveTick(result TickResult) {
	f(result)
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithObserver registers an observer for tick results.
func WithObserver(o Observer) Option {
	return func(l *Loop) {
		l.observer = o
	}
}

// WithClock overrides the time source used to stamp tick results.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
	}
}

// Loop is the noise-to-volume controller.
//
// It has two states, stopped and running. All state changes and tick bodies
// run under one mutex, so a tick never overlaps another tick, Start or Stop.
type Loop struct {
	params   Params
	source   SampleSource
	sink     VolumeSink
	sched    Scheduler
	observer Observer
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
	gen     uint64 // Incremented on every state change; stale ticks compare against it
	maxVol  int
	current int
}

// New creates a stopped Loop. It returns an error wrapping
// ErrInvalidConfiguration if params are invalid or a collaborator is missing.
func New(params Params, source SampleSource, sink VolumeSink, sched Scheduler, opts ...Option) (*Loop, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if source == nil || sink == nil || sched == nil {
		return nil, fmt.Errorf("%w: source, sink and scheduler are required", ErrInvalidConfiguration)
	}

	l := &Loop{
		params: params,
		source: source,
		sink:   sink,
		sched:  sched,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Params returns the loop parameters.
func (l *Loop) Params() Params {
	return l.params
}

// State returns a snapshot of the loop state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return State{Running: l.running, CurrentVolume: l.current, MaxVolume: l.maxVol}
}

// Start opens the sample source and schedules the first tick immediately.
// Starting a running loop is a no-op.
//
// If the source cannot be opened the error wraps ErrSourceUnavailable, and if
// the sink cannot report its maximum the error wraps ErrSinkUnavailable. In
// both cases the loop stays stopped and nothing is scheduled.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return nil
	}

	if err := l.source.Open(); err != nil {
		return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	maxVol, err := l.sink.Max()
	if err != nil {
		if cerr := l.source.Close(); cerr != nil {
			l.logger.Warn("failed to close sample source", "error", cerr)
		}
		return fmt.Errorf("%w: %w", ErrSinkUnavailable, err)
	}

	l.maxVol = max(maxVol, 0)
	l.running = true
	l.gen++

	gen := l.gen
	l.sched.ScheduleOnce(0, func() { l.tick(gen) })

	l.logger.Info("control loop started",
		"min_volume", l.params.MinVolume,
		"max_volume", l.params.MaxVolume,
		"low_threshold", l.params.LowThreshold,
		"high_threshold", l.params.HighThreshold,
		"interval", l.params.TickInterval,
		"max_system_volume", l.maxVol)
	return nil
}

// Stop cancels pending ticks and closes the sample source. It waits for a
// tick in progress to finish, and no tick runs after it returns.
// Stopping a stopped loop is a no-op.
func (l *Loop) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return nil
	}
	l.running = false
	l.gen++
	l.sched.CancelAll()

	if err := l.source.Close(); err != nil {
		l.logger.Warn("failed to close sample source", "error", err)
		return fmt.Errorf("failed to close sample source: %w", err)
	}

	l.logger.Info("control loop stopped")
	return nil
}

// tick runs one control step and schedules the next one.
func (l *Loop) tick(gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// A tick scheduled before the last Stop must not run
	if !l.running || gen != l.gen {
		return
	}

	result := l.runTick()

	if l.observer != nil {
		l.notify(result)
	}

	l.sched.ScheduleOnce(l.params.TickInterval, func() { l.tick(gen) })
}

// runTick samples, maps and actuates. Panics are recovered and reported as a
// zero-score tick.
func (l *Loop) runTick() (result TickResult) {
	result.At = l.now()

	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("control tick panicked", "panic", r)
			result = TickResult{At: result.At, Panic: r, Current: l.current, Level: l.current}
		}
	}()

	result.Score, result.Samples, result.ReadErr = l.sample()

	current, err := l.sink.Current()
	if err != nil {
		l.logger.Warn("failed to read current volume", "error", err)
		result.SinkErr = err
		result.Current, result.Level, result.Target = l.current, l.current, l.current
		return result
	}
	l.current = current

	result.Current = current
	result.Target = MapTarget(result.Score, l.params, l.maxVol)
	result.Level = Step(current, result.Target)

	if result.Level != current {
		if err := l.sink.SetCurrent(result.Level); err != nil {
			l.logger.Warn("failed to set volume", "level", result.Level, "error", err)
			result.SinkErr = err
			result.Level = current
			return result
		}
		l.current = result.Level
		result.Applied = true
	}

	l.logger.Debug("control tick",
		"score", result.Score,
		"samples", result.Samples,
		"current", result.Current,
		"target", result.Target,
		"volume", result.Level)
	return result
}

// sample reads one block and scores it. Read failures and panics inside the
// source score 0 so a single bad read never stops the loop.
func (l *Loop) sample() (score float64, n int, readErr error) {
	defer func() {
		if r := recover(); r != nil {
			readErr = fmt.Errorf("sample source panicked: %v", r)
			score, n = 0, 0
		}
	}()

	block, err := l.source.ReadBlock()
	if err != nil {
		l.logger.Debug("sample read failed, treating as silence", "error", err)
		return 0, 0, err
	}
	return level.Estimate(block), len(block), nil
}

// notify delivers a result to the observer, isolating the loop from observer panics.
func (l *Loop) notify(result TickResult) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("tick observer panicked", "panic", r)
		}
	}()
	l.observer.ObserveTick(result)
}
