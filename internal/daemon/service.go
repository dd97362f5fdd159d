package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/autovol/internal/audio"
	"github.com/jmylchreest/autovol/internal/config"
	"github.com/jmylchreest/autovol/internal/control"
	"github.com/jmylchreest/autovol/internal/dbus"
	"github.com/jmylchreest/autovol/internal/level"
	"github.com/jmylchreest/autovol/internal/mixer"
	"github.com/jmylchreest/autovol/internal/model"
	"github.com/jmylchreest/autovol/internal/observe"
	"github.com/jmylchreest/autovol/internal/store"
)

// Pause sources recorded in the shared state.
const (
	SourceDaemon    = "autovold"
	SourceDBus      = "dbus"
	SourceStateFile = "state"
)

// DefaultRetryInterval is how often Supervise retries a loop that failed to start.
const DefaultRetryInterval = 30 * time.Second

// meterWindow is the number of ticks averaged for status reporting.
const meterWindow = 12

// Notifier announces daemon changes, normally over D-Bus.
type Notifier interface {
	EmitPausedChanged(paused bool) error
	EmitVolumeChanged(volume, target int) error
}

// SourceFactory builds the sample source for a source section.
type SourceFactory func(cfg config.SourceConfig, logger *slog.Logger) (control.SampleSource, error)

// SinkFactory builds the volume sink for a sink section.
type SinkFactory func(cfg config.SinkConfig, logger *slog.Logger) (control.VolumeSink, error)

// Service owns the control loop and everything that observes it.
//
// Pausing stops the loop, which releases the microphone. Lifecycle calls are
// serialized by mu. Tick observation only takes statsMu, so a tick in
// progress never waits on a lifecycle call that is waiting on the tick.
// History, status file and announcements are written by rec, off the tick.
// Lock order is mu then statsMu.
type Service struct {
	logger  *slog.Logger
	rec     *recorder
	sched   *control.TimerScheduler
	meter   *level.Meter
	paused  atomic.Bool
	now     func() time.Time
	sources SourceFactory
	sinks   SinkFactory

	mu     sync.Mutex
	cfg    *config.DaemonConfig
	loop   *control.Loop
	source control.SampleSource
	sink   control.VolumeSink
	closed bool

	statsMu    sync.Mutex
	history    *store.History
	metrics    *observe.Metrics
	notifier   Notifier
	maxEntries int
	player     func() string
	running    bool
	runID      string
	startedAt  time.Time
	ticks      uint64
	adjusts    uint64
	last       control.TickResult
	maxVolume  int
	lastErr    string
}

// NewService creates a stopped Service for cfg.
func NewService(cfg *config.DaemonConfig, logger *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", control.ErrInvalidConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		logger:     logger,
		cfg:        cfg,
		sched:      control.NewTimerScheduler(),
		meter:      level.NewMeter(meterWindow),
		now:        time.Now,
		sources:    DefaultSource,
		sinks:      DefaultSink,
		maxEntries: cfg.History.MaxEntries,
	}
	s.rec = newRecorder(s.Status, recorderQueue, logger)
	return s, nil
}

// SetHistory sets the store that applied adjustments are recorded in.
func (s *Service) SetHistory(history *store.History) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.history = history
}

// SetMetrics sets the metric instruments updated on every tick.
func (s *Service) SetMetrics(metrics *observe.Metrics) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.metrics = metrics
}

// SetNotifier sets where pause and volume changes are announced.
func (s *Service) SetNotifier(n Notifier) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.notifier = n
}

// SetSourceFactory overrides how sample sources are built.
func (s *Service) SetSourceFactory(f SourceFactory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = f
	s.source = nil
}

// SetSinkFactory overrides how volume sinks are built.
func (s *Service) SetSinkFactory(f SinkFactory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = f
	s.sink = nil
}

// Config returns the active configuration.
func (s *Service) Config() *config.DaemonConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Paused reports whether the user paused the daemon.
func (s *Service) Paused() bool {
	return s.paused.Load()
}

// Running reports whether the control loop is running.
func (s *Service) Running() bool {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.running
}

// Start restores the pause state from disk and starts the loop unless paused.
func (s *Service) Start() error {
	state, err := store.LoadSharedState()
	if err != nil {
		s.logger.Warn("failed to load shared state", "error", err)
		state = store.DefaultSharedState()
	}
	s.paused.Store(state.Paused)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServiceClosed
	}
	if state.Paused {
		s.logger.Info("starting paused")
		s.writeStatus()
		return nil
	}
	return s.startLocked()
}

// Stop stops the loop. The pause state is left untouched.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

// Close stops the loop and the scheduler, then waits for pending history and
// status writes. The Service cannot be restarted.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	err := s.stopLocked()
	s.closed = true
	s.sched.Close()
	s.rec.close()
	return err
}

// SetPaused pauses or resumes the loop. The new state is persisted unless it
// came from the state file itself.
func (s *Service) SetPaused(paused bool, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServiceClosed
	}

	changed := s.paused.Swap(paused) != paused
	if changed {
		s.logger.Info("pause state changed", "paused", paused, "source", source)
	}

	if source != SourceStateFile && changed {
		if err := persistPaused(paused, source); err != nil {
			s.logger.Warn("failed to persist pause state", "error", err)
		}
	}

	var err error
	if paused {
		err = s.stopLocked()
	} else {
		err = s.startLocked()
	}

	s.statsMu.Lock()
	notifier := s.notifier
	s.statsMu.Unlock()

	if changed && notifier != nil {
		if nerr := notifier.EmitPausedChanged(paused); nerr != nil {
			s.logger.Debug("failed to announce pause state", "error", nerr)
		}
	}
	return err
}

// UpdateParams replaces the control parameters, restarting the loop if it
// was running.
func (s *Service) UpdateParams(p control.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	cfg := *s.cfg
	s.mu.Unlock()

	cfg.Control = config.ControlConfig{
		MinVolume:     p.MinVolume,
		MaxVolume:     p.MaxVolume,
		LowThreshold:  p.LowThreshold,
		HighThreshold: p.HighThreshold,
		Interval:      config.Duration(p.TickInterval),
	}
	return s.Reload(&cfg)
}

// Reload applies a new configuration. Sources and sinks are rebuilt when
// their sections changed, and the loop is restarted unless paused.
func (s *Service) Reload(cfg *config.DaemonConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServiceClosed
	}

	if err := s.stopLocked(); err != nil {
		s.logger.Warn("failed to stop loop for reload", "error", err)
	}

	if cfg.Source != s.cfg.Source {
		s.source = nil
	}
	if cfg.Sink != s.cfg.Sink {
		s.sink = nil
	}
	s.cfg = cfg

	s.statsMu.Lock()
	s.maxEntries = cfg.History.MaxEntries
	s.statsMu.Unlock()

	s.logger.Info("configuration applied",
		"min_volume", cfg.Control.MinVolume,
		"max_volume", cfg.Control.MaxVolume,
		"low_threshold", cfg.Control.LowThreshold,
		"high_threshold", cfg.Control.HighThreshold,
		"interval", cfg.Control.Interval.Duration())

	if s.paused.Load() {
		return nil
	}
	return s.startLocked()
}

// Supervise retries starting the loop every interval while it should be
// running but is not, until ctx is done.
func (s *Service) Supervise(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.ensureRunning(); err != nil {
				s.logger.Debug("control loop still unavailable", "error", err)
			}
		}
	}
}

// ensureRunning starts the loop if it is neither running nor paused.
func (s *Service) ensureRunning() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.paused.Load() || s.loop != nil {
		return nil
	}
	return s.startLocked()
}

// startLocked builds and starts a loop. Must be called with mu held.
func (s *Service) startLocked() error {
	if s.loop != nil {
		return nil
	}

	if s.source == nil {
		source, err := s.sources(s.cfg.Source, s.logger)
		if err != nil {
			return s.startFailed(fmt.Errorf("%w: %w", control.ErrSourceUnavailable, err))
		}
		s.source = source
	}
	if s.sink == nil {
		sink, err := s.sinks(s.cfg.Sink, s.logger)
		if err != nil {
			return s.startFailed(fmt.Errorf("%w: %w", control.ErrSinkUnavailable, err))
		}
		s.sink = sink
	}

	loop, err := control.New(s.cfg.Params(), s.source, s.sink, s.sched,
		control.WithLogger(s.logger),
		control.WithObserver(s),
		control.WithClock(s.now))
	if err != nil {
		return s.startFailed(err)
	}

	runID, err := model.NewID(s.now())
	if err != nil {
		return s.startFailed(fmt.Errorf("failed to generate run ID: %w", err))
	}

	s.statsMu.Lock()
	s.running = true
	s.runID = runID
	s.startedAt = s.now()
	s.ticks, s.adjusts = 0, 0
	s.last = control.TickResult{}
	s.lastErr = ""
	s.statsMu.Unlock()
	s.meter.Reset()

	if err := loop.Start(); err != nil {
		s.statsMu.Lock()
		s.running = false
		s.statsMu.Unlock()
		return s.startFailed(err)
	}

	s.loop = loop
	s.statsMu.Lock()
	s.maxVolume = loop.State().MaxVolume
	s.player = nil
	if p, ok := s.sink.(interface{ Player() string }); ok {
		s.player = p.Player
	}
	s.statsMu.Unlock()

	s.logger.Info("autovol running", "run_id", runID)
	s.writeStatus()
	return nil
}

func (s *Service) startFailed(err error) error {
	s.logger.Warn("failed to start control loop", "error", err)
	s.statsMu.Lock()
	s.lastErr = err.Error()
	s.statsMu.Unlock()
	s.writeStatus()
	return err
}

// stopLocked stops the loop if one is running. Must be called with mu held.
func (s *Service) stopLocked() error {
	if s.loop == nil {
		return nil
	}
	loop := s.loop
	s.loop = nil

	err := loop.Stop()

	s.statsMu.Lock()
	s.running = false
	s.statsMu.Unlock()

	s.writeStatus()
	return err
}

// ObserveTick implements control.Observer. It runs on the tick executor with
// the loop lock held, so it only updates memory and metrics and hands the
// writes to the recorder.
func (s *Service) ObserveTick(r control.TickResult) {
	s.meter.Observe(r.Score)

	s.statsMu.Lock()
	s.ticks++
	if r.Applied {
		s.adjusts++
	}
	s.last = r
	switch {
	case r.SinkErr != nil:
		s.lastErr = r.SinkErr.Error()
	case r.ReadErr != nil:
		s.lastErr = r.ReadErr.Error()
	case r.Panic != nil:
		s.lastErr = fmt.Sprintf("tick panicked: %v", r.Panic)
	default:
		s.lastErr = ""
	}
	runID := s.runID
	metrics, history, notifier, maxEntries := s.metrics, s.history, s.notifier, s.maxEntries
	s.statsMu.Unlock()

	if metrics != nil {
		metrics.RecordTick(context.Background(), r)
	}

	if r.Applied && (history != nil || notifier != nil) {
		queued := s.rec.enqueue(func() {
			if history != nil {
				s.recordAdjustment(history, runID, r, maxEntries)
			}
			if notifier != nil {
				if err := notifier.EmitVolumeChanged(r.Level, r.Target); err != nil {
					s.logger.Debug("failed to announce volume change", "error", err)
				}
			}
		})
		if !queued {
			s.logger.Warn("adjustment not recorded, writer queue full", "from", r.Current, "to", r.Level)
		}
	}

	s.writeStatus()
}

func (s *Service) recordAdjustment(history *store.History, runID string, r control.TickResult, maxEntries int) {
	adj, err := model.NewAdjustment(runID, r.At, r.Score, r.Current, r.Level, r.Target)
	if err != nil {
		s.logger.Warn("failed to build adjustment", "error", err)
		return
	}
	if err := history.Add(*adj); err != nil {
		s.logger.Warn("failed to record adjustment", "error", err)
		return
	}
	if maxEntries > 0 && history.Count() > maxEntries {
		if _, err := history.Prune(0, maxEntries); err != nil {
			s.logger.Warn("failed to prune history", "error", err)
		}
	}
}

// Status returns the daemon status as written to the status file.
func (s *Service) Status() store.Status {
	reading := s.meter.Reading()

	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	st := store.Status{
		Running:       s.running,
		Paused:        s.paused.Load(),
		RunID:         s.runID,
		PID:           os.Getpid(),
		Score:         s.last.Score,
		AverageScore:  reading.Average,
		PeakScore:     reading.Peak,
		CurrentVolume: s.last.Level,
		TargetVolume:  s.last.Target,
		MaxVolume:     s.maxVolume,
		Ticks:         s.ticks,
		Adjustments:   s.adjusts,
		LastError:     s.lastErr,
		UpdatedAt:     s.now().Unix(),
	}
	if !s.startedAt.IsZero() {
		st.StartedAt = s.startedAt.Unix()
	}
	if s.player != nil {
		st.Player = s.player()
	}
	return st
}

// Snapshot implements dbus.Controller.
func (s *Service) Snapshot() dbus.Snapshot {
	st := s.Status()
	return dbus.Snapshot{
		Running: st.Running,
		Paused:  st.Paused,
		Score:   st.Score,
		Current: st.CurrentVolume,
		Target:  st.TargetVolume,
	}
}

// writeStatus schedules a status file write with the state current at the
// time of writing.
func (s *Service) writeStatus() {
	s.rec.markDirty()
}

func persistPaused(paused bool, source string) error {
	state, err := store.LoadSharedState()
	if err != nil {
		state = store.DefaultSharedState()
	}
	reason := "resume"
	if paused {
		reason = "pause"
	}
	state.SetPaused(paused, store.TriggerUser, reason, source)
	return store.SaveSharedState(state)
}

// DefaultSource builds the capture or file source named by cfg.Backend.
func DefaultSource(cfg config.SourceConfig, logger *slog.Logger) (control.SampleSource, error) {
	switch cfg.Backend {
	case config.SourceCapture:
		return audio.NewCapture(audio.CaptureConfig{
			SampleRate: cfg.SampleRate,
			BlockSize:  cfg.BlockSize,
			Device:     cfg.Device,
		}, logger), nil
	case config.SourceFile:
		return audio.NewFileSource(audio.FileSourceConfig{
			Path:       config.ExpandPath(cfg.File),
			SampleRate: cfg.SampleRate,
			BlockSize:  cfg.BlockSize,
			Loop:       cfg.Loop,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown source backend %q", cfg.Backend)
	}
}

// DefaultSink builds the MPRIS or in-memory sink named by cfg.Backend.
func DefaultSink(cfg config.SinkConfig, logger *slog.Logger) (control.VolumeSink, error) {
	switch cfg.Backend {
	case config.SinkMPRIS:
		return dbus.NewMPRISSink(cfg.Player, cfg.Steps, logger)
	case config.SinkMemory:
		return mixer.NewMemory(cfg.Steps, cfg.Initial), nil
	default:
		return nil, fmt.Errorf("unknown sink backend %q", cfg.Backend)
	}
}

// ErrServiceClosed is returned by calls on a closed Service.
var ErrServiceClosed = errors.New("service closed")
