package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmylchreest/autovol/internal/control"
	"github.com/jmylchreest/autovol/internal/level"
	"github.com/jmylchreest/autovol/internal/mixer"
)

// simTick is one control tick of a simulation.
type simTick struct {
	Tick      int     `json:"tick" yaml:"tick"`
	Offset    float64 `json:"offset_s" yaml:"offset_s"` // Position in the recording
	Samples   int     `json:"samples" yaml:"samples"`
	Score     float64 `json:"score" yaml:"score"`
	Average   float64 `json:"average" yaml:"average"`
	Target    int     `json:"target" yaml:"target"`
	Volume    int     `json:"volume" yaml:"volume"`
	Applied   bool    `json:"applied" yaml:"applied"`
	ReadError string  `json:"read_error,omitempty" yaml:"read_error,omitempty"`
}

// simSummary aggregates a simulation.
type simSummary struct {
	Ticks       int     `json:"ticks" yaml:"ticks"`
	Adjustments int     `json:"adjustments" yaml:"adjustments"`
	StartVolume int     `json:"start_volume" yaml:"start_volume"`
	EndVolume   int     `json:"end_volume" yaml:"end_volume"`
	MinVolume   int     `json:"min_volume" yaml:"min_volume"`
	MaxVolume   int     `json:"max_volume" yaml:"max_volume"`
	MeanScore   float64 `json:"mean_score" yaml:"mean_score"`
	PeakScore   float64 `json:"peak_score" yaml:"peak_score"`
	Duration    float64 `json:"duration_s" yaml:"duration_s"`
}

// simResult is the full output of a simulation.
type simResult struct {
	Params  simParams  `json:"params" yaml:"params"`
	Ticks   []simTick  `json:"ticks" yaml:"ticks"`
	Summary simSummary `json:"summary" yaml:"summary"`
}

type simParams struct {
	MinVolume     int     `json:"min_volume" yaml:"min_volume"`
	MaxVolume     int     `json:"max_volume" yaml:"max_volume"`
	LowThreshold  float64 `json:"low_threshold" yaml:"low_threshold"`
	HighThreshold float64 `json:"high_threshold" yaml:"high_threshold"`
	Steps         int     `json:"steps" yaml:"steps"`
	SampleRate    int     `json:"sample_rate" yaml:"sample_rate"`
}

// simConfig configures runSimulation.
type simConfig struct {
	Params     control.Params
	SampleRate int
	Steps      int // Simulated sink maximum
	Start      int // Simulated sink starting volume
	MaxTicks   int // 0 = until the source ends
	Window     int // Ticks averaged for the rolling score
}

// lookahead reads one block ahead so the simulation stops after the last
// block instead of running a silent tick at end of input.
type lookahead struct {
	control.SampleSource
	next      []int16
	nextErr   error
	exhausted bool
}

func (l *lookahead) Open() error {
	if err := l.SampleSource.Open(); err != nil {
		return err
	}
	l.advance()
	return nil
}

func (l *lookahead) ReadBlock() ([]int16, error) {
	block, err := l.next, l.nextErr
	l.advance()
	return block, err
}

// advance reads the next block. A read error is delivered to one tick and
// then ends the input.
func (l *lookahead) advance() {
	if l.nextErr != nil {
		l.next, l.nextErr, l.exhausted = nil, io.EOF, true
		return
	}
	l.next, l.nextErr = l.SampleSource.ReadBlock()
	if errors.Is(l.nextErr, io.EOF) {
		l.exhausted = true
	}
}

// runSimulation replays source through a control loop on a virtual clock
// against an in-memory sink.
func runSimulation(source control.SampleSource, cfg simConfig, logger *slog.Logger) (*simResult, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.Start < 0 || cfg.Start > cfg.Steps {
		return nil, fmt.Errorf("start volume must be between 0 and %d, got %d", cfg.Steps, cfg.Start)
	}

	sched := control.NewVirtualScheduler(time.Unix(0, 0).UTC())
	sink := mixer.NewMemory(cfg.Steps, cfg.Start)
	meter := level.NewMeter(cfg.Window)
	src := &lookahead{SampleSource: source}

	result := &simResult{
		Params: simParams{
			MinVolume:     cfg.Params.MinVolume,
			MaxVolume:     cfg.Params.MaxVolume,
			LowThreshold:  cfg.Params.LowThreshold,
			HighThreshold: cfg.Params.HighThreshold,
			Steps:         cfg.Steps,
			SampleRate:    cfg.SampleRate,
		},
		Ticks: make([]simTick, 0),
	}

	var consumed int
	observer := control.ObserverFunc(func(r control.TickResult) {
		meter.Observe(r.Score)

		tick := simTick{
			Tick:    len(result.Ticks) + 1,
			Offset:  float64(consumed) / float64(cfg.SampleRate),
			Samples: r.Samples,
			Score:   r.Score,
			Average: meter.Reading().Average,
			Target:  r.Target,
			Volume:  r.Level,
			Applied: r.Applied,
		}
		if r.ReadErr != nil {
			tick.ReadError = r.ReadErr.Error()
		}
		consumed += r.Samples
		result.Ticks = append(result.Ticks, tick)
	})

	loop, err := control.New(cfg.Params, src, sink, sched,
		control.WithClock(sched.Now),
		control.WithObserver(observer),
		control.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := loop.Start(); err != nil {
		return nil, err
	}

	for !src.exhausted {
		if cfg.MaxTicks > 0 && len(result.Ticks) >= cfg.MaxTicks {
			break
		}
		if !sched.Advance() {
			break
		}
	}
	if err := loop.Stop(); err != nil {
		logger.Warn("failed to close sample source", "error", err)
	}

	result.Summary = summarizeSimulation(result.Ticks, cfg.Start, consumed, cfg.SampleRate)
	return result, nil
}

func summarizeSimulation(ticks []simTick, start, consumed, sampleRate int) simSummary {
	s := simSummary{
		Ticks:       len(ticks),
		StartVolume: start,
		EndVolume:   start,
		MinVolume:   start,
		MaxVolume:   start,
		Duration:    float64(consumed) / float64(sampleRate),
	}

	var total float64
	for _, t := range ticks {
		if t.Applied {
			s.Adjustments++
		}
		total += t.Score
		s.PeakScore = max(s.PeakScore, t.Score)
		s.MinVolume = min(s.MinVolume, t.Volume)
		s.MaxVolume = max(s.MaxVolume, t.Volume)
		s.EndVolume = t.Volume
	}
	if len(ticks) > 0 {
		s.MeanScore = total / float64(len(ticks))
	}
	return s
}
