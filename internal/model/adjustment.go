// Package model defines the core data structures for autovol.
package model

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Directions of a volume change.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// Adjustment records one volume change applied by the control loop.
// This is the format stored in the history log.
type Adjustment struct {
	ID        string  `json:"id" yaml:"id"`
	RunID     string  `json:"run_id" yaml:"run_id"`
	Timestamp int64   `json:"timestamp_ms" yaml:"timestamp_ms"` // Unix milliseconds
	Score     float64 `json:"score" yaml:"score"`               // Loudness score that triggered the change
	From      int     `json:"from" yaml:"from"`
	To        int     `json:"to" yaml:"to"`
	Target    int     `json:"target" yaml:"target"` // Volume the mapper asked for
	Player    string  `json:"player,omitempty" yaml:"player,omitempty"`
}

// Validation errors.
var (
	ErrEmptyID          = errors.New("id cannot be empty")
	ErrEmptyRunID       = errors.New("run_id cannot be empty")
	ErrInvalidTimestamp = errors.New("timestamp must be greater than 0")
	ErrNoChange         = errors.New("from and to must differ")
	ErrInvalidStep      = errors.New("volume must change by exactly one step")
	ErrNegativeVolume   = errors.New("volume cannot be negative")
)

// NewID returns a new ULID string stamped with t.
func NewID(t time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(t), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate ULID: %w", err)
	}
	return id.String(), nil
}

// NewAdjustment creates an Adjustment with a generated ULID.
func NewAdjustment(runID string, at time.Time, score float64, from, to, target int) (*Adjustment, error) {
	id, err := NewID(at)
	if err != nil {
		return nil, err
	}

	return &Adjustment{
		ID:        id,
		RunID:     runID,
		Timestamp: at.UnixMilli(),
		Score:     score,
		From:      from,
		To:        to,
		Target:    target,
	}, nil
}

// Validate checks that the adjustment is well formed.
func (a *Adjustment) Validate() error {
	if a.ID == "" {
		return ErrEmptyID
	}
	if a.RunID == "" {
		return ErrEmptyRunID
	}
	if a.Timestamp <= 0 {
		return ErrInvalidTimestamp
	}
	if a.From < 0 || a.To < 0 || a.Target < 0 {
		return ErrNegativeVolume
	}
	if a.From == a.To {
		return ErrNoChange
	}
	if d := a.To - a.From; d != 1 && d != -1 {
		return ErrInvalidStep
	}
	return nil
}

// Direction returns DirectionUp or DirectionDown.
func (a *Adjustment) Direction() string {
	if a.To > a.From {
		return DirectionUp
	}
	return DirectionDown
}

// Time returns the timestamp as a time.Time.
func (a *Adjustment) Time() time.Time {
	return time.UnixMilli(a.Timestamp)
}

// ULIDTime extracts the creation time encoded in the ID.
func (a *Adjustment) ULIDTime() (time.Time, error) {
	id, err := ulid.ParseStrict(a.ID)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid id %q: %w", a.ID, err)
	}
	return ulid.Time(id.Time()), nil
}
