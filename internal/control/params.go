package control

import (
	"fmt"
	"time"
)

// Default control parameters, tuned for a car cabin: quiet when parked,
// loud when driving.
const (
	DefaultMinVolume     = 5
	DefaultMaxVolume     = 15
	DefaultLowThreshold  = 50.0
	DefaultHighThreshold = 70.0
	DefaultTickInterval  = 5 * time.Second
)

// Params configures the control loop. Values are fixed for the lifetime of a Loop.
type Params struct {
	MinVolume     int           // Target when the score is below LowThreshold
	MaxVolume     int           // Target when the score is above HighThreshold
	LowThreshold  float64       // Score at which interpolation starts
	HighThreshold float64       // Score at which interpolation ends
	TickInterval  time.Duration // Delay between the end of one tick and the start of the next
}

// DefaultParams returns the default control parameters.
func DefaultParams() Params {
	return Params{
		MinVolume:     DefaultMinVolume,
		MaxVolume:     DefaultMaxVolume,
		LowThreshold:  DefaultLowThreshold,
		HighThreshold: DefaultHighThreshold,
		TickInterval:  DefaultTickInterval,
	}
}

// Validate checks the parameter invariants. Errors wrap ErrInvalidConfiguration.
func (p Params) Validate() error {
	if p.MinVolume < 0 {
		return fmt.Errorf("%w: min volume must not be negative, got %d", ErrInvalidConfiguration, p.MinVolume)
	}
	if p.MinVolume > p.MaxVolume {
		return fmt.Errorf("%w: min volume %d is greater than max volume %d",
			ErrInvalidConfiguration, p.MinVolume, p.MaxVolume)
	}
	if !(p.LowThreshold < p.HighThreshold) {
		return fmt.Errorf("%w: low threshold %.2f must be below high threshold %.2f",
			ErrInvalidConfiguration, p.LowThreshold, p.HighThreshold)
	}
	if p.TickInterval <= 0 {
		return fmt.Errorf("%w: tick interval must be positive, got %s", ErrInvalidConfiguration, p.TickInterval)
	}
	return nil
}
