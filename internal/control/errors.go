package control

import "errors"

var (
	// ErrInvalidConfiguration is returned when Params violate their invariants.
	ErrInvalidConfiguration = errors.New("invalid control configuration")

	// ErrSourceUnavailable is returned by Start when the sample source cannot be opened.
	ErrSourceUnavailable = errors.New("sample source unavailable")

	// ErrSinkUnavailable is returned by Start when the volume sink cannot report its range.
	ErrSinkUnavailable = errors.New("volume sink unavailable")
)
