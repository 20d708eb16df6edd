package sim

import "errors"

var (
	// ErrNotReady is returned by Step, Render, Restart and SyncParameters
	// before a successful Setup or after Close.
	ErrNotReady = errors.New("sim: engine not set up")

	// ErrAlreadySetUp is returned by a second call to Setup.
	ErrAlreadySetUp = errors.New("sim: engine already set up")

	// ErrUnknownParameter is returned by setters for names outside the
	// parameter table.
	ErrUnknownParameter = errors.New("sim: unknown parameter")

	// ErrInvalidValue is returned by setters for NaN, infinite or
	// out-of-range values, or a value of the wrong kind.
	ErrInvalidValue = errors.New("sim: invalid parameter value")
)
