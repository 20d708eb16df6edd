package gpu

import (
	"errors"
	"fmt"
)

// Device errors.
var (
	// ErrCompile is matched by every *CompileError.
	ErrCompile = errors.New("gpu: kernel compilation failed")

	// ErrOutOfMemory is returned when the device rejects an allocation.
	ErrOutOfMemory = errors.New("gpu: out of device memory")

	// ErrUnknownUniform is returned when a kernel has no active uniform of
	// the given name and type.
	ErrUnknownUniform = errors.New("gpu: unknown uniform")

	// ErrUnboundResource is returned when a dispatch references a binding
	// point with nothing attached.
	ErrUnboundResource = errors.New("gpu: binding point has no resource attached")

	// ErrMissingBarrier is returned by devices that track hazards when a
	// resource written by an earlier dispatch is read without an
	// intervening Barrier.
	ErrMissingBarrier = errors.New("gpu: resource read before memory barrier")

	// ErrInvalidDispatch is returned for zero or negative group counts.
	ErrInvalidDispatch = errors.New("gpu: invalid dispatch size")

	// ErrReleased is returned when a released kernel or destroyed resource is used.
	ErrReleased = errors.New("gpu: use of released resource")

	// ErrBackendNotAvailable is returned by Open when no backend matches.
	ErrBackendNotAvailable = errors.New("gpu: backend not available")
)

// CompileError carries the diagnostics of a failed compile or link step.
type CompileError struct {
	Kernel string
	Stage  string // "compile" or "link"
	Log    string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("gpu: %s of kernel %q failed: %s", e.Stage, e.Kernel, e.Log)
}

// Is reports whether target is ErrCompile.
func (e *CompileError) Is(target error) bool {
	return target == ErrCompile
}
