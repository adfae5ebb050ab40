package model

import "errors"

// Error taxonomy for the planning and execution pipeline. Callers match
// with errors.Is; all four are fatal to the run, none is retried.
var (
	// ErrConfig marks malformed or inconsistent experiment configuration,
	// detected before any planning starts.
	ErrConfig = errors.New("invalid experiment configuration")

	// ErrCapacity marks plate-geometry violations: too many iterations for
	// the column budget, or a chamber that maps outside the plate bank.
	ErrCapacity = errors.New("plate capacity exceeded")

	// ErrVolume marks a planned transfer that would underflow or overflow
	// a chamber or stock well. Raised during plan simulation, never during
	// execution.
	ErrVolume = errors.New("chamber volume out of bounds")

	// ErrDriverFault marks an unrecoverable fault reported by the robot
	// driver mid-dispatch. Execution halts; liquid state is not rewindable.
	ErrDriverFault = errors.New("robot driver fault")
)
