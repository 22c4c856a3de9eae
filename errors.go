package ringpipe

import "fmt"

var (
	// ErrInvalidCapacity is the error corresponding to wrong capacity.
	ErrInvalidCapacity = fmt.Errorf("capacity must be a positive power of two")

	// ErrInvalidClaimSize is returned when a claim can never be satisfied.
	ErrInvalidClaimSize = fmt.Errorf("claim size must be at least 1 and less than the capacity")

	// ErrInsufficientCapacity is returned by TryNext when the claim would
	// overwrite slots not yet consumed.
	ErrInsufficientCapacity = fmt.Errorf("insufficient capacity")

	// ErrDrained is returned by claims after Drain or Halt was called.
	ErrDrained = fmt.Errorf("ring buffer is drained")

	// ErrAlreadyRunning is returned when an EventProcessor is run twice.
	ErrAlreadyRunning = fmt.Errorf("event processor is already running")

	// ErrMissingStage is the error corresponding to missing stage(s).
	ErrMissingStage = fmt.Errorf("missing stage(s)")

	// ErrEmptyStage is the error corresponding to an empty stage.
	ErrEmptyStage = fmt.Errorf("stage is empty")
)

func validateCapacity(capacity int64) error {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return fmt.Errorf("%w, got %d", ErrInvalidCapacity, capacity)
	}
	return nil
}
