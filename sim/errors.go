// Package sim is the engine facade: it owns the agent store, dispatches
// ticks to the selected steering algorithm, and exposes the host-facing
// reader/mutator API with zero-copy views.
package sim

import "errors"

// Control-plane errors. Tick never fails; all of these surface
// synchronously from constructors and setters, which validate before
// mutating.
var (
	// ErrUnknownID reports a model or algorithm id missing from the catalog.
	ErrUnknownID = errors.New("sim: unknown id")
	// ErrIncompatibleAlgorithm reports an algorithm not permitted for the
	// current model.
	ErrIncompatibleAlgorithm = errors.New("sim: incompatible algorithm")
	// ErrInvalidParameter reports a setter value violating a range or
	// shape invariant. Prior state is left intact.
	ErrInvalidParameter = errors.New("sim: invalid parameter")
	// ErrInvalidConfig reports a malformed cluster spec.
	ErrInvalidConfig = errors.New("sim: invalid config")
)
