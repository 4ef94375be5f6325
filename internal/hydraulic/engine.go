// Package hydraulic defines the hydraulic engine contract and the built-in
// steady-state solver backing it. The monitor treats the engine as an opaque
// collaborator: it calls SolveComplete once per cycle and reads the value
// maps at the implicit current step.
package hydraulic

import (
	"errors"
	"fmt"
)

// ErrLoad wraps any failure to construct an engine from a network definition.
var ErrLoad = errors.New("hydraulic: load definition")

// Engine is a loaded hydraulic model of one network.
//
// An Engine instance is exclusively owned by the component that created it
// and is not safe for concurrent use. Close must run on all exit paths.
type Engine interface {
	// SolveComplete runs a full extended-period simulation over the
	// network's horizon. Afterwards the value maps are self-consistent
	// for the current step.
	SolveComplete() error

	// Pressures returns pressure by location for junctions and tanks.
	Pressures() map[string]float64
	// Flows returns flow by location for pipes.
	Flows() map[string]float64
	// TankLevels returns the current level by tank location. Tanks with
	// no known level are absent.
	TankLevels() map[string]float64
	// Elevations returns elevation by location where defined.
	Elevations() map[string]float64

	Junctions() []string
	Pipes() []string
	Tanks() []string

	// SetTankLevel overrides a tank's level, effective on the next
	// SolveComplete.
	SetTankLevel(locationID string, level float64) error

	// Close releases engine resources. Idempotent.
	Close() error
}

// Loader constructs an Engine from a raw network definition. Injectable so
// the monitor and baseline registry can be tested against a fake engine.
type Loader func(definition []byte) (Engine, error)

func loadErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrLoad, fmt.Sprintf(format, args...))
}
