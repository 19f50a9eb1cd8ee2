package canon

import (
	"context"
)

// The map and reduce stages are executed by an external engine as
// independent workers with no shared memory. The contracts below are the
// seam: the engine hands each map worker one input path and an Emitter, and
// each reduce worker one key with a stream of every value emitted for it.
// Map workers share nothing but the frozen batch assignment baked into the
// Map closure; reduce workers never observe another worker's key.

// Emitter receives keyed values from the map stage. Implementations must be
// safe for concurrent use by multiple map workers.
type Emitter interface {
	Emit(key BatchKey, value []byte) error
}

// Job describes one run's map/reduce work.
type Job struct {
	// Inputs are the file paths to map, one map unit per path.
	Inputs []string
	// Map processes a single input, emitting keyed values.
	Map func(ctx context.Context, input string, em Emitter) error
	// Reduce consumes every value emitted for key. The values channel is
	// closed when the key is exhausted. Order within a key carries no
	// meaning.
	Reduce func(ctx context.Context, key BatchKey, values <-chan []byte) error
}

// Runner executes a Job to completion. A Runner reports overall success or
// failure only; retry and timeout policy belongs to the engine behind it.
type Runner interface {
	Run(ctx context.Context, job *Job) error
}
