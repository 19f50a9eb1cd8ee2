package canon

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// LocalRunner executes a Job in-process. It stands in for a distributed
// execution engine: map workers fan out over the inputs, emissions are
// shuffled into per-key groups, then reduce workers fan out over the keys.
// The shuffle holds all emitted values in memory, which is fine for a single
// machine; a cluster engine would spill instead.
type LocalRunner struct {
	MapConcurrency    int
	ReduceConcurrency int
}

// NewLocalRunner returns a LocalRunner with default concurrency.
func NewLocalRunner() *LocalRunner {
	return &LocalRunner{MapConcurrency: 8, ReduceConcurrency: 4}
}

// shuffleEmitter collects map emissions grouped by key. Safe for concurrent
// use by map workers.
type shuffleEmitter struct {
	mu     sync.Mutex
	groups map[BatchKey][][]byte
}

func (se *shuffleEmitter) Emit(key BatchKey, value []byte) error {
	// Map workers may reuse their line buffers, so keep a copy.
	v := make([]byte, len(value))
	copy(v, value)
	se.mu.Lock()
	se.groups[key] = append(se.groups[key], v)
	se.mu.Unlock()
	return nil
}

// Run implements Runner. The first map or reduce failure cancels the
// remaining workers and is returned.
func (r *LocalRunner) Run(ctx context.Context, job *Job) error {
	mapWorkers := r.MapConcurrency
	if mapWorkers < 1 {
		mapWorkers = 1
	}
	reduceWorkers := r.ReduceConcurrency
	if reduceWorkers < 1 {
		reduceWorkers = 1
	}

	emitter := &shuffleEmitter{groups: make(map[BatchKey][][]byte)}

	g, gctx := errgroup.WithContext(ctx)
	inputs := make(chan string)
	g.Go(func() error {
		defer close(inputs)
		for _, input := range job.Inputs {
			select {
			case inputs <- input:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for i := 0; i < mapWorkers; i++ {
		g.Go(func() error {
			for input := range inputs {
				if err := job.Map(gctx, input, emitter); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(reduceWorkers)
	for key, group := range emitter.groups {
		key, group := key, group
		g.Go(func() error {
			values := make(chan []byte)
			go func() {
				defer close(values)
				for _, v := range group {
					select {
					case values <- v:
					case <-gctx.Done():
						return
					}
				}
			}()
			return job.Reduce(gctx, key, values)
		})
	}
	return g.Wait()
}
