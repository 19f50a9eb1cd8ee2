package canon

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/eventlake/canon/test"
)

func TestLocalRunner(t *testing.T) {
	var mu sync.Mutex
	reduced := make(map[BatchKey][]string)

	job := &Job{
		Inputs: []string{"a", "b", "c"},
		Map: func(ctx context.Context, input string, em Emitter) error {
			// Emit each input under two keys to exercise the shuffle.
			for _, key := range []BatchKey{
				{Date: "2023-01-01", BatchID: 1},
				{Date: "2023-01-02", BatchID: 2},
			} {
				if err := em.Emit(key, []byte(input+"/"+key.Date)); err != nil {
					return err
				}
			}
			return nil
		},
		Reduce: func(ctx context.Context, key BatchKey, values <-chan []byte) error {
			var got []string
			for v := range values {
				got = append(got, string(v))
			}
			sort.Strings(got)
			mu.Lock()
			reduced[key] = got
			mu.Unlock()
			return nil
		},
	}

	err := NewLocalRunner().Run(context.Background(), job)
	test.ErrNil(t, err, "running job")

	want := map[BatchKey][]string{
		{Date: "2023-01-01", BatchID: 1}: {"a/2023-01-01", "b/2023-01-01", "c/2023-01-01"},
		{Date: "2023-01-02", BatchID: 2}: {"a/2023-01-02", "b/2023-01-02", "c/2023-01-02"},
	}
	if !reflect.DeepEqual(reduced, want) {
		t.Fatalf("unexpected reduce output: %v", reduced)
	}
}

func TestLocalRunnerMapError(t *testing.T) {
	var reduces int64
	job := &Job{
		Inputs: []string{"a", "b"},
		Map: func(ctx context.Context, input string, em Emitter) error {
			if input == "b" {
				return errors.New("map blew up")
			}
			return em.Emit(BatchKey{Date: "2023-01-01", BatchID: 1}, []byte(input))
		},
		Reduce: func(ctx context.Context, key BatchKey, values <-chan []byte) error {
			reduces++
			for range values {
			}
			return nil
		},
	}

	err := NewLocalRunner().Run(context.Background(), job)
	if err == nil {
		t.Fatal("expected map error to fail the job")
	}
	if reduces != 0 {
		t.Fatalf("reduce must not run after a map failure, ran %d times", reduces)
	}
}

func TestLocalRunnerReduceError(t *testing.T) {
	job := &Job{
		Inputs: []string{"a"},
		Map: func(ctx context.Context, input string, em Emitter) error {
			return em.Emit(BatchKey{Date: "2023-01-01", BatchID: 1}, []byte(input))
		},
		Reduce: func(ctx context.Context, key BatchKey, values <-chan []byte) error {
			for range values {
			}
			return errors.New("reduce blew up")
		},
	}

	err := NewLocalRunner().Run(context.Background(), job)
	if err == nil {
		t.Fatal("expected reduce error to fail the job")
	}
}

func TestLocalRunnerEmitterCopies(t *testing.T) {
	buf := []byte("first")
	job := &Job{
		Inputs: []string{"a"},
		Map: func(ctx context.Context, input string, em Emitter) error {
			if err := em.Emit(BatchKey{Date: "2023-01-01", BatchID: 1}, buf); err != nil {
				return err
			}
			copy(buf, "xxxxx")
			return nil
		},
		Reduce: func(ctx context.Context, key BatchKey, values <-chan []byte) error {
			for v := range values {
				if string(v) != "first" {
					return fmt.Errorf("emitted value was clobbered: %q", v)
				}
			}
			return nil
		},
	}

	runner := &LocalRunner{MapConcurrency: 1, ReduceConcurrency: 1}
	test.ErrNil(t, runner.Run(context.Background(), job), "running job")
}
