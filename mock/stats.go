// Package mock provides test doubles for the pipeline's stats interface.
package mock

import (
	"sync"
	"time"
)

// RecordingStatter remembers every counter increment it receives. Safe for
// concurrent use, since reduce workers count in parallel.
type RecordingStatter struct {
	mu     sync.Mutex
	counts map[string]int64
}

// Count records value against name, ignoring rate.
func (r *RecordingStatter) Count(name string, value int64, rate float64, tags ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int64)
	}
	r.counts[name] += value
}

// CountOf returns the recorded total for name.
func (r *RecordingStatter) CountOf(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[name]
}

// Gauge does nothing.
func (r *RecordingStatter) Gauge(name string, value float64, rate float64, tags ...string) {}

// Histogram does nothing.
func (r *RecordingStatter) Histogram(name string, value float64, rate float64, tags ...string) {}

// Set does nothing.
func (r *RecordingStatter) Set(name string, value string, rate float64, tags ...string) {}

// Timing does nothing.
func (r *RecordingStatter) Timing(name string, value time.Duration, rate float64, tags ...string) {}
