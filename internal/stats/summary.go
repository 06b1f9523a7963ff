// Package stats aggregates the outcomes and durations of many executions.
package stats

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"

	"github.com/smazurov/procexec/internal/events"
	"github.com/smazurov/procexec/internal/jobs"
	"github.com/smazurov/procexec/internal/process"
)

// Snapshot is a point-in-time view of a Summary.
type Snapshot struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	ExitCode  int `json:"exit_code"`
	TimedOut  int `json:"timed_out"`
	Killed    int `json:"killed"`
	Errored   int `json:"errored"`

	Min  time.Duration `json:"min"`
	Max  time.Duration `json:"max"`
	Mean time.Duration `json:"mean"`
	P50  time.Duration `json:"p50"`
	P90  time.Duration `json:"p90"`
	P99  time.Duration `json:"p99"`
}

// Failed returns the number of executions that did not succeed.
func (s Snapshot) Failed() int {
	return s.Total - s.Succeeded
}

// Summary counts outcomes and tracks a duration digest. Safe for
// concurrent use.
type Summary struct {
	mu       sync.Mutex
	outcomes map[string]int
	total    int
	digest   *tdigest.TDigest
	sum      time.Duration
	min      time.Duration
	max      time.Duration
}

// NewSummary creates an empty Summary.
func NewSummary() *Summary {
	return &Summary{
		outcomes: make(map[string]int),
		digest:   tdigest.NewWithCompression(100), // ~100 centroids
		min:      -1,
	}
}

// Add records one execution by outcome and duration.
func (s *Summary) Add(outcome string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.outcomes[outcome]++
	s.digest.Add(float64(d.Nanoseconds()), 1)
	s.sum += d
	if s.min < 0 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
}

// AddResult records a process result.
func (s *Summary) AddResult(res *process.Result) {
	s.Add(jobs.Outcome(res), res.Duration)
}

// Subscribe records every finished execution published on bus. Returns an
// unsubscribe function.
func (s *Summary) Subscribe(bus *events.Bus) func() {
	return bus.Subscribe(func(ev events.ExecFinishedEvent) {
		s.Add(ev.Outcome, time.Duration(ev.DurationSec*float64(time.Second)))
	})
}

// Count returns the number of executions with outcome.
func (s *Summary) Count(outcome string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcomes[outcome]
}

// Quantile returns the estimated duration at q (0..1), or 0 if empty.
func (s *Summary) Quantile(q float64) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.total == 0 {
		return 0
	}
	return time.Duration(s.digest.Quantile(q))
}

// Snapshot returns the current totals and duration percentiles.
func (s *Summary) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Total:     s.total,
		Succeeded: s.outcomes[events.OutcomeSuccess],
		ExitCode:  s.outcomes[events.OutcomeExitCode],
		TimedOut:  s.outcomes[events.OutcomeTimeout],
		Killed:    s.outcomes[events.OutcomeKilled],
		Errored:   s.outcomes[events.OutcomeError],
	}
	if s.total == 0 {
		return snap
	}

	snap.Min = s.min
	snap.Max = s.max
	snap.Mean = s.sum / time.Duration(s.total)
	snap.P50 = time.Duration(s.digest.Quantile(0.50))
	snap.P90 = time.Duration(s.digest.Quantile(0.90))
	snap.P99 = time.Duration(s.digest.Quantile(0.99))
	return snap
}
