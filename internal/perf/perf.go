package perf

import (
	"sort"
	"sync"
	"time"
)

// Tracker accumulates named operation timings and counters. All methods are
// safe for concurrent use. A nil Tracker is valid and records nothing, so
// callers can wire it in unconditionally.
type Tracker struct {
	mu       sync.Mutex
	timings  map[string]*timing
	counters map[string]int64
}

type timing struct {
	count int64
	total time.Duration
	min   time.Duration
	max   time.Duration
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{
		timings:  make(map[string]*timing),
		counters: make(map[string]int64),
	}
}

// Timer measures one in-flight operation. Obtain via [Tracker.Start].
type Timer struct {
	tracker *Tracker
	name    string
	start   time.Time
}

// Start begins timing the named operation.
func (t *Tracker) Start(name string) *Timer {
	return &Timer{tracker: t, name: name, start: time.Now()}
}

// Stop records the elapsed time and returns it. Safe to call on a Timer
// from a nil Tracker.
func (tm *Timer) Stop() time.Duration {
	elapsed := time.Since(tm.start)
	tm.tracker.record(tm.name, elapsed)
	return elapsed
}

func (t *Tracker) record(name string, elapsed time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	tg, ok := t.timings[name]
	if !ok {
		tg = &timing{min: elapsed, max: elapsed}
		t.timings[name] = tg
	}
	tg.count++
	tg.total += elapsed
	if elapsed < tg.min {
		tg.min = elapsed
	}
	if elapsed > tg.max {
		tg.max = elapsed
	}
}

// Inc increments the named counter by one.
func (t *Tracker) Inc(name string) {
	t.Add(name, 1)
}

// Add increments the named counter by n.
func (t *Tracker) Add(name string, n int64) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.counters[name] += n
	t.mu.Unlock()
}

// TimingStats summarizes one named operation.
type TimingStats struct {
	Name    string        `json:"name"`
	Count   int64         `json:"count"`
	Total   time.Duration `json:"total"`
	Average time.Duration `json:"average"`
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
}

// Snapshot is a point-in-time copy of all recorded metrics, with timings
// sorted by name for stable output.
type Snapshot struct {
	Timings  []TimingStats    `json:"timings"`
	Counters map[string]int64 `json:"counters"`
}

// Snapshot returns a copy of the current metrics. A nil Tracker yields an
// empty snapshot.
func (t *Tracker) Snapshot() Snapshot {
	snap := Snapshot{Counters: make(map[string]int64)}
	if t == nil {
		return snap
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	for name, tg := range t.timings {
		snap.Timings = append(snap.Timings, TimingStats{
			Name:    name,
			Count:   tg.count,
			Total:   tg.total,
			Average: tg.total / time.Duration(tg.count),
			Min:     tg.min,
			Max:     tg.max,
		})
	}
	sort.Slice(snap.Timings, func(i, j int) bool {
		return snap.Timings[i].Name < snap.Timings[j].Name
	})
	for name, n := range t.counters {
		snap.Counters[name] = n
	}
	return snap
}

// Reset discards all recorded metrics.
func (t *Tracker) Reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.timings = make(map[string]*timing)
	t.counters = make(map[string]int64)
	t.mu.Unlock()
}
