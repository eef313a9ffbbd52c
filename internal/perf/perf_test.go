package perf

import (
	"sync"
	"testing"
	"time"
)

func TestTracker_Timing(t *testing.T) {
	tr := New()

	timer := tr.Start("llm.generate")
	time.Sleep(5 * time.Millisecond)
	elapsed := timer.Stop()

	if elapsed < 5*time.Millisecond {
		t.Errorf("Elapsed = %v, want >= 5ms", elapsed)
	}

	snap := tr.Snapshot()
	if len(snap.Timings) != 1 {
		t.Fatalf("Timings = %d, want 1", len(snap.Timings))
	}
	ts := snap.Timings[0]
	if ts.Name != "llm.generate" {
		t.Errorf("Name = %q, want %q", ts.Name, "llm.generate")
	}
	if ts.Count != 1 {
		t.Errorf("Count = %d, want 1", ts.Count)
	}
	if ts.Min != ts.Max || ts.Average != ts.Total {
		t.Error("Single sample: min, max, average and total should agree")
	}
}

func TestTracker_MinMaxAverage(t *testing.T) {
	tr := New()
	// Record directly to keep the test free of sleeps.
	tr.record("op", 10*time.Millisecond)
	tr.record("op", 30*time.Millisecond)

	snap := tr.Snapshot()
	ts := snap.Timings[0]
	if ts.Count != 2 {
		t.Errorf("Count = %d, want 2", ts.Count)
	}
	if ts.Min != 10*time.Millisecond {
		t.Errorf("Min = %v, want 10ms", ts.Min)
	}
	if ts.Max != 30*time.Millisecond {
		t.Errorf("Max = %v, want 30ms", ts.Max)
	}
	if ts.Average != 20*time.Millisecond {
		t.Errorf("Average = %v, want 20ms", ts.Average)
	}
}

func TestTracker_Counters(t *testing.T) {
	tr := New()
	tr.Inc("cache.hits")
	tr.Inc("cache.hits")
	tr.Add("tokens", 42)

	snap := tr.Snapshot()
	if snap.Counters["cache.hits"] != 2 {
		t.Errorf("cache.hits = %d, want 2", snap.Counters["cache.hits"])
	}
	if snap.Counters["tokens"] != 42 {
		t.Errorf("tokens = %d, want 42", snap.Counters["tokens"])
	}
}

func TestTracker_SnapshotSorted(t *testing.T) {
	tr := New()
	tr.record("zeta", time.Millisecond)
	tr.record("alpha", time.Millisecond)

	snap := tr.Snapshot()
	if snap.Timings[0].Name != "alpha" || snap.Timings[1].Name != "zeta" {
		t.Error("Snapshot timings should be sorted by name")
	}
}

func TestTracker_Reset(t *testing.T) {
	tr := New()
	tr.record("op", time.Millisecond)
	tr.Inc("count")
	tr.Reset()

	snap := tr.Snapshot()
	if len(snap.Timings) != 0 || len(snap.Counters) != 0 {
		t.Errorf("Snapshot after reset = %+v, want empty", snap)
	}
}

func TestTracker_NilSafe(t *testing.T) {
	var tr *Tracker

	timer := tr.Start("op")
	timer.Stop()
	tr.Inc("count")
	tr.Reset()

	snap := tr.Snapshot()
	if len(snap.Timings) != 0 {
		t.Error("Nil tracker should record nothing")
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			timer := tr.Start("op")
			tr.Inc("count")
			timer.Stop()
		}()
	}
	wg.Wait()

	snap := tr.Snapshot()
	if snap.Counters["count"] != 20 {
		t.Errorf("count = %d, want 20", snap.Counters["count"])
	}
	if snap.Timings[0].Count != 20 {
		t.Errorf("timing count = %d, want 20", snap.Timings[0].Count)
	}
}
