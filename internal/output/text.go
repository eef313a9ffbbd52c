package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/aidev-cli/aidev/internal/cache"
	"github.com/aidev-cli/aidev/internal/llm"
	"github.com/aidev-cli/aidev/internal/perf"
)

// TextWriter outputs the bare response text, suitable for piping.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, answer *Answer) error {
	ew := &errWriter{w: w}
	ew.println(strings.TrimRight(answer.Response, "\n"))
	return ew.err
}

// StatsText renders cache statistics in a human-readable layout.
func StatsText(w io.Writer, stats cache.Stats) error {
	ew := &errWriter{w: w}

	ew.println("Cache statistics")
	ew.println(strings.Repeat("-", 40))
	ew.printf("Disk entries:     %d (%s)\n", stats.DiskItems, humanize.Bytes(uint64(stats.DiskSizeBytes)))
	ew.printf("Memory entries:   %d (%s)\n", stats.MemoryItems, humanize.Bytes(uint64(stats.MemorySizeBytes)))
	ew.printf("Max size:         %d MB\n", stats.MaxSizeMB)
	ew.printf("Eviction policy:  %s\n", stats.EvictionPolicy)
	ew.printf("Cleanup interval: %ds\n", stats.CleanupIntervalSeconds)
	ew.printf("Hits / misses:    %d / %d", stats.Hits, stats.Misses)
	if stats.Hits+stats.Misses > 0 {
		ew.printf(" (%.1f%% hit rate)", stats.HitRate*100)
	}
	ew.println("")
	ew.printf("Stores:           %d\n", stats.Stores)

	return ew.err
}

// PerfText renders a performance snapshot as a fixed-width table.
func PerfText(w io.Writer, snap perf.Snapshot) error {
	ew := &errWriter{w: w}

	if len(snap.Timings) == 0 && len(snap.Counters) == 0 {
		ew.println("No performance data recorded.")
		return ew.err
	}

	if len(snap.Timings) > 0 {
		ew.printf("%-20s %6s %12s %12s %12s %12s\n", "operation", "count", "total", "avg", "min", "max")
		ew.println(strings.Repeat("-", 78))
		for _, ts := range snap.Timings {
			ew.printf("%-20s %6d %12s %12s %12s %12s\n",
				ts.Name, ts.Count,
				ts.Total.Round(100*time.Microsecond),
				ts.Average.Round(100*time.Microsecond),
				ts.Min.Round(100*time.Microsecond),
				ts.Max.Round(100*time.Microsecond))
		}
	}

	if len(snap.Counters) > 0 {
		if len(snap.Timings) > 0 {
			ew.println("")
		}
		names := make([]string, 0, len(snap.Counters))
		for name := range snap.Counters {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			ew.printf("%-20s %6d\n", name, snap.Counters[name])
		}
	}

	return ew.err
}

// ModelsText renders the available model list.
func ModelsText(w io.Writer, models []llm.ModelInfo) error {
	ew := &errWriter{w: w}

	if len(models) == 0 {
		ew.println("No models available.")
		return ew.err
	}
	for _, m := range models {
		if m.Size > 0 {
			ew.printf("%-40s %10s\n", m.Name, humanize.Bytes(uint64(m.Size)))
		} else {
			ew.println(m.Name)
		}
	}
	return ew.err
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}
