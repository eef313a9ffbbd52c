// Package perf provides lightweight in-process timing and counter metrics
// for a single CLI invocation. Nothing is exported off-process; snapshots
// are rendered on demand when the user asks for them.
package perf
