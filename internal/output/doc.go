// Package output renders answers, cache statistics, performance snapshots,
// and conversation history in text, JSON, and markdown formats, writing to
// stdout or a file.
package output
