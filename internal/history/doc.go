// Package history stores conversation turns in a local SQLite database so
// chat sessions and past answers survive across invocations. The store is
// bounded: once the configured entry limit is reached, the oldest messages
// are dropped as new ones arrive.
package history
