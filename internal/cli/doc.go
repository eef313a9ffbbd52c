// Package cli wires the aidev commands: ask, chat, cache, history, models,
// config, and version. Command handlers translate errors into deterministic
// exit codes (0 success, 2 usage, 3 auth, 4 runtime).
package cli
