// Package cache provides a two-tier, size-bounded cache for LLM responses.
//
// Entries are keyed by a SHA-256 hash of the model name and prompt. Each
// entry lives in its own JSON file under the cache directory, with a single
// cache_index.json mapping keys to lightweight metadata (creation time, last
// access, hit count, size). The index is held in memory, mirrored to disk
// atomically (temp file + rename), and drives size accounting and eviction
// without ever loading response bodies.
//
// A bounded in-memory table accelerates repeated lookups; disk hits promote
// entries into it. When the disk total exceeds its budget a background pass
// evicts entries down to 90% of the configured max using the configured
// policy (LRU, LFU, or a combined recency-times-size default).
//
// The cache is designed to never be the reason an LLM request fails:
// corrupted entries are pruned and degrade to misses, and I/O failures are
// logged rather than propagated.
package cache
