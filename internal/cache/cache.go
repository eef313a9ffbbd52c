package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Eviction policy names accepted by Config.EvictionPolicy.
const (
	PolicyLRU = "lru"
	PolicyLFU = "lfu"
	// PolicyDefault ranks entries by last access time multiplied by size,
	// so large, stale entries go first.
	PolicyDefault = ""
)

// Config holds the cache construction parameters. Validation happens once
// in New; after construction the cache raises no errors to its callers.
type Config struct {
	// Dir is the cache root directory. Empty selects the platform default.
	Dir string
	// MaxSizeMB bounds the total disk footprint. Zero means 100 MB.
	MaxSizeMB int
	// MaxMemoryItems bounds the in-memory working set. Zero means 100.
	MaxMemoryItems int
	// EvictionPolicy is "lru", "lfu", or empty for the combined default.
	EvictionPolicy string
	// CleanupInterval is the period between background cleanup passes.
	// Zero means one hour.
	CleanupInterval time.Duration
}

// ResponseCache is a two-tier (memory + disk) size-bounded cache for LLM
// responses keyed by (model, prompt). The memory table is an accelerator;
// the persisted index is the source of truth for eviction accounting.
//
// One instance owns its cache directory exclusively. Running two instances
// against the same directory is unsupported.
type ResponseCache struct {
	dir             string
	maxSizeBytes    int64
	maxMemoryItems  int
	policy          string
	cleanupInterval time.Duration
	indexPath       string
	log             *slog.Logger

	mu          sync.Mutex
	memory      map[string]*Item
	index       map[string]*IndexEntry
	currentSize int64
	lastCleanup time.Time
	closed      bool

	hits   atomic.Int64
	misses atomic.Int64
	stores atomic.Int64

	stopCh    chan struct{}
	kickCh    chan struct{}
	persistWG sync.WaitGroup
}

// New creates a ResponseCache rooted at cfg.Dir, loads the persisted index,
// and starts the background cleanup goroutine. Configuration errors are the
// only errors the cache ever returns.
func New(cfg Config, logger *slog.Logger) (*ResponseCache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	policy := strings.ToLower(cfg.EvictionPolicy)
	switch policy {
	case PolicyLRU, PolicyLFU, PolicyDefault:
	default:
		return nil, fmt.Errorf("unknown eviction policy: %s", cfg.EvictionPolicy)
	}
	if cfg.MaxSizeMB < 0 {
		return nil, fmt.Errorf("max cache size must be positive, got %dMB", cfg.MaxSizeMB)
	}
	if cfg.MaxMemoryItems < 0 {
		return nil, fmt.Errorf("max memory items must be positive, got %d", cfg.MaxMemoryItems)
	}
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 100
	}
	if cfg.MaxMemoryItems == 0 {
		cfg.MaxMemoryItems = 100
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}

	dir := cfg.Dir
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	c := &ResponseCache{
		dir:             dir,
		maxSizeBytes:    int64(cfg.MaxSizeMB) * 1024 * 1024,
		maxMemoryItems:  cfg.MaxMemoryItems,
		policy:          policy,
		cleanupInterval: cfg.CleanupInterval,
		indexPath:       filepath.Join(dir, indexFileName),
		log:             logger,
		memory:          make(map[string]*Item),
		lastCleanup:     time.Now(),
		stopCh:          make(chan struct{}),
		kickCh:          make(chan struct{}, 1),
	}

	c.loadIndex()
	c.recalcSizeLocked()

	go c.cleanupLoop()

	c.log.Info("cache: initialized",
		"dir", dir, "max_size_mb", cfg.MaxSizeMB, "policy", c.policyName())
	return c, nil
}

// Key derives the deterministic cache key for a (model, prompt) pair.
// SHA-256 yields 32 digest bytes, well beyond the 128 bits needed to make
// accidental collisions negligible. Inputs are not normalized: callers own
// prompt construction consistency.
func Key(model, prompt string) string {
	sum := sha256.Sum256([]byte(model + prompt))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached response for (model, prompt), or ("", false) on a
// miss. The memory fast path performs no disk I/O. A disk hit promotes the
// item into memory and schedules a non-blocking index persist. Unreadable
// or corrupted entries are pruned and degrade to a miss.
func (c *ResponseCache) Get(model, prompt string) (string, bool) {
	key := Key(model, prompt)

	c.mu.Lock()
	if item, ok := c.memory[key]; ok {
		item.touch()
		// Keep the index's view of recency/frequency current so eviction
		// ranking sees memory hits. In-memory mutation only, no persist.
		if entry, ok := c.index[key]; ok {
			entry.LastAccess = item.LastAccess
			entry.Hits++
		}
		c.mu.Unlock()
		c.hits.Add(1)
		c.log.Debug("cache: memory hit", "key", shortKey(key))
		return item.Response, true
	}

	entry, ok := c.index[key]
	if !ok {
		c.mu.Unlock()
		c.misses.Add(1)
		return "", false
	}

	data, err := os.ReadFile(c.entryPath(key))
	var ef entryFile
	if err == nil {
		err = json.Unmarshal(data, &ef)
	}
	if err != nil {
		// Self-heal: the index must never keep claiming an unreadable key.
		c.log.Warn("cache: unreadable entry, pruning", "key", shortKey(key), "error", err)
		os.Remove(c.entryPath(key))
		delete(c.index, key)
		c.currentSize -= entry.SizeBytes
		if err := c.saveIndexLocked(); err != nil {
			c.log.Error("cache: saving index", "error", err)
		}
		c.mu.Unlock()
		c.misses.Add(1)
		return "", false
	}

	entry.LastAccess = time.Now()
	entry.Hits++

	item := newItem(key, ef.Model, ef.Response, ef.Metadata)
	item.CreatedAt = ef.CreatedAt
	item.Hits = entry.Hits
	c.memory[key] = item
	c.pruneMemoryLocked()
	c.mu.Unlock()

	c.scheduleIndexSave()
	c.hits.Add(1)
	c.log.Debug("cache: disk hit", "key", shortKey(key))
	return ef.Response, true
}

// Store writes a response through to memory, the per-key entry file, and
// the index. Empty prompts and responses are silently ignored. Store never
// reports an error: disk failures are logged and the memory copy is kept,
// so a caching failure can never fail the caller's LLM request.
func (c *ResponseCache) Store(model, prompt, response string, metadata map[string]string) {
	if prompt == "" || response == "" {
		return
	}

	key := Key(model, prompt)
	item := newItem(key, model, response, metadata)

	data, err := json.Marshal(entryFile{
		Key:       key,
		Model:     model,
		Response:  response,
		Metadata:  metadata,
		CreatedAt: item.CreatedAt,
	})
	if err != nil {
		c.log.Error("cache: marshaling entry", "key", shortKey(key), "error", err)
		return
	}

	c.mu.Lock()
	c.memory[key] = item
	c.pruneMemoryLocked()

	if err := os.WriteFile(c.entryPath(key), data, 0o644); err != nil {
		c.log.Error("cache: writing entry file", "key", shortKey(key), "error", err)
		c.mu.Unlock()
		return
	}

	if old, ok := c.index[key]; ok {
		c.currentSize -= old.SizeBytes
	}
	c.index[key] = &IndexEntry{
		Key:        key,
		Model:      model,
		Created:    item.CreatedAt,
		LastAccess: item.LastAccess,
		SizeBytes:  item.SizeEstimate,
		Hits:       1,
	}
	c.currentSize += item.SizeEstimate
	if err := c.saveIndexLocked(); err != nil {
		c.log.Error("cache: saving index", "error", err)
	}
	over := c.currentSize > c.maxSizeBytes
	c.mu.Unlock()

	c.stores.Add(1)
	if over {
		// Cleanup runs out of band; Store returns promptly.
		select {
		case c.kickCh <- struct{}{}:
		default:
		}
	}
	c.log.Debug("cache: stored", "key", shortKey(key), "bytes", item.SizeEstimate)
}

// Clear removes all entries, or only those created more than olderThanDays
// days ago when olderThanDays > 0. It reports items removed and bytes freed.
// Per-file removal failures are logged and skipped.
func (c *ResponseCache) Clear(olderThanDays int) (int, int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	var itemsRemoved int
	var bytesFreed int64

	for key, entry := range c.index {
		if olderThanDays > 0 && !entry.Created.Before(cutoff) {
			continue
		}
		if err := os.Remove(c.entryPath(key)); err != nil && !os.IsNotExist(err) {
			c.log.Warn("cache: cannot remove entry file", "key", shortKey(key), "error", err)
			continue
		}
		delete(c.memory, key)
		delete(c.index, key)
		itemsRemoved++
		bytesFreed += entry.SizeBytes
	}
	c.currentSize -= bytesFreed

	if olderThanDays <= 0 {
		// A full clear also drops memory-only entries that never reached disk.
		c.memory = make(map[string]*Item)
		c.currentSize = 0
	}

	if err := c.saveIndexLocked(); err != nil {
		c.log.Error("cache: saving index", "error", err)
	}
	c.log.Info("cache: cleared", "items", itemsRemoved, "bytes", bytesFreed)
	return itemsRemoved, bytesFreed
}

// Cleanup shrinks the memory table to its item budget and, when the disk
// total exceeds the target size (90% of the configured max), evicts entries
// by the configured policy until the total is back under target. force
// bypasses the interval gate; periodic passes inside the interval are no-ops.
func (c *ResponseCache) Cleanup(force bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if !force && now.Sub(c.lastCleanup) < c.cleanupInterval {
		return
	}
	c.lastCleanup = now

	c.pruneMemoryLocked()
	c.recalcSizeLocked()

	target := c.targetSize()
	if c.currentSize <= target {
		return
	}

	entries := make([]*IndexEntry, 0, len(c.index))
	for _, entry := range c.index {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return c.evictionRank(entries[i]) < c.evictionRank(entries[j])
	})

	bytesToRemove := c.currentSize - target
	var bytesRemoved int64
	var itemsRemoved int
	for _, entry := range entries {
		if bytesRemoved >= bytesToRemove {
			break
		}
		if err := os.Remove(c.entryPath(entry.Key)); err != nil && !os.IsNotExist(err) {
			// A stuck file must not wedge the whole pass.
			c.log.Warn("cache: cannot evict entry file", "key", shortKey(entry.Key), "error", err)
			continue
		}
		delete(c.memory, entry.Key)
		delete(c.index, entry.Key)
		bytesRemoved += entry.SizeBytes
		itemsRemoved++
	}
	c.currentSize -= bytesRemoved

	if err := c.saveIndexLocked(); err != nil {
		c.log.Error("cache: saving index", "error", err)
	}
	c.log.Info("cache: cleanup complete",
		"removed", itemsRemoved, "bytes", bytesRemoved, "size", c.currentSize)
}

// Stats is a point-in-time snapshot of cache health.
type Stats struct {
	DiskItems              int     `json:"disk_items"`
	MemoryItems            int     `json:"memory_items"`
	DiskSizeBytes          int64   `json:"disk_size_bytes"`
	MemorySizeBytes        int64   `json:"memory_size_bytes"`
	MaxSizeMB              int     `json:"max_size_mb"`
	EvictionPolicy         string  `json:"eviction_policy"`
	CleanupIntervalSeconds int     `json:"cleanup_interval_seconds"`
	Hits                   int64   `json:"hits"`
	Misses                 int64   `json:"misses"`
	Stores                 int64   `json:"stores"`
	HitRate                float64 `json:"hit_rate"`
}

// Stats returns current cache statistics. The hit rate is 0 when there
// have been no lookups at all.
func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	var diskSize, memSize int64
	for _, entry := range c.index {
		diskSize += entry.SizeBytes
	}
	for _, item := range c.memory {
		memSize += item.SizeEstimate
	}
	stats := Stats{
		DiskItems:              len(c.index),
		MemoryItems:            len(c.memory),
		DiskSizeBytes:          diskSize,
		MemorySizeBytes:        memSize,
		MaxSizeMB:              int(c.maxSizeBytes / (1024 * 1024)),
		EvictionPolicy:         c.policyName(),
		CleanupIntervalSeconds: int(c.cleanupInterval / time.Second),
	}
	c.mu.Unlock()

	stats.Hits = c.hits.Load()
	stats.Misses = c.misses.Load()
	stats.Stores = c.stores.Load()
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// Close stops background work, drains in-flight index persists, and makes
// a final best-effort index save. It never fails: teardown errors are
// logged rather than allowed to mask the shutdown path.
func (c *ResponseCache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.stopCh)
	c.persistWG.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.saveIndexLocked(); err != nil {
		c.log.Warn("cache: final index save failed", "error", err)
	}
}

// Dir returns the cache directory path.
func (c *ResponseCache) Dir() string {
	return c.dir
}

// DefaultDir returns the platform-appropriate cache directory for aidev.
func DefaultDir() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "aidev"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "aidev"), nil
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "aidev", "cache"), nil
		}
		return filepath.Join(home, "AppData", "Local", "aidev", "cache"), nil
	default:
		return filepath.Join(home, ".cache", "aidev"), nil
	}
}

func (c *ResponseCache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.Cleanup(false)
		case <-c.kickCh:
			c.Cleanup(true)
		}
	}
}

// scheduleIndexSave persists the index in the background. The goroutine is
// tracked so Close can drain in-flight saves instead of leaking them.
func (c *ResponseCache) scheduleIndexSave() {
	c.persistWG.Add(1)
	go func() {
		defer c.persistWG.Done()
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := c.saveIndexLocked(); err != nil {
			c.log.Error("cache: saving index", "error", err)
		}
	}()
}

// pruneMemoryLocked shrinks the memory table to maxMemoryItems using the
// configured policy. Never touches disk. Callers must hold c.mu.
func (c *ResponseCache) pruneMemoryLocked() {
	excess := len(c.memory) - c.maxMemoryItems
	if excess <= 0 {
		return
	}
	items := make([]*Item, 0, len(c.memory))
	for _, item := range c.memory {
		items = append(items, item)
	}
	if c.policy == PolicyLFU {
		sort.Slice(items, func(i, j int) bool { return items[i].Hits < items[j].Hits })
	} else {
		sort.Slice(items, func(i, j int) bool { return items[i].LastAccess.Before(items[j].LastAccess) })
	}
	for i := 0; i < excess; i++ {
		delete(c.memory, items[i].Key)
	}
	c.log.Debug("cache: memory pruned", "removed", excess, "remaining", len(c.memory))
}

// evictionRank orders index entries for disk eviction: lowest rank first.
func (c *ResponseCache) evictionRank(entry *IndexEntry) float64 {
	switch c.policy {
	case PolicyLRU:
		return float64(entry.LastAccess.UnixNano())
	case PolicyLFU:
		return float64(entry.Hits)
	default:
		return float64(entry.LastAccess.Unix()) * float64(entry.SizeBytes)
	}
}

// targetSize is 90% of the configured max, providing hysteresis so a pass
// that just finished does not immediately re-trigger.
func (c *ResponseCache) targetSize() int64 {
	return c.maxSizeBytes * 9 / 10
}

func (c *ResponseCache) policyName() string {
	if c.policy == PolicyDefault {
		return "default"
	}
	return c.policy
}

func shortKey(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}
