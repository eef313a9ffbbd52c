package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const indexFileName = "cache_index.json"

// IndexEntry is the persisted metadata for one cached item. The response
// body lives only in the per-key entry file, never in the index.
type IndexEntry struct {
	Key        string    `json:"key"`
	Model      string    `json:"model"`
	Created    time.Time `json:"created"`
	LastAccess time.Time `json:"last_access"`
	SizeBytes  int64     `json:"size_bytes"`
	Hits       int64     `json:"hits"`
}

// entryFile is the on-disk representation of one cached response.
type entryFile struct {
	Key       string            `json:"key"`
	Model     string            `json:"model"`
	Response  string            `json:"response"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// loadIndex reads the index file into memory. A missing, unreadable, or
// malformed index resets to empty rather than failing construction.
func (c *ResponseCache) loadIndex() {
	c.index = make(map[string]*IndexEntry)

	data, err := os.ReadFile(c.indexPath)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Warn("cache: cannot read index, starting empty", "path", c.indexPath, "error", err)
		}
		return
	}

	var loaded map[string]*IndexEntry
	if err := json.Unmarshal(data, &loaded); err != nil {
		c.log.Warn("cache: invalid index, starting empty", "path", c.indexPath, "error", err)
		return
	}

	for key, entry := range loaded {
		if entry == nil {
			continue
		}
		// Entries whose file vanished since the last save are dropped: the
		// index must never claim a key whose file is permanently missing.
		if _, err := os.Stat(c.entryPath(key)); err != nil {
			continue
		}
		c.index[key] = entry
	}
	c.log.Debug("cache: index loaded", "entries", len(c.index))
}

// saveIndexLocked writes the index atomically (temp file + rename).
// Callers must hold c.mu.
func (c *ResponseCache) saveIndexLocked() error {
	data, err := json.Marshal(c.index)
	if err != nil {
		return err
	}
	tmp := c.indexPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, c.indexPath); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// recalcSizeLocked recomputes the running disk total from the index.
// Callers must hold c.mu.
func (c *ResponseCache) recalcSizeLocked() {
	var total int64
	for _, entry := range c.index {
		total += entry.SizeBytes
	}
	c.currentSize = total
}

func (c *ResponseCache) entryPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}
