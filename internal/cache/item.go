package cache

import "time"

// itemOverheadBytes approximates the per-entry bookkeeping cost (struct
// fields, map slot) on top of the raw string payloads.
const itemOverheadBytes = 64

// Item is one cached (model, prompt) -> response mapping held in memory.
// SizeEstimate is computed once at creation and treated as immutable for
// the lifetime of the item.
type Item struct {
	Key          string
	Model        string
	Response     string
	Metadata     map[string]string
	CreatedAt    time.Time
	LastAccess   time.Time
	Hits         int64
	SizeEstimate int64
}

func newItem(key, model, response string, metadata map[string]string) *Item {
	now := time.Now()
	return &Item{
		Key:          key,
		Model:        model,
		Response:     response,
		Metadata:     metadata,
		CreatedAt:    now,
		LastAccess:   now,
		SizeEstimate: estimateSize(key, model, response, metadata),
	}
}

// touch updates access bookkeeping on a successful lookup.
func (it *Item) touch() {
	it.LastAccess = time.Now()
	it.Hits++
}

// estimateSize approximates the footprint of an entry from the byte lengths
// of its payloads. An estimate, not an exact byte count.
func estimateSize(key, model, response string, metadata map[string]string) int64 {
	size := int64(len(key) + len(model) + len(response) + itemOverheadBytes)
	for k, v := range metadata {
		size += int64(len(k) + len(v))
	}
	return size
}
