package cache

import (
	"testing"
	"time"
)

func TestEstimateSize(t *testing.T) {
	base := estimateSize("key", "model", "response", nil)
	want := int64(len("key")+len("model")+len("response")) + itemOverheadBytes
	if base != want {
		t.Errorf("estimateSize = %d, want %d", base, want)
	}

	withMeta := estimateSize("key", "model", "response", map[string]string{"a": "bc"})
	if withMeta != base+3 {
		t.Errorf("Metadata should add its key+value lengths: got %d, want %d", withMeta, base+3)
	}
}

func TestItem_Touch(t *testing.T) {
	it := newItem("k", "m", "r", nil)
	before := it.LastAccess

	time.Sleep(2 * time.Millisecond)
	it.touch()

	if it.Hits != 1 {
		t.Errorf("Hits = %d, want 1", it.Hits)
	}
	if !it.LastAccess.After(before) {
		t.Error("touch should advance LastAccess")
	}
}
