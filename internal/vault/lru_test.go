package vault

import "testing"

func TestLRUEvictionOrder(t *testing.T) {
	c, err := newLRU[string](3)
	if err != nil {
		t.Fatalf("newLRU: %v", err)
	}

	c.Put("a", "1")
	c.Put("b", "2")
	c.Put("c", "3")

	// Promote a; b becomes least recently used.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a missing before eviction")
	}

	c.Put("d", "4")

	if c.Contains("b") {
		t.Error("b should have been evicted")
	}
	for _, key := range []string{"a", "c", "d"} {
		if !c.Contains(key) {
			t.Errorf("%s should survive eviction", key)
		}
	}

	stats := c.Stats()
	if stats.Capacity != 3 || stats.Size != 3 {
		t.Errorf("Stats = %+v, want capacity 3 size 3", stats)
	}
}

func TestLRUContainsDoesNotPromote(t *testing.T) {
	c, err := newLRU[int](2)
	if err != nil {
		t.Fatalf("newLRU: %v", err)
	}

	c.Put("a", 1)
	c.Put("b", 2)

	// Contains must not change recency: a stays the eviction candidate.
	c.Contains("a")
	c.Put("c", 3)

	if c.Contains("a") {
		t.Error("a should have been evicted; Contains must not promote")
	}
	if !c.Contains("b") || !c.Contains("c") {
		t.Error("b and c should survive")
	}
}

func TestLRUInvalidCapacity(t *testing.T) {
	if _, err := newLRU[string](0); err == nil {
		t.Error("expected error for zero capacity")
	}
	if _, err := newLRU[string](-1); err == nil {
		t.Error("expected error for negative capacity")
	}
}
