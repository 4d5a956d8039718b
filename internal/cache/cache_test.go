package cache

import (
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestCache_GetSet(t *testing.T) {
	c := New[string](time.Minute, 10)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Set("a", "one")
	v, ok := c.Get("a")
	if !ok || v != "one" {
		t.Errorf("Get: got %q, %v", v, ok)
	}
	c.Set("a", "two")
	if v, _ := c.Get("a"); v != "two" {
		t.Errorf("overwrite: got %q", v)
	}
}

func TestCache_Expiry(t *testing.T) {
	c := New[int](time.Minute, 10)
	clock := time.Now()
	c.now = func() time.Time { return clock }

	c.SetTTL("k", 42, time.Second)
	if v, ok := c.Get("k"); !ok || v != 42 {
		t.Fatal("expected live entry")
	}

	clock = clock.Add(2 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("expired entry should be absent")
	}
	if n := c.Size(); n != 0 {
		t.Errorf("Size = %d after expiry, want 0", n)
	}
}

func TestCache_ExpiredEvictionSparesRefreshedEntry(t *testing.T) {
	c := New[int](time.Minute, 10)
	clock := time.Now()
	c.now = func() time.Time { return clock }

	c.SetTTL("k", 1, time.Second)
	clock = clock.Add(2 * time.Second)

	// A refresh between an expired read and its lazy eviction must win.
	c.SetTTL("k", 2, time.Minute)
	c.evictExpired("k")
	if v, ok := c.Get("k"); !ok || v != 2 {
		t.Errorf("Get = %d, %t after refresh, want 2, true", v, ok)
	}

	clock = clock.Add(2 * time.Minute)
	c.evictExpired("k")
	if _, ok := c.entries["k"]; ok {
		t.Error("expired entry not evicted")
	}
}

func TestCache_SizeCountsOnlyLive(t *testing.T) {
	c := New[int](time.Minute, 10)
	clock := time.Now()
	c.now = func() time.Time { return clock }

	c.SetTTL("short", 1, time.Second)
	c.SetTTL("long", 2, time.Hour)
	clock = clock.Add(10 * time.Second)
	if n := c.Size(); n != 1 {
		t.Errorf("Size = %d, want 1", n)
	}
}

func TestCache_CapacityEviction(t *testing.T) {
	c := New[int](time.Minute, 3)
	for i := 0; i < 4; i++ {
		c.Set("k"+strconv.Itoa(i), i)
	}
	if n := c.Size(); n != 3 {
		t.Errorf("Size = %d after overflow, want 3", n)
	}
	// Oldest-inserted entry is the one evicted.
	if _, ok := c.Get("k0"); ok {
		t.Error("expected k0 (oldest) to be evicted")
	}
	for i := 1; i < 4; i++ {
		if _, ok := c.Get("k" + strconv.Itoa(i)); !ok {
			t.Errorf("expected k%d to survive", i)
		}
	}
}

func TestCache_CapacitySweepsExpiredFirst(t *testing.T) {
	c := New[int](time.Minute, 2)
	clock := time.Now()
	c.now = func() time.Time { return clock }

	c.SetTTL("stale", 1, time.Second)
	c.SetTTL("fresh", 2, time.Hour)
	clock = clock.Add(5 * time.Second)

	c.Set("new", 3)
	if _, ok := c.Get("fresh"); !ok {
		t.Error("live entry evicted although an expired one was available")
	}
	if _, ok := c.Get("new"); !ok {
		t.Error("inserted entry missing")
	}
}

func TestCache_DeleteAndFlush(t *testing.T) {
	c := New[int](time.Minute, 10)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("deleted key still present")
	}
	c.Delete("missing") // no-op
	c.Flush()
	if n := c.Size(); n != 0 {
		t.Errorf("Size = %d after flush, want 0", n)
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[int](time.Minute, 100)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := "k" + strconv.Itoa(i%150)
				c.Set(key, g*1000+i)
				c.Get(key)
				if i%50 == 0 {
					c.Delete(key)
				}
			}
		}(g)
	}
	wg.Wait()
	if n := c.Size(); n > 100 {
		t.Errorf("Size = %d exceeds capacity", n)
	}
}

func TestTiers_QueryKeyDependsOnAllOptions(t *testing.T) {
	base := QueryKey("what changed", 5, "", false)
	variants := []string{
		QueryKey("what changed", 6, "", false),
		QueryKey("what changed", 5, "doc-1", false),
		QueryKey("what changed", 5, "", true),
		QueryKey("other query", 5, "", false),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d produced the same key as base", i)
		}
	}
	if QueryKey("what changed", 5, "", false) != base {
		t.Error("same inputs should produce the same key")
	}
}

func TestTiers_EmbeddingKeyNormalizes(t *testing.T) {
	if EmbeddingKey("  hello ") != EmbeddingKey("hello") {
		t.Error("embedding key should normalize surrounding whitespace")
	}
}

func TestTiers_InvalidateQueries(t *testing.T) {
	tiers := NewTiers(TierConfig{}, TierConfig{}, TierConfig{})
	tiers.Embeddings.Set(EmbeddingKey("text"), []float32{1})
	tiers.Queries.Set(QueryKey("q", 5, "", false), nil)
	tiers.InvalidateQueries()
	if tiers.Queries.Size() != 0 {
		t.Error("query tier should be empty after invalidation")
	}
	if tiers.Embeddings.Size() != 1 {
		t.Error("embedding tier should be untouched by query invalidation")
	}
}
