package cache

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

// TestLRUCacheEviction tests size-based eviction
func TestLRUCacheEviction(t *testing.T) {
	var evicted []string
	cache := NewLRUCache[string](3, time.Hour, WithEvictCallback(func(key string, _ string) {
		evicted = append(evicted, key)
	}))

	cache.Set("key1", "value1")
	cache.Set("key2", "value2")
	cache.Set("key3", "value3")
	cache.Set("key4", "value4") // evicts key1

	if _, found := cache.Get("key1"); found {
		t.Error("key1 should have been evicted")
	}
	for _, k := range []string{"key2", "key3", "key4"} {
		if _, found := cache.Get(k); !found {
			t.Errorf("%s should still exist", k)
		}
	}
	if len(evicted) != 1 || evicted[0] != "key1" {
		t.Errorf("evict callback saw %v", evicted)
	}
}

func TestLRUCacheGetRefreshesRecency(t *testing.T) {
	cache := NewLRUCache[int](2, time.Hour)
	cache.Set("a", 1)
	cache.Set("b", 2)
	cache.Get("a")
	cache.Set("c", 3) // evicts b, the least recently used

	if _, found := cache.Get("b"); found {
		t.Error("b should have been evicted")
	}
	if _, found := cache.Get("a"); !found {
		t.Error("a should survive after being read")
	}
}

// TestLRUCacheSlidingTTL tests time-based expiration
func TestLRUCacheSlidingTTL(t *testing.T) {
	clock := newClock()
	cache := NewLRUCache[string](100, time.Minute, WithClock[string](clock.Now))

	cache.Set("key1", "value1")
	clock.Advance(50 * time.Second)
	if _, found := cache.Get("key1"); !found {
		t.Fatal("key1 should exist before ttl")
	}
	clock.Advance(50 * time.Second)
	if _, found := cache.Get("key1"); !found {
		t.Fatal("key1 ttl should slide on access")
	}
	clock.Advance(61 * time.Second)
	if _, found := cache.Get("key1"); found {
		t.Fatal("key1 should have expired")
	}
}

// TestLRUCacheCleanExpired tests the cleanup mechanism
func TestLRUCacheCleanExpired(t *testing.T) {
	clock := newClock()
	cache := NewLRUCache[string](100, time.Minute, WithClock[string](clock.Now))

	cache.Set("key1", "value1")
	cache.Set("key2", "value2")
	clock.Advance(30 * time.Second)
	cache.Set("key3", "value3")
	clock.Advance(45 * time.Second)

	if got := len(cache.Values()); got != 1 {
		t.Fatalf("Values() returned %d live entries, want 1", got)
	}
	if removed := cache.CleanExpired(); removed != 2 {
		t.Errorf("Expected 2 items cleaned, got %d", removed)
	}
	if cache.Size() != 1 {
		t.Errorf("Size() = %d, want 1", cache.Size())
	}
}

func TestManagerCleansRegisteredCaches(t *testing.T) {
	clock := newClock()
	a := NewLRUCache[int](10, time.Second, WithClock[int](clock.Now))
	b := NewLRUCache[int](10, time.Second, WithClock[int](clock.Now))
	a.Set("x", 1)
	b.Set("y", 2)
	b.Set("z", 3)
	clock.Advance(2 * time.Second)

	m := NewManager(nil)
	m.Register(a)
	m.Register(b)
	if n := m.CleanNow(); n != 3 {
		t.Fatalf("CleanNow() = %d, want 3", n)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

// BenchmarkLRUCache benchmarks cache performance
func BenchmarkLRUCache(b *testing.B) {
	cache := NewLRUCache[int](1000, time.Hour)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if i%10 == 0 {
			cache.Set("bench-key", i)
		} else {
			cache.Get("bench-key")
		}
	}
}
