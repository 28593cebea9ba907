package lru_cache

import (
	"fmt"
	"sync"
	"testing"
)

// TestLRUCache_Concurrency stress-tests the cache with concurrent reads and writes.
// Run this test with the -race flag to detect race conditions.
func TestLRUCache_Concurrency(t *testing.T) {
	cache := NewLRUCache[string, int](10)

	var wg sync.WaitGroup
	numGoroutines := 100
	itemsPerGoroutine := 50

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(goroutineID int) {
			defer wg.Done()
			for j := 0; j < itemsPerGoroutine; j++ {
				key := fmt.Sprintf("key-%d-%d", goroutineID, j)
				value := goroutineID*1000 + j

				err := cache.Put(key, value)
				if err != nil {
					t.Errorf("Goroutine %d failed to put key %s: %v", goroutineID, key, err)
					return
				}

				retrieved, err := cache.Get(key)
				if err != nil {
					// It's possible the key was evicted by another goroutine, so an error isn't a failure.
					continue
				}
				if retrieved != value {
					t.Errorf("Goroutine %d got incorrect value for key %s", goroutineID, key)
				}
			}
		}(i)
	}

	wg.Wait()
}

func TestLRUCache_BasicEviction(t *testing.T) {
	cache := NewLRUCache[string, int](2)

	if err := cache.Put("a", 1); err != nil {
		t.Fatalf("Put a: %v", err)
	}
	if err := cache.Put("b", 2); err != nil {
		t.Fatalf("Put b: %v", err)
	}
	if err := cache.Put("c", 3); err != nil {
		t.Fatalf("Put c: %v", err)
	}

	if cache.Contains("a") {
		t.Errorf("expected 'a' to have been evicted")
	}
	if !cache.Contains("b") || !cache.Contains("c") {
		t.Errorf("expected 'b' and 'c' to remain in the cache")
	}
	if size := cache.Size(); size != 2 {
		t.Errorf("expected size 2, got %d", size)
	}
}

func TestLRUCache_GetRefreshesRecency(t *testing.T) {
	cache := NewLRUCache[string, int](2)
	cache.Put("a", 1)
	cache.Put("b", 2)

	if _, err := cache.Get("a"); err != nil {
		t.Fatalf("Get a: %v", err)
	}
	cache.Put("c", 3)

	if cache.Contains("b") {
		t.Errorf("expected 'b' to have been evicted after 'a' was refreshed")
	}
	if !cache.Contains("a") {
		t.Errorf("expected 'a' to remain after being refreshed")
	}
}

func TestLRUCache_RemoveAndPeek(t *testing.T) {
	cache := NewLRUCache[string, int](3)
	cache.Put("a", 1)

	if _, err := cache.Peek("a"); err != nil {
		t.Fatalf("Peek a: %v", err)
	}
	if err := cache.Remove("a"); err != nil {
		t.Fatalf("Remove a: %v", err)
	}
	if cache.Contains("a") {
		t.Errorf("expected 'a' to be removed")
	}
	if err := cache.Remove("a"); err != ErrKeyNotFound {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}
