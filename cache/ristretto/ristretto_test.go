package ristretto

import (
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	t.Parallel()

	for _, n := range []int64{1, 100, 10000} {
		cache, err := New[string](n)
		if err != nil {
			t.Errorf("New(%d) returned an unexpected error: %v", n, err)
		}
		if cache == nil {
			t.Errorf("New(%d) returned a nil cache, but no error", n)
		}
	}

	for _, n := range []int64{0, -1} {
		cache, err := New[string](n)
		if err == nil {
			t.Errorf("New(%d) was expected to return an error, but did not", n)
		}
		if cache != nil {
			t.Errorf("New(%d) was expected to return a nil cache, but did not", n)
		}
	}
}

func TestCache_SetAndGet(t *testing.T) {
	t.Parallel()
	cache, err := New[string](100)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer cache.Close()

	// 1. Basic Set and Get
	key, value := "example.com", "http://example.com/static/icon.png"
	cache.Set(key, value, 1)
	cache.Wait()

	retrieved, found := cache.Get(key)
	if !found {
		t.Errorf("expected to find key %q, but it was not found", key)
	}
	if retrieved != value {
		t.Errorf("expected value %q, but got %q", value, retrieved)
	}

	// 2. Get Non-Existent Key
	retrieved, found = cache.Get("non-existent.com")
	if found {
		t.Error("expected not to find key, but it was found")
	}
	if retrieved != "" {
		t.Errorf("expected zero value \"\", but got %q", retrieved)
	}

	// 3. Overwrite Key
	newValue := "https://cdn.example.com/icon.svg"
	cache.Set(key, newValue, 1)
	cache.Wait()

	retrieved, found = cache.Get(key)
	if !found {
		t.Errorf("expected to find key %q after overwrite, but it was not found", key)
	}
	if retrieved != newValue {
		t.Errorf("expected overwritten value %q, but got %q", newValue, retrieved)
	}
}

func TestCache_SetWithTTL(t *testing.T) {
	t.Parallel()
	cache, err := New[int](100)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer cache.Close()

	key, value := "ttl-key", 123
	ttl := 50 * time.Millisecond

	cache.SetWithTTL(key, value, 1, ttl)
	cache.Wait()

	// 1. Check that the key is present before expiration
	retrieved, found := cache.Get(key)
	if !found {
		t.Fatal("key not found before TTL expiration")
	}
	if retrieved != value {
		t.Fatalf("expected value %d, but got %d", value, retrieved)
	}

	// 2. Wait for the TTL to expire
	time.Sleep(2 * ttl)

	// 3. Expired entries are not returned even before cleanup runs
	retrieved, found = cache.Get(key)
	if found {
		t.Errorf("key was found after TTL expiration, but should have been evicted")
	}
	if retrieved != 0 {
		t.Errorf("expected zero value 0 for int, but got %d", retrieved)
	}
}

func TestCache_ZeroValue(t *testing.T) {
	t.Parallel()

	type testStruct struct{ A int }
	t.Run("struct", func(t *testing.T) {
		cache, _ := New[testStruct](10)
		val, found := cache.Get("key")
		if found || val != (testStruct{}) {
			t.Errorf(`expected ({}, false), got (%v, %v)`, val, found)
		}
	})

	t.Run("pointer", func(t *testing.T) {
		cache, _ := New[*testStruct](10)
		val, found := cache.Get("key")
		if found || val != nil {
			t.Errorf(`expected (nil, false), got (%v, %v)`, val, found)
		}
	})
}
