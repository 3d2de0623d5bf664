package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/credora-labs/credora/internal/domain"
)

func TestLRUCacheSetGet(t *testing.T) {
	c := NewLRUCache(10)
	defer c.Close()

	ctx := context.Background()

	if err := c.Set(ctx, "cibil:a@x.com", []byte("720"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, err := c.Get(ctx, "cibil:a@x.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(val) != "720" {
		t.Errorf("Get = %q, want 720", val)
	}
}

func TestLRUCacheMiss(t *testing.T) {
	c := NewLRUCache(10)
	defer c.Close()

	val, err := c.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if val != nil {
		t.Errorf("Get = %q, want nil on miss", val)
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	c := NewLRUCache(10)
	defer c.Close()

	ctx := context.Background()

	if err := c.Set(ctx, "key", []byte("v"), -time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if val != nil {
		t.Error("expired entry returned")
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache(3)
	defer c.Close()

	ctx := context.Background()

	for i := 0; i < 4; i++ {
		key := fmt.Sprintf("key-%d", i)
		if err := c.Set(ctx, key, []byte("v"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	// Oldest entry should be evicted
	val, _ := c.Get(ctx, "key-0")
	if val != nil {
		t.Error("key-0 should be evicted")
	}

	size, capacity := c.Stats()
	if size != 3 || capacity != 3 {
		t.Errorf("Stats = (%d, %d), want (3, 3)", size, capacity)
	}
}

func TestLRUCacheRecentlyUsedSurvives(t *testing.T) {
	c := NewLRUCache(2)
	defer c.Close()

	ctx := context.Background()

	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "b", []byte("2"), time.Minute)

	// Touch "a" so "b" becomes the eviction candidate
	c.Get(ctx, "a")
	c.Set(ctx, "c", []byte("3"), time.Minute)

	if val, _ := c.Get(ctx, "a"); val == nil {
		t.Error("recently used entry evicted")
	}
	if val, _ := c.Get(ctx, "b"); val != nil {
		t.Error("least recently used entry survived")
	}
}

func TestLRUCacheDelete(t *testing.T) {
	c := NewLRUCache(10)
	defer c.Close()

	ctx := context.Background()

	c.Set(ctx, "key", []byte("v"), time.Minute)
	if err := c.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if val, _ := c.Get(ctx, "key"); val != nil {
		t.Error("deleted entry returned")
	}
}

func TestNewFactory(t *testing.T) {
	c, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 100})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	if _, ok := c.(*LRUCache); !ok {
		t.Errorf("New returned %T, want *LRUCache", c)
	}
}

func TestNewFactoryUnsupported(t *testing.T) {
	if _, err := New(domain.CacheConfig{Type: "memcached"}); err == nil {
		t.Error("expected error for unsupported cache type")
	}
}
