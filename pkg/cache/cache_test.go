package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yeisme/photovault/pkg/cache"
	"github.com/yeisme/photovault/pkg/internal/storage/kv"
)

// testRecord 测试用的结构体.
type testRecord struct {
	Key   string `json:"key"`
	URL   string `json:"url"`
	Count int    `json:"count"`
}

func newCache(t *testing.T) *cache.Cache {
	t.Helper()

	store, err := kv.NewMemoryStore(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })

	return cache.NewCache(store)
}

// TestSetGet 测试基本的写入读取.
func TestSetGet(t *testing.T) {
	ctx := context.Background()
	c := newCache(t)

	want := testRecord{Key: "a", URL: "https://example.com/a", Count: 3}
	if err := cache.Set(ctx, c, "rec:a", want, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := cache.Get[testRecord](ctx, c, "rec:a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

// TestGetMissing 测试缓存未命中.
func TestGetMissing(t *testing.T) {
	ctx := context.Background()
	c := newCache(t)

	if _, err := cache.Get[string](ctx, c, "nope"); !errors.Is(err, kv.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

// TestExpiry 测试过期值被惰性删除.
func TestExpiry(t *testing.T) {
	ctx := context.Background()
	c := newCache(t)

	if err := cache.Set(ctx, c, "short", "v", time.Nanosecond); err != nil {
		t.Fatalf("Set: %v", err)
	}

	time.Sleep(time.Millisecond)

	if _, err := cache.Get[string](ctx, c, "short"); !errors.Is(err, cache.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	// 过期读取后键应当已被删除
	exists, err := c.Exists(ctx, "short")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}

	if exists {
		t.Fatal("expired key should be deleted")
	}
}

// TestGetOrSet 测试 GetOrSet 模式.
func TestGetOrSet(t *testing.T) {
	ctx := context.Background()
	c := newCache(t)

	calls := 0
	getter := func() (string, error) {
		calls++

		return "value", nil
	}

	for i := 0; i < 3; i++ {
		got, err := cache.GetOrSet(ctx, c, "once", getter, time.Hour)
		if err != nil {
			t.Fatalf("GetOrSet: %v", err)
		}

		if got != "value" {
			t.Fatalf("got %q", got)
		}
	}

	if calls != 1 {
		t.Fatalf("getter called %d times, want 1", calls)
	}
}

// TestClear 测试按前缀清空.
func TestClear(t *testing.T) {
	ctx := context.Background()
	c := newCache(t)

	for _, key := range []string{"url:a", "url:b", "rec:c"} {
		if err := cache.Set(ctx, c, key, "v", 0); err != nil {
			t.Fatalf("Set %s: %v", key, err)
		}
	}

	if err := c.Clear(ctx, "url:"); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	for key, want := range map[string]bool{"url:a": false, "url:b": false, "rec:c": true} {
		exists, err := c.Exists(ctx, key)
		if err != nil {
			t.Fatalf("Exists %s: %v", key, err)
		}

		if exists != want {
			t.Fatalf("key %s exists=%v, want %v", key, exists, want)
		}
	}
}
