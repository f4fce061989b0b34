// Package cache 提供基于键值存储的泛型缓存实现.
//
// 缓存值用 JSON 信封包装并携带过期时间，因此任意 kv.Store 实现
// 都可以作为后端，不要求引擎本身支持 TTL.
//
// 基本用法:
//
//	c := cache.NewCache(store)
//
//	// 缓存预签名链接
//	err := cache.Set(ctx, c, "url:thumb:256x256:"+key, url, 10*time.Minute)
//
//	// 获取缓存数据
//	url, err := cache.Get[string](ctx, c, "url:thumb:256x256:"+key)
//
//	// 使用 GetOrSet 模式
//	url, err := cache.GetOrSet(ctx, c, key, func() (string, error) {
//	    return presign(ctx, key)
//	}, 10*time.Minute)
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/yeisme/photovault/pkg/internal/storage/kv"
)

// ErrExpired 缓存值已过期.
var ErrExpired = errors.New("cache value expired")

// envelope 缓存信封，ExpiresAt 为 Unix 纳秒时间戳，0 表示永不过期.
type envelope struct {
	Value     json.RawMessage `json:"value"`
	ExpiresAt int64           `json:"expires_at,omitempty"`
}

// Cache 基于 kv.Store 的缓存实现.
type Cache struct {
	store kv.Store
}

// NewCache 创建一个新的缓存实例.
func NewCache(store kv.Store) *Cache {
	return &Cache{
		store: store,
	}
}

// Get 泛型获取缓存值. 过期的值会被惰性删除并返回 ErrExpired.
func Get[T any](ctx context.Context, c *Cache, key string) (T, error) {
	var zero T

	data, err := c.store.Get(ctx, key)
	if err != nil {
		return zero, err
	}

	var env envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return zero, fmt.Errorf("failed to unmarshal cache envelope: %w", err)
	}

	if env.ExpiresAt != 0 && time.Now().UnixNano() > env.ExpiresAt {
		_ = c.store.Delete(ctx, key)

		return zero, ErrExpired
	}

	var value T
	if err := sonic.Unmarshal(env.Value, &value); err != nil {
		return zero, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}

	return value, nil
}

// Set 泛型设置缓存值，ttl 为 0 表示永不过期.
func Set[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) error {
	raw, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	env := envelope{Value: raw}
	if ttl > 0 {
		env.ExpiresAt = time.Now().Add(ttl).UnixNano()
	}

	data, err := sonic.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal cache envelope: %w", err)
	}

	return c.store.Set(ctx, key, data)
}

// Delete 删除缓存键.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

// Exists 检查缓存键是否存在. 不检查过期时间.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	return c.store.Exists(ctx, key)
}

// GetOrSet 获取缓存值，如果不存在则设置.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, getter func() (T, error), ttl time.Duration) (T, error) {
	var zero T

	// 尝试获取
	if value, err := Get[T](ctx, c, key); err == nil {
		return value, nil
	}

	// 获取新值
	value, err := getter()
	if err != nil {
		return zero, err
	}

	// 设置缓存
	if setErr := Set(ctx, c, key, value, ttl); setErr != nil {
		// 缓存失败，但仍返回值
		return value, nil
	}

	return value, nil
}

// Clear 按前缀清空缓存，空前缀清空全部.
func (c *Cache) Clear(ctx context.Context, prefix string) error {
	keys, err := c.store.List(ctx, prefix)
	if err != nil {
		return err
	}

	for _, key := range keys {
		if delErr := c.store.Delete(ctx, key); delErr != nil {
			return delErr
		}
	}

	return nil
}
