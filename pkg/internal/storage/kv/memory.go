package kv

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryStore 基于 sync.Map 的内存引擎，用于测试和单机小目录.
type MemoryStore struct {
	data sync.Map // 并发安全的 map
}

// NewMemoryStore 创建内存引擎实例.
func NewMemoryStore(ctx context.Context, config any) (Store, error) {
	// 内存实现不需要特殊配置
	return &MemoryStore{}, nil
}

// Get 获取键的值.
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, exists := m.data.Load(key)
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	data, ok := value.([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid value type for key: %s", key)
	}

	// 返回副本
	result := make([]byte, len(data))
	copy(result, data)

	return result, nil
}

// Set 设置键的值.
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	// 复制值
	data := make([]byte, len(value))
	copy(data, value)

	m.data.Store(key, data)

	return nil
}

// Delete 删除键.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.data.Delete(key)
	return nil
}

// Exists 检查键是否存在.
func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	_, exists := m.data.Load(key)
	return exists, nil
}

// List 返回具有给定前缀的所有键.
func (m *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)

	m.data.Range(func(key, value any) bool {
		k, ok := key.(string)
		if !ok {
			return true // 继续遍历
		}

		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}

		return true
	})

	return keys, nil
}

// Close 关闭存储（内存实现无需操作）.
func (m *MemoryStore) Close() error {
	return nil
}

func init() {
	RegisterFactory(EngineMemory, NewMemoryStore)
}
