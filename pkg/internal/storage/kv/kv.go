// Package kv 提供文档型仓库后端使用的键值引擎接口和实现.
// 文档后端把资产文档与二级索引行都落在这一层，键按前缀划分命名空间.
package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeisme/photovault/pkg/configs"
)

// ErrKeyNotFound 键不存在.
var ErrKeyNotFound = errors.New("key not found")

type Client struct {
	Store
}

// Store 定义键值引擎接口.
type Store interface {
	// Get 获取键的值；键不存在时返回 ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set 设置键的值.
	Set(ctx context.Context, key string, value []byte) error
	// Delete 删除键，键不存在不算错误.
	Delete(ctx context.Context, key string) error
	// Exists 检查键是否存在.
	Exists(ctx context.Context, key string) (bool, error)
	// List 返回具有给定前缀的所有键，顺序不作保证.
	List(ctx context.Context, prefix string) ([]string, error)
	// Close 关闭存储连接.
	Close() error
}

// EngineType 键值引擎类型.
type EngineType string

const (
	EngineMemory EngineType = "memory"
	EngineRedis  EngineType = "redis"
	EngineNATS   EngineType = "nats"
)

// Factory 定义创建 Store 的工厂函数类型.
type Factory func(ctx context.Context, config any) (Store, error)

// factories 存储引擎类型到工厂的映射.
var factories = make(map[EngineType]Factory)

// RegisterFactory 注册引擎工厂函数.
func RegisterFactory(engine EngineType, factory Factory) {
	factories[engine] = factory
}

// GetRegisteredEngines 返回已注册的引擎类型列表.
func GetRegisteredEngines() []EngineType {
	engines := make([]EngineType, 0, len(factories))
	for engine := range factories {
		engines = append(engines, engine)
	}

	return engines
}

// NewStore 根据类型创建 Store 实例.
func NewStore(ctx context.Context, engine EngineType, config any) (Store, error) {
	factory, exists := factories[engine]
	if !exists {
		return nil, fmt.Errorf("unsupported kv engine: %s", engine)
	}

	return factory(ctx, config)
}

// NewClient 根据全局配置创建并返回一个新的 Client 实例.
func NewClient(ctx context.Context) (*Client, error) {
	cfg := configs.GetConfig().DocStore

	var engineCfg any

	switch EngineType(cfg.Type) {
	case EngineRedis:
		engineCfg = &cfg.Redis
	case EngineNATS:
		engineCfg = &cfg.NATS
	}

	store, err := NewStore(ctx, EngineType(cfg.Type), engineCfg)
	if err != nil {
		return nil, err
	}

	return &Client{Store: store}, nil
}
