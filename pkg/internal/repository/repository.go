// Package repository 定义资产记录仓库的抽象契约与后端工厂.
// 两个可互换实现（文档型、关系型）必须对同一语料返回完全一致的查询结果；
// 消费方只依赖 AssetRepository 接口，后端在进程启动时通过配置确定一次.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yeisme/photovault/pkg/configs"
	"github.com/yeisme/photovault/pkg/internal/model"
)

var (
	// ErrNotFound 按键或摘要查找时记录不存在. 这是正常分支（用于重复导入检测），不是异常.
	ErrNotFound = errors.New("asset not found")
)

// CursorDone 批量导出游标耗尽后的哨兵值. 含 ':' 字符，不可能与 base64 记录键冲突.
const CursorDone = ":done:"

// AssetRepository 资产记录仓库的公共契约，语义与后端无关.
//
// 约定：
//   - QueryByTags 返回标签集为给定集合超集的资产（大小写无关），按键去重；
//   - QueryByLocations 要求每个去重后的请求值命中资产 label/city/region 之一；
//   - QueryAfterDate 含下界，QueryBeforeDate 不含上界，QueryDateRange 为半开区间 [after, before)；
//   - PutAsset 为按键幂等 upsert，冲突时只覆盖 filename、media type、caption、tags、
//     location、user date，不得改动 checksum、byte length、import date、original date；
//   - StoreAssets 逐条 upsert、无整体事务，失败时已提交前缀保持一致，可安全重放；
//   - FetchAssets 按键序向前分页遍历全量语料，耗尽后返回 CursorDone.
type AssetRepository interface {
	CountAssets(ctx context.Context) (int64, error)
	GetAssetByID(ctx context.Context, key string) (*model.Asset, error)
	GetAssetByDigest(ctx context.Context, checksum string) (*model.Asset, error)

	AllTags(ctx context.Context) ([]model.AttributeCount, error)
	AllLocationParts(ctx context.Context) ([]model.AttributeCount, error)
	AllYears(ctx context.Context) ([]model.AttributeCount, error)
	AllMediaTypes(ctx context.Context) ([]model.AttributeCount, error)
	RawLocationRecords(ctx context.Context) ([]model.Location, error)

	PutAsset(ctx context.Context, asset *model.Asset) error
	DeleteAsset(ctx context.Context, key string) error

	QueryByTags(ctx context.Context, tags []string) ([]model.SearchResult, error)
	QueryByLocations(ctx context.Context, locations []string) ([]model.SearchResult, error)
	QueryByMediaType(ctx context.Context, mediaType string) ([]model.SearchResult, error)
	QueryBeforeDate(ctx context.Context, before time.Time) ([]model.SearchResult, error)
	QueryAfterDate(ctx context.Context, after time.Time) ([]model.SearchResult, error)
	QueryDateRange(ctx context.Context, after, before time.Time) ([]model.SearchResult, error)
	QueryNewborn(ctx context.Context, after time.Time) ([]model.SearchResult, error)

	FetchAssets(ctx context.Context, cursor string, limit int) ([]model.Asset, string, error)
	StoreAssets(ctx context.Context, assets []model.Asset) error

	// Ping 后端保活/健康检查，由心跳任务周期调用.
	Ping(ctx context.Context) error
	Close() error
}

// Factory 定义创建仓库后端的工厂函数类型.
type Factory func(ctx context.Context) (AssetRepository, error)

// factories 存储后端类型到工厂的映射.
var factories = make(map[configs.RepoBackend]Factory)

// RegisterFactory 注册仓库后端工厂函数.
func RegisterFactory(backend configs.RepoBackend, factory Factory) {
	factories[backend] = factory
}

// RegisteredBackends 返回已注册的后端类型列表.
func RegisteredBackends() []configs.RepoBackend {
	backends := make([]configs.RepoBackend, 0, len(factories))
	for backend := range factories {
		backends = append(backends, backend)
	}

	return backends
}

// New 根据配置创建仓库实例；启用监控时包装操作计数器.
func New(ctx context.Context) (AssetRepository, error) {
	cfg := configs.GetConfig()

	factory, exists := factories[cfg.Repo.Backend]
	if !exists {
		return nil, fmt.Errorf("unsupported repository backend: %s", cfg.Repo.Backend)
	}

	repo, err := factory(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.Metrics.Enabled {
		repo = Instrument(repo, string(cfg.Repo.Backend))
	}

	return repo, nil
}
