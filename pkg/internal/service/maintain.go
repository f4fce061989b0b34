package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/oklog/ulid/v2"

	"github.com/yeisme/photovault/pkg/configs"
	"github.com/yeisme/photovault/pkg/internal/model"
	"github.com/yeisme/photovault/pkg/internal/repository"
	nlog "github.com/yeisme/photovault/pkg/log"
	"github.com/yeisme/photovault/pkg/rule"
)

// importBatchSize 批量导入时每批提交的记录数.
const importBatchSize = 100

// maxRecordBytes 单条导出记录的行长上限.
const maxRecordBytes = 1 << 20

// Reindexer 支持显式重建二级索引的仓库后端实现该接口.
type Reindexer interface {
	Reindex(ctx context.Context) error
}

// SaveAsset 幂等写入一条资产记录.
func (s *CatalogService) SaveAsset(ctx context.Context, asset *model.Asset) error {
	return s.repo.PutAsset(ctx, asset)
}

// GetAsset 按记录键取资产.
func (s *CatalogService) GetAsset(ctx context.Context, key string) (*model.Asset, error) {
	return s.repo.GetAssetByID(ctx, key)
}

// RemoveAsset 管理性删除一条资产记录. 对象存储中的文件不动，留给独立的清理流程.
func (s *CatalogService) RemoveAsset(ctx context.Context, key string) error {
	return s.repo.DeleteAsset(ctx, key)
}

// Export 以游标遍历全量语料，按每行一条 JSON 写出，用于备份.
// 返回导出的记录条数.
func (s *CatalogService) Export(ctx context.Context, w io.Writer) (int, error) {
	fetchLimit := configs.GetConfig().App.FetchLimit
	if fetchLimit < 1 {
		fetchLimit = 1
	}

	total := 0
	cursor := ""

	for {
		assets, next, err := s.repo.FetchAssets(ctx, cursor, fetchLimit)
		if err != nil {
			return total, fmt.Errorf("export: %w", err)
		}

		for i := range assets {
			line, err := sonic.Marshal(&assets[i])
			if err != nil {
				return total, fmt.Errorf("export: encode asset %s: %w", assets[i].Key, err)
			}

			if _, err := w.Write(append(line, '\n')); err != nil {
				return total, fmt.Errorf("export: %w", err)
			}

			total++
		}

		if next == "" || next == repository.CursorDone {
			break
		}

		cursor = next
	}

	nlog.Logger().Info().Int("assets", total).Msg("catalog export complete")

	return total, nil
}

// Import 读入每行一条 JSON 的备份流并分批幂等写回.
// 无整体事务：某一批失败时此前各批已提交，按键幂等可安全重放整个文件.
func (s *CatalogService) Import(ctx context.Context, r io.Reader) (int, error) {
	batchID := ulid.Make().String()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordBytes)

	total := 0
	batch := make([]model.Asset, 0, importBatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}

		if err := s.repo.StoreAssets(ctx, batch); err != nil {
			return fmt.Errorf("import batch %s: %w", batchID, err)
		}

		total += len(batch)
		batch = batch[:0]

		return nil
	}

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var asset model.Asset
		if err := sonic.Unmarshal(line, &asset); err != nil {
			return total, fmt.Errorf("import batch %s: decode record %d: %w", batchID, total+len(batch), err)
		}

		if err := rule.ValidateStruct(&asset); err != nil {
			return total, fmt.Errorf("import batch %s: invalid record %d: %w", batchID, total+len(batch), err)
		}

		batch = append(batch, asset)

		if len(batch) >= importBatchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return total, fmt.Errorf("import batch %s: %w", batchID, err)
	}

	if err := flush(); err != nil {
		return total, err
	}

	nlog.Logger().Info().Str("batch", batchID).Int("assets", total).Msg("catalog import complete")

	return total, nil
}

// Reindex 显式重建二级索引；仅文档型后端支持，关系型后端的视图随架构迁移维护.
func (s *CatalogService) Reindex(ctx context.Context) error {
	reindexer, ok := s.repo.(Reindexer)
	if !ok {
		return fmt.Errorf("reindex: backend does not maintain explicit indexes")
	}

	return reindexer.Reindex(ctx)
}

// ErrBlobDisabled 对象存储未启用.
var ErrBlobDisabled = errors.New("blob store is not enabled")

// AssetDownloadURL 校验记录存在后返回原始文件的预签名下载链接.
func (s *CatalogService) AssetDownloadURL(ctx context.Context, key string) (string, error) {
	if s.blob == nil {
		return "", ErrBlobDisabled
	}

	if _, err := s.repo.GetAssetByID(ctx, key); err != nil {
		return "", err
	}

	return s.blob.AssetURL(ctx, key)
}

// ThumbnailURL 校验记录存在后返回指定尺寸缩略图的预签名下载链接.
func (s *CatalogService) ThumbnailURL(ctx context.Context, key string, width, height int) (string, error) {
	if s.blob == nil {
		return "", ErrBlobDisabled
	}

	if _, err := s.repo.GetAssetByID(ctx, key); err != nil {
		return "", err
	}

	return s.blob.ThumbnailURL(ctx, key, width, height)
}
