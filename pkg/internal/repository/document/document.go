// Package document 实现文档型资产仓库后端.
// 每个资产持久化为一份 JSON 文档，二级索引以带版本号的命名索引行维护在同一键值引擎里；
// 引擎原生只能回答"命中任一值"，全量 AND 匹配复用 repository.MatchAll.
package document

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/yeisme/photovault/pkg/configs"
	"github.com/yeisme/photovault/pkg/internal/model"
	"github.com/yeisme/photovault/pkg/internal/repository"
	"github.com/yeisme/photovault/pkg/internal/storage/kv"
)

// assetDoc 持久化文档：资产记录加修订号.
// upsert 为读-改-写，两个并发写同一资产时后写者静默胜出（见 PutAsset）.
type assetDoc struct {
	model.Asset
	Rev int64 `json:"_rev"`
}

// indexEntry 索引行的值：显示值与列表投影，查询无需再取资产文档.
type indexEntry struct {
	Value  string             `json:"value"`
	Result model.SearchResult `json:"result"`
}

// Repo 文档型仓库.
type Repo struct {
	engine kv.Store
}

// New 创建文档型仓库：连接配置的键值引擎，必要时套上熔断器并核对索引版本.
func New(ctx context.Context) (*Repo, error) {
	client, err := kv.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect document engine: %w", err)
	}

	var engine kv.Store = client

	if cfg := configs.GetConfig().Breaker; cfg.Enabled {
		engine = guard(engine, &cfg)
	}

	return NewWithEngine(ctx, engine)
}

// NewWithEngine 在指定引擎上创建仓库，供自定义接线使用.
func NewWithEngine(ctx context.Context, engine kv.Store) (*Repo, error) {
	repo := &Repo{engine: engine}

	if err := repo.ensureIndexes(ctx); err != nil {
		_ = engine.Close()
		return nil, fmt.Errorf("initialize document indexes: %w", err)
	}

	return repo, nil
}

func init() {
	repository.RegisterFactory(configs.BackendDocument, func(ctx context.Context) (repository.AssetRepository, error) {
		return New(ctx)
	})
}

// getDoc 读取资产文档.
func (r *Repo) getDoc(ctx context.Context, key string) (*assetDoc, error) {
	raw, err := r.engine.Get(ctx, docPrefix+key)
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, repository.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get asset document %s: %w", key, err)
	}

	var doc assetDoc
	if err := sonic.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode asset document %s: %w", key, err)
	}

	return &doc, nil
}

// writeIndexRows 写出资产的全部索引行，并删除不再成立的旧行；最后更新 ref 清单.
// oldKeys 为该资产此前持有的行键，传 nil 表示没有旧行（重建场景）.
func (r *Repo) writeIndexRows(ctx context.Context, a *model.Asset, oldKeys []string) error {
	result := a.Result()
	newKeys := rowKeysFor(a)

	current := make(map[string]struct{}, len(newKeys))
	for _, k := range newKeys {
		current[k] = struct{}{}
	}

	for _, old := range oldKeys {
		if _, keep := current[old]; !keep {
			if err := r.engine.Delete(ctx, old); err != nil {
				return fmt.Errorf("drop stale index row %s: %w", old, err)
			}
		}
	}

	for _, k := range newKeys {
		value, _, err := splitIdxKey(k)
		if err != nil {
			return err
		}

		raw, err := sonic.Marshal(indexEntry{Value: value, Result: result})
		if err != nil {
			return fmt.Errorf("encode index entry: %w", err)
		}

		if err := r.engine.Set(ctx, k, raw); err != nil {
			return fmt.Errorf("write index row %s: %w", k, err)
		}
	}

	refRaw, err := sonic.Marshal(newKeys)
	if err != nil {
		return fmt.Errorf("encode index refs: %w", err)
	}

	if err := r.engine.Set(ctx, refPrefix+a.Key, refRaw); err != nil {
		return fmt.Errorf("write index refs: %w", err)
	}

	return nil
}

// refKeys 读取资产当前持有的索引行键清单.
func (r *Repo) refKeys(ctx context.Context, assetKey string) ([]string, error) {
	raw, err := r.engine.Get(ctx, refPrefix+assetKey)
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("get index refs %s: %w", assetKey, err)
	}

	var keys []string
	if err := sonic.Unmarshal(raw, &keys); err != nil {
		return nil, fmt.Errorf("decode index refs %s: %w", assetKey, err)
	}

	return keys, nil
}

// CountAssets 统计资产文档数.
func (r *Repo) CountAssets(ctx context.Context) (int64, error) {
	keys, err := r.engine.List(ctx, docPrefix)
	if err != nil {
		return 0, fmt.Errorf("count assets: %w", err)
	}

	return int64(len(keys)), nil
}

// GetAssetByID 按记录键取资产.
func (r *Repo) GetAssetByID(ctx context.Context, key string) (*model.Asset, error) {
	doc, err := r.getDoc(ctx, key)
	if err != nil {
		return nil, err
	}

	asset := doc.Asset

	return &asset, nil
}

// GetAssetByDigest 按内容摘要取资产，用于导入前的重复检测.
func (r *Repo) GetAssetByDigest(ctx context.Context, checksum string) (*model.Asset, error) {
	prefix := idxPrefix + "digest." + encSeg(strings.ToLower(checksum)) + "."

	keys, err := r.engine.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("lookup digest %s: %w", checksum, err)
	}

	if len(keys) == 0 {
		return nil, repository.ErrNotFound
	}

	// 摘要约定全库唯一，存在多条时按键序取第一条保证确定性
	sort.Strings(keys)

	_, assetKey, err := splitIdxKey(keys[0])
	if err != nil {
		return nil, err
	}

	return r.GetAssetByID(ctx, assetKey)
}

// PutAsset 按键幂等 upsert.
// 已存在时保留 checksum、byte length、import date 与 original date（创建后视为不可变），
// 其余字段以传入值覆盖. 读-改-写不具备原子性，后写者胜出是已命名并被测试覆盖的行为.
func (r *Repo) PutAsset(ctx context.Context, asset *model.Asset) error {
	if asset.Key == "" {
		return fmt.Errorf("asset key is empty")
	}

	next := *asset
	next.Tags = model.NormalizeTags(next.Tags)

	if next.Location.IsZero() {
		next.Location = nil
	}

	doc := assetDoc{Asset: next, Rev: 1}

	var oldKeys []string

	existing, err := r.getDoc(ctx, asset.Key)

	switch {
	case err == nil:
		doc.Checksum = existing.Checksum
		doc.ByteLength = existing.ByteLength
		doc.ImportDate = existing.ImportDate
		doc.OriginalDate = existing.OriginalDate
		doc.Rev = existing.Rev + 1

		oldKeys, err = r.refKeys(ctx, asset.Key)
		if err != nil {
			return err
		}
	case errors.Is(err, repository.ErrNotFound):
		// 新记录
	default:
		return err
	}

	raw, err := sonic.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode asset document: %w", err)
	}

	if err := r.engine.Set(ctx, docPrefix+asset.Key, raw); err != nil {
		return fmt.Errorf("write asset document %s: %w", asset.Key, err)
	}

	return r.writeIndexRows(ctx, &doc.Asset, oldKeys)
}

// DeleteAsset 管理性删除：移除文档与其全部索引行.
func (r *Repo) DeleteAsset(ctx context.Context, key string) error {
	oldKeys, err := r.refKeys(ctx, key)
	if err != nil {
		return err
	}

	for _, k := range oldKeys {
		if err := r.engine.Delete(ctx, k); err != nil {
			return fmt.Errorf("drop index row %s: %w", k, err)
		}
	}

	if err := r.engine.Delete(ctx, refPrefix+key); err != nil {
		return fmt.Errorf("drop index refs %s: %w", key, err)
	}

	if err := r.engine.Delete(ctx, docPrefix+key); err != nil {
		return fmt.Errorf("drop asset document %s: %w", key, err)
	}

	return nil
}

// rowsForValues 取出命中任一给定值的索引行并集.
func (r *Repo) rowsForValues(ctx context.Context, index string, values []string) ([]repository.IndexRow, error) {
	var rows []repository.IndexRow

	for _, value := range values {
		prefix := idxPrefix + index + "." + encSeg(value) + "."

		keys, err := r.engine.List(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("list %s index: %w", index, err)
		}

		for _, k := range keys {
			entry, assetKey, err := r.getEntry(ctx, k)
			if err != nil {
				return nil, err
			}

			rows = append(rows, repository.IndexRow{AssetKey: assetKey, Value: value, Result: entry.Result})
		}
	}

	return rows, nil
}

// getEntry 读取并解码一条索引行.
func (r *Repo) getEntry(ctx context.Context, key string) (*indexEntry, string, error) {
	_, assetKey, err := splitIdxKey(key)
	if err != nil {
		return nil, "", err
	}

	raw, err := r.engine.Get(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("get index row %s: %w", key, err)
	}

	var entry indexEntry
	if err := sonic.Unmarshal(raw, &entry); err != nil {
		return nil, "", fmt.Errorf("decode index row %s: %w", key, err)
	}

	return &entry, assetKey, nil
}

// QueryByTags 标签超集匹配.
func (r *Repo) QueryByTags(ctx context.Context, tags []string) ([]model.SearchResult, error) {
	values := model.LowerDistinct(tags)

	rows, err := r.rowsForValues(ctx, "tag", values)
	if err != nil {
		return nil, err
	}

	return repository.MatchAll(rows, len(values)), nil
}

// QueryByLocations 每个去重后的请求值都要命中资产的某个位置字段.
func (r *Repo) QueryByLocations(ctx context.Context, locations []string) ([]model.SearchResult, error) {
	values := model.LowerDistinct(locations)

	rows, err := r.rowsForValues(ctx, "loc", values)
	if err != nil {
		return nil, err
	}

	return repository.MatchAll(rows, len(values)), nil
}

// QueryByMediaType 媒体类型精确匹配（大小写无关）.
func (r *Repo) QueryByMediaType(ctx context.Context, mediaType string) ([]model.SearchResult, error) {
	values := model.LowerDistinct([]string{mediaType})

	rows, err := r.rowsForValues(ctx, "media", values)
	if err != nil {
		return nil, err
	}

	return repository.MatchAll(rows, len(values)), nil
}

// queryDates 遍历日期索引并按界过滤；每条索引行都预存了最佳日期.
func (r *Repo) queryDates(ctx context.Context, keep func(t time.Time) bool) ([]model.SearchResult, error) {
	keys, err := r.engine.List(ctx, idxPrefix+"date.")
	if err != nil {
		return nil, fmt.Errorf("list date index: %w", err)
	}

	results := make([]model.SearchResult, 0, len(keys))

	for _, k := range keys {
		entry, _, err := r.getEntry(ctx, k)
		if err != nil {
			return nil, err
		}

		if keep(entry.Result.Date) {
			results = append(results, entry.Result)
		}
	}

	repository.SortResultsByKey(results)

	return results, nil
}

// QueryBeforeDate 最佳日期早于 before（不含界）.
func (r *Repo) QueryBeforeDate(ctx context.Context, before time.Time) ([]model.SearchResult, error) {
	return r.queryDates(ctx, func(t time.Time) bool { return t.Before(before) })
}

// QueryAfterDate 最佳日期不早于 after（含界）.
func (r *Repo) QueryAfterDate(ctx context.Context, after time.Time) ([]model.SearchResult, error) {
	return r.queryDates(ctx, func(t time.Time) bool { return !t.Before(after) })
}

// QueryDateRange 半开区间 [after, before).
func (r *Repo) QueryDateRange(ctx context.Context, after, before time.Time) ([]model.SearchResult, error) {
	return r.queryDates(ctx, func(t time.Time) bool { return !t.Before(after) && t.Before(before) })
}

// QueryNewborn 在 after 当时或之后导入、且无标签无说明无位置标注的资产.
func (r *Repo) QueryNewborn(ctx context.Context, after time.Time) ([]model.SearchResult, error) {
	keys, err := r.engine.List(ctx, idxPrefix+"newborn.")
	if err != nil {
		return nil, fmt.Errorf("list newborn index: %w", err)
	}

	results := make([]model.SearchResult, 0, len(keys))

	for _, k := range keys {
		entry, _, err := r.getEntry(ctx, k)
		if err != nil {
			return nil, err
		}

		imported, err := time.Parse(dateKeyFormat, entry.Value)
		if err != nil {
			return nil, fmt.Errorf("parse newborn index value %q: %w", entry.Value, err)
		}

		if !imported.Before(after) {
			results = append(results, entry.Result)
		}
	}

	repository.SortResultsByKey(results)

	return results, nil
}

// countIndex 对一份索引做分组计数，标签即索引值.
func (r *Repo) countIndex(ctx context.Context, index string) ([]model.AttributeCount, error) {
	keys, err := r.engine.List(ctx, idxPrefix+index+".")
	if err != nil {
		return nil, fmt.Errorf("list %s index: %w", index, err)
	}

	byLabel := make(map[string]int64)

	for _, k := range keys {
		value, _, err := splitIdxKey(k)
		if err != nil {
			return nil, err
		}

		byLabel[value]++
	}

	counts := make([]model.AttributeCount, 0, len(byLabel))
	for label, count := range byLabel {
		counts = append(counts, model.AttributeCount{Label: label, Count: count})
	}

	return counts, nil
}

// AllTags 每个标签（小写）下的资产数.
func (r *Repo) AllTags(ctx context.Context) ([]model.AttributeCount, error) {
	return r.countIndex(ctx, "tag")
}

// AllLocationParts 每个位置片段（小写）下的资产数.
func (r *Repo) AllLocationParts(ctx context.Context) ([]model.AttributeCount, error) {
	return r.countIndex(ctx, "loc")
}

// AllYears 每个最佳日期年份下的资产数.
func (r *Repo) AllYears(ctx context.Context) ([]model.AttributeCount, error) {
	return r.countIndex(ctx, "year")
}

// AllMediaTypes 每个媒体类型（小写）下的资产数.
func (r *Repo) AllMediaTypes(ctx context.Context) ([]model.AttributeCount, error) {
	return r.countIndex(ctx, "media")
}

// RawLocationRecords 观察到的去重 (label, city, region) 三元组，全空者排除.
func (r *Repo) RawLocationRecords(ctx context.Context) ([]model.Location, error) {
	keys, err := r.engine.List(ctx, idxPrefix+"locrec.")
	if err != nil {
		return nil, fmt.Errorf("list locrec index: %w", err)
	}

	seen := make(map[model.Location]struct{})
	records := make([]model.Location, 0)

	for _, k := range keys {
		entry, _, err := r.getEntry(ctx, k)
		if err != nil {
			return nil, err
		}

		if entry.Result.Location.IsZero() {
			continue
		}

		loc := *entry.Result.Location
		if _, dup := seen[loc]; dup {
			continue
		}

		seen[loc] = struct{}{}
		records = append(records, loc)
	}

	return records, nil
}

// FetchAssets 按键序向前分页遍历全量语料，用于批量导出.
func (r *Repo) FetchAssets(ctx context.Context, cursor string, limit int) ([]model.Asset, string, error) {
	if cursor == repository.CursorDone {
		return nil, repository.CursorDone, nil
	}

	if limit < 1 {
		limit = 1
	}

	docKeys, err := r.engine.List(ctx, docPrefix)
	if err != nil {
		return nil, "", fmt.Errorf("list asset documents: %w", err)
	}

	assetKeys := make([]string, 0, len(docKeys))

	for _, dk := range docKeys {
		k := strings.TrimPrefix(dk, docPrefix)
		if cursor == "" || k > cursor {
			assetKeys = append(assetKeys, k)
		}
	}

	sort.Strings(assetKeys)

	next := repository.CursorDone
	if len(assetKeys) > limit {
		assetKeys = assetKeys[:limit]
		next = assetKeys[limit-1]
	}

	assets := make([]model.Asset, 0, len(assetKeys))

	for _, k := range assetKeys {
		doc, err := r.getDoc(ctx, k)
		if err != nil {
			return nil, "", err
		}

		assets = append(assets, doc.Asset)
	}

	return assets, next, nil
}

// StoreAssets 逐条幂等 upsert，无整体事务；中途失败时已提交前缀保持一致，重放安全.
func (r *Repo) StoreAssets(ctx context.Context, assets []model.Asset) error {
	for i := range assets {
		if err := r.PutAsset(ctx, &assets[i]); err != nil {
			return fmt.Errorf("store assets: %d of %d committed: %w", i, len(assets), err)
		}
	}

	return nil
}

// Ping 保活探测，由心跳任务周期调用防止空闲连接被回收.
func (r *Repo) Ping(ctx context.Context) error {
	_, err := r.engine.Exists(ctx, metaVersionKey)
	return err
}

// Close 关闭底层引擎.
func (r *Repo) Close() error {
	return r.engine.Close()
}
