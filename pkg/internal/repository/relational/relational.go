// Package relational 实现关系型资产仓库后端.
// 全部字段放在单张宽表里，标签与位置以制表符分隔编码；两个递归 CTE 视图
// 把它们展开为每值一行供分组计数和多值匹配使用，索引年份由生成列维护.
package relational

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeisme/photovault/pkg/configs"
	"github.com/yeisme/photovault/pkg/internal/model"
	"github.com/yeisme/photovault/pkg/internal/repository"
	"github.com/yeisme/photovault/pkg/internal/storage/db"
)

// assetRow 宽表行. index_year 为存储生成列，只读.
type assetRow struct {
	AssetKey     string     `gorm:"column:asset_key;primaryKey"`
	Checksum     string     `gorm:"column:checksum"`
	FileName     string     `gorm:"column:file_name"`
	ByteLength   int64      `gorm:"column:byte_length"`
	MediaType    string     `gorm:"column:media_type"`
	Caption      string     `gorm:"column:caption"`
	Tags         string     `gorm:"column:tags"`
	Location     string     `gorm:"column:location"`
	ImportDate   time.Time  `gorm:"column:import_date"`
	OriginalDate *time.Time `gorm:"column:original_date"`
	UserDate     *time.Time `gorm:"column:user_date"`
	IndexYear    int        `gorm:"column:index_year;->"`
}

func (assetRow) TableName() string {
	return "assets"
}

// encodeTags 标签编码为制表符分隔串，写入前先归一化.
func encodeTags(tags []string) string {
	return strings.Join(model.NormalizeTags(tags), fieldSep)
}

func decodeTags(s string) []string {
	if s == "" {
		return nil
	}

	return strings.Split(s, fieldSep)
}

// encodeLocation 位置编码为 label、city、region 三段制表符分隔串，空位置编码为空串.
func encodeLocation(loc *model.Location) string {
	if loc.IsZero() {
		return ""
	}

	return loc.Label + fieldSep + loc.City + fieldSep + loc.Region
}

func decodeLocation(s string) *model.Location {
	if s == "" {
		return nil
	}

	parts := strings.SplitN(s, fieldSep, 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}

	return &model.Location{Label: parts[0], City: parts[1], Region: parts[2]}
}

func assetToRow(a *model.Asset) assetRow {
	return assetRow{
		AssetKey:     a.Key,
		Checksum:     a.Checksum,
		FileName:     a.FileName,
		ByteLength:   a.ByteLength,
		MediaType:    a.MediaType,
		Caption:      a.Caption,
		Tags:         encodeTags(a.Tags),
		Location:     encodeLocation(a.Location),
		ImportDate:   a.ImportDate,
		OriginalDate: a.OriginalDate,
		UserDate:     a.UserDate,
	}
}

func rowToAsset(row *assetRow) model.Asset {
	return model.Asset{
		Key:          row.AssetKey,
		Checksum:     row.Checksum,
		FileName:     row.FileName,
		ByteLength:   row.ByteLength,
		MediaType:    row.MediaType,
		Caption:      row.Caption,
		Tags:         decodeTags(row.Tags),
		Location:     decodeLocation(row.Location),
		ImportDate:   row.ImportDate,
		OriginalDate: row.OriginalDate,
		UserDate:     row.UserDate,
	}
}

func rowResult(row *assetRow) model.SearchResult {
	asset := rowToAsset(row)
	return asset.Result()
}

// Repo 关系型仓库.
type Repo struct {
	db *gorm.DB
}

// New 创建关系型仓库：连接配置的数据库并核对架构版本.
func New(ctx context.Context) (*Repo, error) {
	client, err := db.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect relational engine: %w", err)
	}

	return NewWithDB(ctx, client.GetDB())
}

// NewWithDB 在已打开的连接上创建仓库，供自定义接线使用.
func NewWithDB(ctx context.Context, gdb *gorm.DB) (*Repo, error) {
	if err := ensureSchema(ctx, gdb); err != nil {
		return nil, fmt.Errorf("initialize relational schema: %w", err)
	}

	return &Repo{db: gdb}, nil
}

func init() {
	repository.RegisterFactory(configs.BackendRelational, func(ctx context.Context) (repository.AssetRepository, error) {
		return New(ctx)
	})
}

// CountAssets 统计资产行数.
func (r *Repo) CountAssets(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&assetRow{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count assets: %w", err)
	}

	return count, nil
}

// GetAssetByID 按记录键取资产.
func (r *Repo) GetAssetByID(ctx context.Context, key string) (*model.Asset, error) {
	var row assetRow

	err := r.db.WithContext(ctx).First(&row, "asset_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get asset %s: %w", key, err)
	}

	asset := rowToAsset(&row)

	return &asset, nil
}

// GetAssetByDigest 按内容摘要取资产. 摘要约定全库唯一，存在多行时按键序取第一行保证确定性.
func (r *Repo) GetAssetByDigest(ctx context.Context, checksum string) (*model.Asset, error) {
	var row assetRow

	err := r.db.WithContext(ctx).
		Where("lower(checksum) = ?", strings.ToLower(checksum)).
		Order("asset_key").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("lookup digest %s: %w", checksum, err)
	}

	asset := rowToAsset(&row)

	return &asset, nil
}

// PutAsset 引擎原生 upsert，单语句原子.
// 冲突时只覆盖 file name、media type、caption、tags、location 与 user date，
// checksum、byte length、import date、original date 创建后不再改动.
func (r *Repo) PutAsset(ctx context.Context, asset *model.Asset) error {
	if asset.Key == "" {
		return fmt.Errorf("asset key is empty")
	}

	row := assetToRow(asset)

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "asset_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"file_name", "media_type", "caption", "tags", "location", "user_date",
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert asset %s: %w", asset.Key, err)
	}

	return nil
}

// DeleteAsset 管理性删除.
func (r *Repo) DeleteAsset(ctx context.Context, key string) error {
	if err := r.db.WithContext(ctx).Delete(&assetRow{}, "asset_key = ?", key).Error; err != nil {
		return fmt.Errorf("delete asset %s: %w", key, err)
	}

	return nil
}

// viewHits 从展开视图取出命中任一给定值的 (资产, 值) 行并投影，供交集算法消费.
func (r *Repo) viewHits(ctx context.Context, view, column string, values []string) ([]repository.IndexRow, error) {
	if len(values) == 0 {
		return nil, nil
	}

	type hit struct {
		AssetKey string
		Part     string
	}

	var hits []hit

	query := fmt.Sprintf("SELECT asset_key, %s AS part FROM %s WHERE %s IN ?", column, view, column)
	if err := r.db.WithContext(ctx).Raw(query, values).Scan(&hits).Error; err != nil {
		return nil, fmt.Errorf("query %s view: %w", view, err)
	}

	if len(hits) == 0 {
		return nil, nil
	}

	keySet := make(map[string]struct{}, len(hits))
	keys := make([]string, 0, len(hits))

	for _, h := range hits {
		if _, seen := keySet[h.AssetKey]; !seen {
			keySet[h.AssetKey] = struct{}{}
			keys = append(keys, h.AssetKey)
		}
	}

	var rows []assetRow
	if err := r.db.WithContext(ctx).Where("asset_key IN ?", keys).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load candidate assets: %w", err)
	}

	projections := make(map[string]model.SearchResult, len(rows))
	for i := range rows {
		projections[rows[i].AssetKey] = rowResult(&rows[i])
	}

	indexRows := make([]repository.IndexRow, 0, len(hits))
	for _, h := range hits {
		indexRows = append(indexRows, repository.IndexRow{
			AssetKey: h.AssetKey,
			Value:    h.Part,
			Result:   projections[h.AssetKey],
		})
	}

	return indexRows, nil
}

// QueryByTags 标签超集匹配：视图只能证明"命中任一标签"，全量 AND 由共享交集算法完成.
func (r *Repo) QueryByTags(ctx context.Context, tags []string) ([]model.SearchResult, error) {
	values := model.LowerDistinct(tags)

	rows, err := r.viewHits(ctx, "asset_tags", "tag", values)
	if err != nil {
		return nil, err
	}

	return repository.MatchAll(rows, len(values)), nil
}

// QueryByLocations 每个去重后的请求值都要命中资产的某个位置字段.
func (r *Repo) QueryByLocations(ctx context.Context, locations []string) ([]model.SearchResult, error) {
	values := model.LowerDistinct(locations)

	rows, err := r.viewHits(ctx, "asset_location_parts", "part", values)
	if err != nil {
		return nil, err
	}

	return repository.MatchAll(rows, len(values)), nil
}

// QueryByMediaType 媒体类型精确匹配（大小写无关）.
func (r *Repo) QueryByMediaType(ctx context.Context, mediaType string) ([]model.SearchResult, error) {
	var rows []assetRow

	err := r.db.WithContext(ctx).
		Where("media_type <> '' AND lower(media_type) = ?", strings.ToLower(mediaType)).
		Order("asset_key").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query by media type: %w", err)
	}

	return rowResults(rows), nil
}

func rowResults(rows []assetRow) []model.SearchResult {
	results := make([]model.SearchResult, 0, len(rows))
	for i := range rows {
		results = append(results, rowResult(&rows[i]))
	}

	return results
}

// QueryBeforeDate 最佳日期早于 before（不含界）.
func (r *Repo) QueryBeforeDate(ctx context.Context, before time.Time) ([]model.SearchResult, error) {
	var rows []assetRow

	err := r.db.WithContext(ctx).
		Where(bestDateExpr+" < ?", before).
		Order("asset_key").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query before date: %w", err)
	}

	return rowResults(rows), nil
}

// QueryAfterDate 最佳日期不早于 after（含界）.
func (r *Repo) QueryAfterDate(ctx context.Context, after time.Time) ([]model.SearchResult, error) {
	var rows []assetRow

	err := r.db.WithContext(ctx).
		Where(bestDateExpr+" >= ?", after).
		Order("asset_key").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query after date: %w", err)
	}

	return rowResults(rows), nil
}

// QueryDateRange 半开区间 [after, before).
func (r *Repo) QueryDateRange(ctx context.Context, after, before time.Time) ([]model.SearchResult, error) {
	var rows []assetRow

	err := r.db.WithContext(ctx).
		Where(bestDateExpr+" >= ? AND "+bestDateExpr+" < ?", after, before).
		Order("asset_key").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query date range: %w", err)
	}

	return rowResults(rows), nil
}

// QueryNewborn 在 after 当时或之后导入、且无标签无说明无位置标注的资产.
// 位置标注判定需要解码制表符编码，放在应用侧完成以保持谓词跨方言一致.
func (r *Repo) QueryNewborn(ctx context.Context, after time.Time) ([]model.SearchResult, error) {
	var rows []assetRow

	err := r.db.WithContext(ctx).
		Where("tags = '' AND caption = '' AND import_date >= ?", after).
		Order("asset_key").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query newborn: %w", err)
	}

	results := make([]model.SearchResult, 0, len(rows))

	for i := range rows {
		loc := decodeLocation(rows[i].Location)
		if loc != nil && loc.Label != "" {
			continue
		}

		results = append(results, rowResult(&rows[i]))
	}

	return results, nil
}

// labelCount 分组计数扫描目标.
type labelCount struct {
	Label string
	Count int64
}

func toAttributeCounts(rows []labelCount) []model.AttributeCount {
	counts := make([]model.AttributeCount, 0, len(rows))
	for _, row := range rows {
		counts = append(counts, model.AttributeCount{Label: row.Label, Count: row.Count})
	}

	return counts
}

// AllTags 每个标签（小写）下的资产数，由展开视图分组.
func (r *Repo) AllTags(ctx context.Context) ([]model.AttributeCount, error) {
	var rows []labelCount

	err := r.db.WithContext(ctx).
		Raw(`SELECT tag AS label, count(*) AS count FROM asset_tags GROUP BY tag`).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count tags: %w", err)
	}

	return toAttributeCounts(rows), nil
}

// AllLocationParts 每个位置片段（小写）下的资产数.
// 一个资产的标签字段写入前已去重，但位置的 label/city/region 小写后可能相同，
// 视图会为每次出现各展开一行，这里按 (资产, 片段) 去重后再分组，
// 保证每个资产对一个片段最多贡献一次计数.
func (r *Repo) AllLocationParts(ctx context.Context) ([]model.AttributeCount, error) {
	var rows []labelCount

	err := r.db.WithContext(ctx).
		Raw(`SELECT part AS label, count(*) AS count
FROM (SELECT DISTINCT asset_key, part FROM asset_location_parts) parts
GROUP BY part`).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count location parts: %w", err)
	}

	return toAttributeCounts(rows), nil
}

// AllYears 每个索引年份下的资产数，年份标签固定四位数字.
func (r *Repo) AllYears(ctx context.Context) ([]model.AttributeCount, error) {
	type yearCount struct {
		Year  int
		Count int64
	}

	var rows []yearCount

	err := r.db.WithContext(ctx).
		Raw(`SELECT index_year AS year, count(*) AS count FROM assets GROUP BY index_year`).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count years: %w", err)
	}

	counts := make([]model.AttributeCount, 0, len(rows))
	for _, row := range rows {
		counts = append(counts, model.AttributeCount{Label: fmt.Sprintf("%04d", row.Year), Count: row.Count})
	}

	return counts, nil
}

// AllMediaTypes 每个媒体类型（小写）下的资产数.
func (r *Repo) AllMediaTypes(ctx context.Context) ([]model.AttributeCount, error) {
	var rows []labelCount

	err := r.db.WithContext(ctx).
		Raw(`SELECT lower(media_type) AS label, count(*) AS count FROM assets WHERE media_type <> '' GROUP BY lower(media_type)`).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count media types: %w", err)
	}

	return toAttributeCounts(rows), nil
}

// RawLocationRecords 观察到的去重 (label, city, region) 三元组，全空者排除.
func (r *Repo) RawLocationRecords(ctx context.Context) ([]model.Location, error) {
	var encoded []string

	err := r.db.WithContext(ctx).
		Raw(`SELECT DISTINCT location FROM assets WHERE location <> ''`).
		Scan(&encoded).Error
	if err != nil {
		return nil, fmt.Errorf("list location records: %w", err)
	}

	records := make([]model.Location, 0, len(encoded))

	for _, s := range encoded {
		if loc := decodeLocation(s); loc != nil {
			records = append(records, *loc)
		}
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

	query := r.db.WithContext(ctx).Order("asset_key").Limit(limit + 1)
	if cursor != "" {
		query = query.Where("asset_key > ?", cursor)
	}

	var rows []assetRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, "", fmt.Errorf("fetch assets: %w", err)
	}

	next := repository.CursorDone
	if len(rows) > limit {
		rows = rows[:limit]
		next = rows[limit-1].AssetKey
	}

	assets := make([]model.Asset, 0, len(rows))
	for i := range rows {
		assets = append(assets, rowToAsset(&rows[i]))
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

// Ping 保活探测.
func (r *Repo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("get underlying sql.DB: %w", err)
	}

	return sqlDB.PingContext(ctx)
}

// Close 关闭底层连接.
func (r *Repo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("get underlying sql.DB: %w", err)
	}

	return sqlDB.Close()
}
