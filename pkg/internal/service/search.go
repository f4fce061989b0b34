package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yeisme/photovault/pkg/internal/model"
	"github.com/yeisme/photovault/pkg/internal/repository"
	"github.com/yeisme/photovault/pkg/internal/types"
)

const (
	defaultPageLimit = 16
	maxPageLimit     = 256
)

// Search 多条件查询：为出现的每个条件各取一个结果集，按资产键在内存中取交集，
// 再对最终列表排序分页. 没有任何条件时等价于全量（零时刻之后）查询.
func (s *CatalogService) Search(ctx context.Context, params *types.SearchParams) (*types.SearchPage, error) {
	var sets [][]model.SearchResult

	if params.Empty() {
		all, err := s.repo.QueryAfterDate(ctx, time.Time{})
		if err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}

		sets = append(sets, all)
	}

	if len(params.Tags) > 0 {
		results, err := s.repo.QueryByTags(ctx, params.Tags)
		if err != nil {
			return nil, fmt.Errorf("search by tags: %w", err)
		}

		sets = append(sets, results)
	}

	if len(params.Locations) > 0 {
		results, err := s.repo.QueryByLocations(ctx, params.Locations)
		if err != nil {
			return nil, fmt.Errorf("search by locations: %w", err)
		}

		sets = append(sets, results)
	}

	if params.MediaType != "" {
		results, err := s.repo.QueryByMediaType(ctx, params.MediaType)
		if err != nil {
			return nil, fmt.Errorf("search by media type: %w", err)
		}

		sets = append(sets, results)
	}

	if params.After != nil || params.Before != nil {
		results, err := s.queryDates(ctx, params.After, params.Before)
		if err != nil {
			return nil, fmt.Errorf("search by date: %w", err)
		}

		sets = append(sets, results)
	}

	results := intersectByKey(sets)
	sortResults(results, params.SortField, params.SortOrder)

	return paginate(results, params.Offset, params.Limit), nil
}

// queryDates 按出现的界挑选日期查询：双界半开区间，单界含下界/不含上界.
func (s *CatalogService) queryDates(ctx context.Context, after, before *time.Time) ([]model.SearchResult, error) {
	switch {
	case after != nil && before != nil:
		return s.repo.QueryDateRange(ctx, *after, *before)
	case after != nil:
		return s.repo.QueryAfterDate(ctx, *after)
	default:
		return s.repo.QueryBeforeDate(ctx, *before)
	}
}

// Pending 待整理资产查询：无标签、无说明、无位置标注.
func (s *CatalogService) Pending(ctx context.Context, params *types.PendingParams) (*types.SearchPage, error) {
	after := time.Time{}
	if params.After != nil {
		after = *params.After
	}

	results, err := s.repo.QueryNewborn(ctx, after)
	if err != nil {
		return nil, fmt.Errorf("pending: %w", err)
	}

	sortResults(results, params.SortField, params.SortOrder)

	return paginate(results, params.Offset, params.Limit), nil
}

// Stats 目录概览：总数与四类分组计数，分组结果按标签排序供展示.
func (s *CatalogService) Stats(ctx context.Context) (*types.CatalogStats, error) {
	total, err := s.repo.CountAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}

	stats := &types.CatalogStats{TotalAssets: total}

	counts := []struct {
		dst   *[]model.AttributeCount
		fetch func(context.Context) ([]model.AttributeCount, error)
	}{
		{&stats.Tags, s.repo.AllTags},
		{&stats.Locations, s.repo.AllLocationParts},
		{&stats.Years, s.repo.AllYears},
		{&stats.MediaTypes, s.repo.AllMediaTypes},
	}

	for _, c := range counts {
		values, err := c.fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}

		sort.Slice(values, func(i, j int) bool { return values[i].Label < values[j].Label })
		*c.dst = values
	}

	return stats, nil
}

// ResolveDigest 导入前的重复检测：按内容摘要找既有资产，不存在不是错误.
func (s *CatalogService) ResolveDigest(ctx context.Context, checksum string) (*model.Asset, bool, error) {
	asset, err := s.repo.GetAssetByDigest(ctx, checksum)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("resolve digest: %w", err)
	}

	return asset, true, nil
}

// intersectByKey 按资产键取各条件结果集的交集；单个结果集原样返回.
func intersectByKey(sets [][]model.SearchResult) []model.SearchResult {
	if len(sets) == 0 {
		return nil
	}

	results := sets[0]

	for _, set := range sets[1:] {
		keys := make(map[string]struct{}, len(set))
		for _, r := range set {
			keys[r.Key] = struct{}{}
		}

		kept := results[:0]

		for _, r := range results {
			if _, ok := keys[r.Key]; ok {
				kept = append(kept, r)
			}
		}

		results = kept
	}

	return results
}

// sortResults 对最终结果列表排序，未指定时默认按标识符升序；同值以标识符决出确定序.
func sortResults(results []model.SearchResult, field types.SortField, order types.SortOrder) {
	less := func(a, b *model.SearchResult) bool {
		switch field {
		case types.SortByDate:
			if !a.Date.Equal(b.Date) {
				return a.Date.Before(b.Date)
			}
		case types.SortByFileName:
			an, bn := strings.ToLower(a.FileName), strings.ToLower(b.FileName)
			if an != bn {
				return an < bn
			}
		case types.SortByMediaType:
			am, bm := strings.ToLower(a.MediaType), strings.ToLower(b.MediaType)
			if am != bm {
				return am < bm
			}
		}

		return a.Key < b.Key
	}

	sort.Slice(results, func(i, j int) bool {
		if order == types.SortDescending {
			return less(&results[j], &results[i])
		}

		return less(&results[i], &results[j])
	})
}

// paginate 应用偏移与页长限制并计算末页号.
// offset 钳位到 [0, count]，limit 钳位到 [1, 256] 且缺省为 16，lastPage 最小为 1.
func paginate(results []model.SearchResult, offset, limit int) *types.SearchPage {
	count := len(results)

	if limit == 0 {
		limit = defaultPageLimit
	}

	if limit < 1 {
		limit = 1
	}

	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	if offset < 0 {
		offset = 0
	}

	if offset > count {
		offset = count
	}

	lastPage := (count + limit - 1) / limit
	if lastPage < 1 {
		lastPage = 1
	}

	end := offset + limit
	if end > count {
		end = count
	}

	page := make([]model.SearchResult, end-offset)
	copy(page, results[offset:end])

	return &types.SearchPage{
		Results:  page,
		Total:    count,
		Offset:   offset,
		Limit:    limit,
		LastPage: lastPage,
	}
}
