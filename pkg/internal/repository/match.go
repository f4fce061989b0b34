package repository

import (
	"sort"

	"github.com/yeisme/photovault/pkg/internal/model"
)

// IndexRow 单条二级索引行：某个资产在某个索引值下的一次命中.
// 两个后端的原生索引都只能证明"至少命中一个值"，全量 AND 匹配由 MatchAll 在应用侧完成.
type IndexRow struct {
	AssetKey string
	Value    string // 小写匹配值
	Result   model.SearchResult
}

// MatchAll 执行与后端无关的交集算法：
//  1. 调用方已查出命中任一请求值的行并集；
//  2. 按资产键分组，统计每个资产命中的去重请求值个数；
//  3. 只保留命中数等于请求值个数的资产；
//  4. 按资产键排序并丢弃相邻重复实现去重.
//
// want 为去重后的请求值个数；为 0 时返回空结果.
func MatchAll(rows []IndexRow, want int) []model.SearchResult {
	if want == 0 || len(rows) == 0 {
		return nil
	}

	matched := make(map[string]map[string]struct{})
	projection := make(map[string]model.SearchResult)

	for _, row := range rows {
		values, ok := matched[row.AssetKey]
		if !ok {
			values = make(map[string]struct{}, want)
			matched[row.AssetKey] = values
			projection[row.AssetKey] = row.Result
		}

		values[row.Value] = struct{}{}
	}

	keys := make([]string, 0, len(matched))

	for key, values := range matched {
		if len(values) == want {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	results := make([]model.SearchResult, 0, len(keys))

	var last string

	for i, key := range keys {
		if i > 0 && key == last {
			continue
		}

		last = key
		results = append(results, projection[key])
	}

	return results
}

// SortResultsByKey 按资产键升序排序，两个后端共用以保证跨后端字节级一致的返回顺序.
func SortResultsByKey(results []model.SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].Key < results[j].Key
	})
}
