package model

import "strings"

// NormalizeTags 去除空白并做大小写无关去重，保留首次出现的原始写法与插入顺序.
// 存储层保留原始大小写用于展示，比较一律使用小写形式.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))

	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}

		lower := strings.ToLower(t)
		if _, ok := seen[lower]; ok {
			continue
		}

		seen[lower] = struct{}{}
		out = append(out, t)
	}

	return out
}

// LowerDistinct 返回去重后的小写形式集合，用于查询侧的匹配计数.
func LowerDistinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))

	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}

		if _, ok := seen[v]; ok {
			continue
		}

		seen[v] = struct{}{}
		out = append(out, v)
	}

	return out
}

// HasAllTags 判断资产的标签集（大小写无关）是否为 want 的超集.
func (a *Asset) HasAllTags(want []string) bool {
	have := make(map[string]struct{}, len(a.Tags))
	for _, t := range a.Tags {
		have[strings.ToLower(t)] = struct{}{}
	}

	for _, w := range LowerDistinct(want) {
		if _, ok := have[w]; !ok {
			return false
		}
	}

	return true
}
