package model

import "strings"

// Location 三个相互独立的可选字段，任意子集可以有值.
// 三个字段全空等价于"没有位置"，序列化必须往返为缺失而不是三个空串.
type Location struct {
	Label  string `json:"label,omitempty"`
	City   string `json:"city,omitempty"`
	Region string `json:"region,omitempty"`
}

// IsZero 判断三个字段是否全空.
func (l *Location) IsZero() bool {
	return l == nil || (l.Label == "" && l.City == "" && l.Region == "")
}

// Parts 返回非空字段的列表，顺序为 label、city、region.
func (l *Location) Parts() []string {
	if l == nil {
		return nil
	}

	parts := make([]string, 0, 3)
	for _, p := range []string{l.Label, l.City, l.Region} {
		if p != "" {
			parts = append(parts, p)
		}
	}

	return parts
}

// ParseLocation 按自由文本规则解析位置：
//   - 空串 → nil
//   - 恰好一个 ';' → "label; rest"，rest 中恰好一个 ',' 时再拆为 "city, region"，否则 rest 整体为 city
//   - 否则恰好一个 ',' → "city, region"，无 label
//   - 其余形状（多个 ';' 或 ','）整体作为 label 兜底
func ParseLocation(s string) *Location {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if strings.Count(s, ";") == 1 {
		label, rest, _ := strings.Cut(s, ";")
		loc := &Location{Label: strings.TrimSpace(label)}
		rest = strings.TrimSpace(rest)

		if strings.Count(rest, ",") == 1 {
			city, region, _ := strings.Cut(rest, ",")
			loc.City = strings.TrimSpace(city)
			loc.Region = strings.TrimSpace(region)
		} else {
			loc.City = rest
		}

		if loc.IsZero() {
			return nil
		}

		return loc
	}

	if strings.Count(s, ",") == 1 {
		city, region, _ := strings.Cut(s, ",")

		loc := &Location{
			City:   strings.TrimSpace(city),
			Region: strings.TrimSpace(region),
		}
		if loc.IsZero() {
			return nil
		}

		return loc
	}

	return &Location{Label: s}
}

// String 生成可被 ParseLocation 还原的文本形式.
// 全空返回空串；仅 city 时加 "; " 前缀、仅 region 时加 ", " 前缀以便与裸 label 区分.
func (l *Location) String() string {
	if l.IsZero() {
		return ""
	}

	var right string

	switch {
	case l.City != "" && l.Region != "":
		right = l.City + ", " + l.Region
	case l.City != "":
		right = l.City
	case l.Region != "":
		right = ", " + l.Region
	}

	if right == "" {
		return l.Label
	}

	if l.Label != "" {
		return l.Label + "; " + right
	}

	if strings.Contains(right, ",") {
		return right
	}

	return "; " + right
}
