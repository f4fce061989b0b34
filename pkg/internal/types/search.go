// Package types 定义应用程序中使用的查询参数与分页结构体.
package types

import (
	"time"

	"github.com/yeisme/photovault/pkg/internal/model"
)

// SortField 结果排序字段.
type SortField string

const (
	SortByDate       SortField = "date"
	SortByIdentifier SortField = "identifier"
	SortByFileName   SortField = "filename"
	SortByMediaType  SortField = "mediatype"
)

// SortOrder 结果排序方向.
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// SearchParams 多条件查询参数. 所有条件可任意组合；
// Tags 要求资产标签为其超集，Locations 要求每个值都命中资产的某个位置字段.
type SearchParams struct {
	Tags      []string   `json:"tags,omitempty"`
	Locations []string   `json:"locations,omitempty"`
	MediaType string     `json:"media_type,omitempty"`
	After     *time.Time `json:"after,omitempty"`
	Before    *time.Time `json:"before,omitempty"`
	SortField SortField  `json:"sort_field,omitempty"`
	SortOrder SortOrder  `json:"sort_order,omitempty"`
	Offset    int        `json:"offset,omitempty"`
	Limit     int        `json:"limit,omitempty"`
}

// Empty 判断是否没有任何筛选条件.
func (p *SearchParams) Empty() bool {
	return len(p.Tags) == 0 && len(p.Locations) == 0 && p.MediaType == "" &&
		p.After == nil && p.Before == nil
}

// PendingParams 待整理资产查询参数：无标签、无说明、无位置标注的资产.
type PendingParams struct {
	After     *time.Time `json:"after,omitempty"`
	SortField SortField  `json:"sort_field,omitempty"`
	SortOrder SortOrder  `json:"sort_order,omitempty"`
	Offset    int        `json:"offset,omitempty"`
	Limit     int        `json:"limit,omitempty"`
}

// SearchPage 一页查询结果.
type SearchPage struct {
	Results  []model.SearchResult `json:"results"`
	Total    int                  `json:"total"`
	Offset   int                  `json:"offset"`
	Limit    int                  `json:"limit"`
	LastPage int                  `json:"last_page"`
}

// CatalogStats 目录概览：总数与四类分组计数.
type CatalogStats struct {
	TotalAssets int64                  `json:"total_assets"`
	Tags        []model.AttributeCount `json:"tags"`
	Locations   []model.AttributeCount `json:"locations"`
	Years       []model.AttributeCount `json:"years"`
	MediaTypes  []model.AttributeCount `json:"media_types"`
}
