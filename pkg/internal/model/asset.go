// Package model 定义资产目录的核心值类型：资产记录、位置、查询投影与分组计数.
package model

import "time"

// Asset 每个导入文件对应一条持久化记录.
// Key 与 Checksum 均由内容推导，创建后不再重新计算；ImportDate 创建时设置一次.
type Asset struct {
	Key          string     `json:"key"        rule:"required"`
	Checksum     string     `json:"checksum"`
	FileName     string     `json:"file_name"  rule:"required"`
	ByteLength   int64      `json:"byte_length" rule:"min=0"`
	MediaType    string     `json:"media_type"`
	Tags         []string   `json:"tags,omitempty"`
	ImportDate   time.Time  `json:"import_date"`
	Caption      string     `json:"caption,omitempty"`
	Location     *Location  `json:"location,omitempty"`
	UserDate     *time.Time `json:"user_date,omitempty"`
	OriginalDate *time.Time `json:"original_date,omitempty"`
}

// BestDate 返回资产的规范时间戳：UserDate 优先，其次 OriginalDate，最后 ImportDate.
// 所有基于日期的查询和排序都以该值为准.
func (a *Asset) BestDate() time.Time {
	if a.UserDate != nil {
		return *a.UserDate
	}

	if a.OriginalDate != nil {
		return *a.OriginalDate
	}

	return a.ImportDate
}

// Pending 判断资产是否为待整理状态：没有标签、没有说明、没有位置标注.
func (a *Asset) Pending() bool {
	if len(a.Tags) > 0 || a.Caption != "" {
		return false
	}

	return a.Location == nil || a.Location.Label == ""
}

// SearchResult 列表视图使用的资产投影.
type SearchResult struct {
	Key       string    `json:"key"`
	FileName  string    `json:"file_name"`
	MediaType string    `json:"media_type"`
	Location  *Location `json:"location,omitempty"`
	Date      time.Time `json:"date"`
}

// Result 构造资产的列表投影，Date 取最佳日期.
func (a *Asset) Result() SearchResult {
	return SearchResult{
		Key:       a.Key,
		FileName:  a.FileName,
		MediaType: a.MediaType,
		Location:  a.Location,
		Date:      a.BestDate(),
	}
}

// AttributeCount 分组计数结果，如每个标签、年份或媒体类型下的资产数.
type AttributeCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}
