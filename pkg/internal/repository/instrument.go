package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/yeisme/photovault/pkg/internal/model"
	"github.com/yeisme/photovault/pkg/metrics"
)

// instrumented 在仓库外层记录操作计数与耗时，对调用方透明.
type instrumented struct {
	inner   AssetRepository
	backend string
}

// Instrument 包装仓库实例，按后端与操作名上报 Prometheus 指标.
func Instrument(inner AssetRepository, backend string) AssetRepository {
	return &instrumented{inner: inner, backend: backend}
}

// observe 上报一次操作的状态与耗时.
func (r *instrumented) observe(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}

	metrics.RepoOpCounter.WithLabelValues(r.backend, op, status).Inc()
	metrics.RepoOpDuration.WithLabelValues(r.backend, op).Observe(time.Since(start).Seconds())
}

func (r *instrumented) CountAssets(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := r.inner.CountAssets(ctx)
	r.observe("CountAssets", start, err)

	if err == nil {
		metrics.CatalogAssets.Set(float64(n))
	}

	return n, err
}

func (r *instrumented) GetAssetByID(ctx context.Context, key string) (*model.Asset, error) {
	start := time.Now()
	a, err := r.inner.GetAssetByID(ctx, key)
	r.observe("GetAssetByID", start, err)

	return a, err
}

func (r *instrumented) GetAssetByDigest(ctx context.Context, checksum string) (*model.Asset, error) {
	start := time.Now()
	a, err := r.inner.GetAssetByDigest(ctx, checksum)
	r.observe("GetAssetByDigest", start, err)

	return a, err
}

func (r *instrumented) AllTags(ctx context.Context) ([]model.AttributeCount, error) {
	start := time.Now()
	c, err := r.inner.AllTags(ctx)
	r.observe("AllTags", start, err)

	return c, err
}

func (r *instrumented) AllLocationParts(ctx context.Context) ([]model.AttributeCount, error) {
	start := time.Now()
	c, err := r.inner.AllLocationParts(ctx)
	r.observe("AllLocationParts", start, err)

	return c, err
}

func (r *instrumented) AllYears(ctx context.Context) ([]model.AttributeCount, error) {
	start := time.Now()
	c, err := r.inner.AllYears(ctx)
	r.observe("AllYears", start, err)

	return c, err
}

func (r *instrumented) AllMediaTypes(ctx context.Context) ([]model.AttributeCount, error) {
	start := time.Now()
	c, err := r.inner.AllMediaTypes(ctx)
	r.observe("AllMediaTypes", start, err)

	return c, err
}

func (r *instrumented) RawLocationRecords(ctx context.Context) ([]model.Location, error) {
	start := time.Now()
	l, err := r.inner.RawLocationRecords(ctx)
	r.observe("RawLocationRecords", start, err)

	return l, err
}

func (r *instrumented) PutAsset(ctx context.Context, asset *model.Asset) error {
	start := time.Now()
	err := r.inner.PutAsset(ctx, asset)
	r.observe("PutAsset", start, err)

	return err
}

func (r *instrumented) DeleteAsset(ctx context.Context, key string) error {
	start := time.Now()
	err := r.inner.DeleteAsset(ctx, key)
	r.observe("DeleteAsset", start, err)

	return err
}

func (r *instrumented) QueryByTags(ctx context.Context, tags []string) ([]model.SearchResult, error) {
	start := time.Now()
	res, err := r.inner.QueryByTags(ctx, tags)
	r.observe("QueryByTags", start, err)

	return res, err
}

func (r *instrumented) QueryByLocations(ctx context.Context, locations []string) ([]model.SearchResult, error) {
	start := time.Now()
	res, err := r.inner.QueryByLocations(ctx, locations)
	r.observe("QueryByLocations", start, err)

	return res, err
}

func (r *instrumented) QueryByMediaType(ctx context.Context, mediaType string) ([]model.SearchResult, error) {
	start := time.Now()
	res, err := r.inner.QueryByMediaType(ctx, mediaType)
	r.observe("QueryByMediaType", start, err)

	return res, err
}

func (r *instrumented) QueryBeforeDate(ctx context.Context, before time.Time) ([]model.SearchResult, error) {
	start := time.Now()
	res, err := r.inner.QueryBeforeDate(ctx, before)
	r.observe("QueryBeforeDate", start, err)

	return res, err
}

func (r *instrumented) QueryAfterDate(ctx context.Context, after time.Time) ([]model.SearchResult, error) {
	start := time.Now()
	res, err := r.inner.QueryAfterDate(ctx, after)
	r.observe("QueryAfterDate", start, err)

	return res, err
}

func (r *instrumented) QueryDateRange(ctx context.Context, after, before time.Time) ([]model.SearchResult, error) {
	start := time.Now()
	res, err := r.inner.QueryDateRange(ctx, after, before)
	r.observe("QueryDateRange", start, err)

	return res, err
}

func (r *instrumented) QueryNewborn(ctx context.Context, after time.Time) ([]model.SearchResult, error) {
	start := time.Now()
	res, err := r.inner.QueryNewborn(ctx, after)
	r.observe("QueryNewborn", start, err)

	return res, err
}

func (r *instrumented) FetchAssets(ctx context.Context, cursor string, limit int) ([]model.Asset, string, error) {
	start := time.Now()
	assets, next, err := r.inner.FetchAssets(ctx, cursor, limit)
	r.observe("FetchAssets", start, err)

	return assets, next, err
}

func (r *instrumented) StoreAssets(ctx context.Context, assets []model.Asset) error {
	start := time.Now()
	err := r.inner.StoreAssets(ctx, assets)
	r.observe("StoreAssets", start, err)

	return err
}

// Reindex 透传到支持显式重建索引的后端，保持包装对类型断言透明.
func (r *instrumented) Reindex(ctx context.Context) error {
	reindexer, ok := r.inner.(interface{ Reindex(ctx context.Context) error })
	if !ok {
		return fmt.Errorf("backend %s does not maintain explicit indexes", r.backend)
	}

	start := time.Now()
	err := reindexer.Reindex(ctx)
	r.observe("Reindex", start, err)

	return err
}

func (r *instrumented) Ping(ctx context.Context) error {
	start := time.Now()
	err := r.inner.Ping(ctx)
	r.observe("Ping", start, err)

	return err
}

func (r *instrumented) Close() error {
	return r.inner.Close()
}
