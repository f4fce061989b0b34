package document

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/yeisme/photovault/pkg/configs"
	"github.com/yeisme/photovault/pkg/internal/model"
	nlog "github.com/yeisme/photovault/pkg/log"
)

// indexVersion 随索引定义一同持久化的版本号.
// 索引定义发生变化时递增，启动时版本不一致会触发全量重建，绝不允许静默偏差.
const indexVersion = 3

// 键命名空间. 值段使用无填充 URL base64，资产键本身是 URL base64，
// 两者都不含 '.'，因此行键可以安全地按 '.' 切分.
const (
	docPrefix      = "asset."
	refPrefix      = "ref."
	idxPrefix      = "idx."
	metaVersionKey = "meta.catalog-index-version"
)

// indexDef 一份命名的二级索引定义：给定资产，产出该索引下的全部小写索引值.
// 定义是纯数据映射，不携带可执行文本.
type indexDef struct {
	Name string
	Rows func(a *model.Asset) []string
}

// indexDefs 全部索引定义，覆盖每种查询形状.
var indexDefs = []indexDef{
	{Name: "tag", Rows: func(a *model.Asset) []string {
		return model.LowerDistinct(a.Tags)
	}},
	{Name: "loc", Rows: func(a *model.Asset) []string {
		return model.LowerDistinct(a.Location.Parts())
	}},
	{Name: "locrec", Rows: func(a *model.Asset) []string {
		if a.Location.IsZero() {
			return nil
		}

		return []string{strings.ToLower(a.Location.String())}
	}},
	{Name: "date", Rows: func(a *model.Asset) []string {
		return []string{a.BestDate().UTC().Format(dateKeyFormat)}
	}},
	{Name: "year", Rows: func(a *model.Asset) []string {
		return []string{fmt.Sprintf("%04d", a.BestDate().UTC().Year())}
	}},
	{Name: "media", Rows: func(a *model.Asset) []string {
		if a.MediaType == "" {
			return nil
		}

		return []string{strings.ToLower(a.MediaType)}
	}},
	{Name: "file", Rows: func(a *model.Asset) []string {
		if a.FileName == "" {
			return nil
		}

		return []string{strings.ToLower(a.FileName)}
	}},
	{Name: "digest", Rows: func(a *model.Asset) []string {
		if a.Checksum == "" {
			return nil
		}

		return []string{strings.ToLower(a.Checksum)}
	}},
	{Name: "newborn", Rows: func(a *model.Asset) []string {
		if !a.Pending() {
			return nil
		}

		return []string{a.ImportDate.UTC().Format(dateKeyFormat)}
	}},
}

// dateKeyFormat RFC3339，字典序与时间序一致.
const dateKeyFormat = "2006-01-02T15:04:05Z07:00"

// encSeg 将索引值编码为键段，任意字符都落在 NATS KV 允许的字符集内.
func encSeg(value string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(value))
}

// decSeg 还原键段为索引值.
func decSeg(seg string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return "", fmt.Errorf("decode index segment %q: %w", seg, err)
	}

	return string(raw), nil
}

// idxKey 组装索引行键: idx.<name>.<enc(value)>.<assetKey>.
func idxKey(name, value, assetKey string) string {
	return idxPrefix + name + "." + encSeg(value) + "." + assetKey
}

// splitIdxKey 拆出索引行键中的值段与资产键.
func splitIdxKey(key string) (value, assetKey string, err error) {
	parts := strings.SplitN(key, ".", 4)
	if len(parts) != 4 {
		return "", "", fmt.Errorf("malformed index key: %s", key)
	}

	value, err = decSeg(parts[2])
	if err != nil {
		return "", "", err
	}

	return value, parts[3], nil
}

// rowKeysFor 计算资产在全部索引下应持有的行键集合.
func rowKeysFor(a *model.Asset) []string {
	keys := make([]string, 0, 8)

	for _, def := range indexDefs {
		for _, value := range def.Rows(a) {
			keys = append(keys, idxKey(def.Name, value, a.Key))
		}
	}

	return keys
}

// ensureIndexes 启动时核对持久化的索引版本，不一致则重建全部索引行.
// 初始化失败意味着仓库不可用，由调用方升级为致命错误.
func (r *Repo) ensureIndexes(ctx context.Context) error {
	raw, err := r.engine.Get(ctx, metaVersionKey)
	if err == nil && strings.TrimSpace(string(raw)) == fmt.Sprint(indexVersion) {
		return nil
	}

	nlog.Logger().Info().
		Str("stored", strings.TrimSpace(string(raw))).
		Int("current", indexVersion).
		Msg("index definitions out of date, rebuilding")

	return r.Reindex(ctx)
}

// Reindex 丢弃全部索引行并从资产文档重建，随后写入当前版本号.
func (r *Repo) Reindex(ctx context.Context) error {
	// 清掉旧行
	for _, prefix := range []string{idxPrefix, refPrefix} {
		keys, err := r.engine.List(ctx, prefix)
		if err != nil {
			return fmt.Errorf("list %s keys: %w", prefix, err)
		}

		for _, k := range keys {
			if err := r.engine.Delete(ctx, k); err != nil {
				return fmt.Errorf("drop index row %s: %w", k, err)
			}
		}
	}

	docKeys, err := r.engine.List(ctx, docPrefix)
	if err != nil {
		return fmt.Errorf("list asset documents: %w", err)
	}

	workers := configs.GetConfig().App.ReindexWorkers
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, dk := range docKeys {
		dk := dk
		g.Go(func() error {
			doc, err := r.getDoc(gctx, strings.TrimPrefix(dk, docPrefix))
			if err != nil {
				return err
			}

			return r.writeIndexRows(gctx, &doc.Asset, nil)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("rebuild index rows: %w", err)
	}

	if err := r.engine.Set(ctx, metaVersionKey, []byte(fmt.Sprint(indexVersion))); err != nil {
		return fmt.Errorf("store index version: %w", err)
	}

	nlog.Logger().Info().Int("assets", len(docKeys)).Int("version", indexVersion).Msg("index rebuild complete")

	return nil
}
