package document_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yeisme/photovault/pkg/internal/model"
	"github.com/yeisme/photovault/pkg/internal/repository"
	"github.com/yeisme/photovault/pkg/internal/repository/document"
	"github.com/yeisme/photovault/pkg/internal/storage/kv"
)

// newRepo 在内存引擎上建一个空仓库.
func newRepo(t *testing.T) (*document.Repo, kv.Store) {
	t.Helper()

	ctx := context.Background()

	engine, err := kv.NewMemoryStore(ctx, nil)
	if err != nil {
		t.Fatalf("Failed to create memory store: %v", err)
	}

	repo, err := document.NewWithEngine(ctx, engine)
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}

	return repo, engine
}

// sampleAsset 构造一条测试资产.
func sampleAsset(path string, tags []string, imported time.Time) model.Asset {
	return model.Asset{
		Key:        model.EncodeKey(path),
		Checksum:   "sha256-" + path,
		FileName:   path,
		ByteLength: 1024,
		MediaType:  "image/jpeg",
		Tags:       tags,
		ImportDate: imported,
	}
}

func mustPut(t *testing.T, repo *document.Repo, a model.Asset) {
	t.Helper()

	if err := repo.PutAsset(context.Background(), &a); err != nil {
		t.Fatalf("Failed to put asset %s: %v", a.FileName, err)
	}
}

// TestPutAndGetAsset 测试写入后按记录键读回.
func TestPutAndGetAsset(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	imported := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	a := sampleAsset("2024/beach.jpg", []string{"Beach", "beach", "sunset"}, imported)
	a.Caption = "low tide"
	a.Location = model.ParseLocation("harbor; Porto, Norte")

	mustPut(t, repo, a)

	got, err := repo.GetAssetByID(ctx, a.Key)
	if err != nil {
		t.Fatalf("Failed to get asset: %v", err)
	}

	if got.FileName != "2024/beach.jpg" || got.Caption != "low tide" {
		t.Errorf("Unexpected asset fields: %+v", got)
	}

	// 标签去重保序
	if len(got.Tags) != 2 || got.Tags[0] != "Beach" || got.Tags[1] != "sunset" {
		t.Errorf("Expected normalized tags [Beach sunset], got %v", got.Tags)
	}

	if got.Location == nil || got.Location.City != "Porto" {
		t.Errorf("Location not preserved: %+v", got.Location)
	}

	count, err := repo.CountAssets(ctx)
	if err != nil {
		t.Fatalf("Failed to count assets: %v", err)
	}

	if count != 1 {
		t.Errorf("Expected 1 asset, got %d", count)
	}

	_, err = repo.GetAssetByID(ctx, model.EncodeKey("missing.jpg"))
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing key, got %v", err)
	}
}

// TestQueryByTags 测试标签查询为超集匹配：命中资产必须携带全部请求标签.
func TestQueryByTags(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	imported := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mustPut(t, repo, sampleAsset("a.jpg", []string{"cat", "mouse"}, imported))
	mustPut(t, repo, sampleAsset("b.jpg", []string{"cat"}, imported))
	mustPut(t, repo, sampleAsset("c.jpg", []string{"dog"}, imported))

	results, err := repo.QueryByTags(ctx, []string{"Cat", "MOUSE"})
	if err != nil {
		t.Fatalf("Failed to query by tags: %v", err)
	}

	if len(results) != 1 || results[0].Key != model.EncodeKey("a.jpg") {
		t.Fatalf("Expected only a.jpg for [cat mouse], got %+v", results)
	}

	// 重复请求值折叠后仍是单值匹配
	results, err = repo.QueryByTags(ctx, []string{"cat", "CAT"})
	if err != nil {
		t.Fatalf("Failed to query by tags: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("Expected 2 assets for duplicated [cat], got %d", len(results))
	}

	// 结果按记录键升序
	if results[0].Key > results[1].Key {
		t.Errorf("Results not sorted by key: %v, %v", results[0].Key, results[1].Key)
	}
}

// TestQueryByLocations 测试位置查询：每个请求值命中任一位置字段即可，多值取交集.
func TestQueryByLocations(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	imported := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	a := sampleAsset("porto.jpg", nil, imported)
	a.Location = model.ParseLocation("riverside; Porto, Norte")
	mustPut(t, repo, a)

	b := sampleAsset("lisbon.jpg", nil, imported)
	b.Location = model.ParseLocation("; Lisbon, Norte")
	mustPut(t, repo, b)

	results, err := repo.QueryByLocations(ctx, []string{"norte"})
	if err != nil {
		t.Fatalf("Failed to query by locations: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("Expected 2 assets for [norte], got %d", len(results))
	}

	results, err = repo.QueryByLocations(ctx, []string{"norte", "porto"})
	if err != nil {
		t.Fatalf("Failed to query by locations: %v", err)
	}

	if len(results) != 1 || results[0].Key != model.EncodeKey("porto.jpg") {
		t.Fatalf("Expected only porto.jpg for [norte porto], got %+v", results)
	}
}

// TestQueryByMediaType 测试媒体类型匹配大小写无关.
func TestQueryByMediaType(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	imported := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	a := sampleAsset("clip.mp4", nil, imported)
	a.MediaType = "video/MP4"
	mustPut(t, repo, a)
	mustPut(t, repo, sampleAsset("still.jpg", nil, imported))

	results, err := repo.QueryByMediaType(ctx, "VIDEO/mp4")
	if err != nil {
		t.Fatalf("Failed to query by media type: %v", err)
	}

	if len(results) != 1 || results[0].Key != model.EncodeKey("clip.mp4") {
		t.Fatalf("Expected only clip.mp4, got %+v", results)
	}
}

// TestDateQueries 测试日期边界：after 含界、before 不含界、区间为半开 [after, before).
func TestDateQueries(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	jan := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	may := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)

	mustPut(t, repo, sampleAsset("jan.jpg", nil, jan))
	mustPut(t, repo, sampleAsset("mar.jpg", nil, mar))

	// 用户日期优先于导入日期
	overridden := sampleAsset("late-import.jpg", nil, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	overridden.UserDate = &may
	mustPut(t, repo, overridden)

	after, err := repo.QueryAfterDate(ctx, mar)
	if err != nil {
		t.Fatalf("Failed to query after date: %v", err)
	}

	if len(after) != 2 {
		t.Fatalf("Expected 2 assets at or after march (inclusive bound), got %d", len(after))
	}

	before, err := repo.QueryBeforeDate(ctx, mar)
	if err != nil {
		t.Fatalf("Failed to query before date: %v", err)
	}

	if len(before) != 1 || before[0].Key != model.EncodeKey("jan.jpg") {
		t.Fatalf("Expected only jan.jpg strictly before march, got %+v", before)
	}

	ranged, err := repo.QueryDateRange(ctx, jan, may)
	if err != nil {
		t.Fatalf("Failed to query date range: %v", err)
	}

	if len(ranged) != 2 {
		t.Fatalf("Expected 2 assets in [jan, may), got %d", len(ranged))
	}
}

// TestQueryNewborn 测试待整理查询：无标签无说明无位置标注、且不早于给定导入时刻.
func TestQueryNewborn(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	cutoff := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	fresh := sampleAsset("fresh.jpg", nil, cutoff.Add(time.Hour))
	mustPut(t, repo, fresh)

	old := sampleAsset("old.jpg", nil, cutoff.Add(-time.Hour))
	mustPut(t, repo, old)

	captioned := sampleAsset("captioned.jpg", nil, cutoff.Add(time.Hour))
	captioned.Caption = "done"
	mustPut(t, repo, captioned)

	tagged := sampleAsset("tagged.jpg", []string{"cat"}, cutoff.Add(time.Hour))
	mustPut(t, repo, tagged)

	results, err := repo.QueryNewborn(ctx, cutoff)
	if err != nil {
		t.Fatalf("Failed to query newborn: %v", err)
	}

	if len(results) != 1 || results[0].Key != model.EncodeKey("fresh.jpg") {
		t.Fatalf("Expected only fresh.jpg, got %+v", results)
	}
}

// TestGetAssetByDigest 测试按内容摘要找重.
func TestGetAssetByDigest(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	imported := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mustPut(t, repo, sampleAsset("dup.jpg", nil, imported))

	got, err := repo.GetAssetByDigest(ctx, "SHA256-dup.jpg")
	if err != nil {
		t.Fatalf("Failed to get asset by digest: %v", err)
	}

	if got.Key != model.EncodeKey("dup.jpg") {
		t.Errorf("Digest lookup returned wrong asset: %+v", got)
	}

	_, err = repo.GetAssetByDigest(ctx, "sha256-unknown")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown digest, got %v", err)
	}
}

// TestPutAssetPreservesImmutables 测试重复 upsert 保留创建期固定字段并刷新索引行.
func TestPutAssetPreservesImmutables(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	imported := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	original := sampleAsset("keep.jpg", []string{"draft"}, imported)
	mustPut(t, repo, original)

	update := sampleAsset("keep.jpg", []string{"final"}, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	update.Checksum = "sha256-other"
	update.ByteLength = 9999
	update.Caption = "reviewed"
	mustPut(t, repo, update)

	got, err := repo.GetAssetByID(ctx, original.Key)
	if err != nil {
		t.Fatalf("Failed to get asset: %v", err)
	}

	if got.Checksum != "sha256-keep.jpg" || got.ByteLength != 1024 {
		t.Errorf("Immutable fields changed: checksum=%s byteLength=%d", got.Checksum, got.ByteLength)
	}

	if !got.ImportDate.Equal(imported) {
		t.Errorf("Import date changed: %v", got.ImportDate)
	}

	if got.Caption != "reviewed" {
		t.Errorf("Mutable field not updated: %s", got.Caption)
	}

	// 旧标签的索引行必须被清掉
	stale, err := repo.QueryByTags(ctx, []string{"draft"})
	if err != nil {
		t.Fatalf("Failed to query stale tag: %v", err)
	}

	if len(stale) != 0 {
		t.Errorf("Stale index rows survived update: %+v", stale)
	}

	fresh, err := repo.QueryByTags(ctx, []string{"final"})
	if err != nil {
		t.Fatalf("Failed to query fresh tag: %v", err)
	}

	if len(fresh) != 1 {
		t.Errorf("Expected updated tag to match, got %+v", fresh)
	}
}

// TestPutAssetLastWriterWins 测试同键先后两次写入以后写为准.
func TestPutAssetLastWriterWins(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	imported := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first := sampleAsset("race.jpg", nil, imported)
	first.Caption = "first"
	mustPut(t, repo, first)

	second := sampleAsset("race.jpg", nil, imported)
	second.Caption = "second"
	mustPut(t, repo, second)

	got, err := repo.GetAssetByID(ctx, first.Key)
	if err != nil {
		t.Fatalf("Failed to get asset: %v", err)
	}

	if got.Caption != "second" {
		t.Errorf("Expected last write to win, got caption %q", got.Caption)
	}
}

// TestGroupedCounts 测试分组计数：标签小写、年份四位数字.
func TestGroupedCounts(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	mustPut(t, repo, sampleAsset("a.jpg", []string{"Cat"}, time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)))
	mustPut(t, repo, sampleAsset("b.jpg", []string{"cat", "dog"}, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)))

	tags, err := repo.AllTags(ctx)
	if err != nil {
		t.Fatalf("Failed to count tags: %v", err)
	}

	byLabel := make(map[string]int64, len(tags))
	for _, c := range tags {
		byLabel[c.Label] = c.Count
	}

	if byLabel["cat"] != 2 || byLabel["dog"] != 1 {
		t.Errorf("Unexpected tag counts: %v", byLabel)
	}

	if _, upper := byLabel["Cat"]; upper {
		t.Error("Tag labels should be lowercased")
	}

	years, err := repo.AllYears(ctx)
	if err != nil {
		t.Fatalf("Failed to count years: %v", err)
	}

	yearLabels := make(map[string]int64, len(years))
	for _, c := range years {
		yearLabels[c.Label] = c.Count
	}

	if yearLabels["2023"] != 1 || yearLabels["2024"] != 1 {
		t.Errorf("Unexpected year counts: %v", yearLabels)
	}

	media, err := repo.AllMediaTypes(ctx)
	if err != nil {
		t.Fatalf("Failed to count media types: %v", err)
	}

	if len(media) != 1 || media[0].Label != "image/jpeg" || media[0].Count != 2 {
		t.Errorf("Unexpected media type counts: %+v", media)
	}
}

// TestRawLocationRecords 测试原始位置三元组去重且排除全空.
func TestRawLocationRecords(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	imported := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	a := sampleAsset("a.jpg", nil, imported)
	a.Location = model.ParseLocation("pier; Porto, Norte")
	mustPut(t, repo, a)

	b := sampleAsset("b.jpg", nil, imported)
	b.Location = model.ParseLocation("pier; Porto, Norte")
	mustPut(t, repo, b)

	c := sampleAsset("c.jpg", nil, imported)
	mustPut(t, repo, c)

	records, err := repo.RawLocationRecords(ctx)
	if err != nil {
		t.Fatalf("Failed to list location records: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("Expected 1 distinct location record, got %d", len(records))
	}

	if records[0].Label != "pier" || records[0].City != "Porto" || records[0].Region != "Norte" {
		t.Errorf("Unexpected location record: %+v", records[0])
	}
}

// TestFetchAssetsCursor 测试游标遍历：按键序分页直至终止标记.
func TestFetchAssetsCursor(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	imported := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	paths := []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"}
	for _, p := range paths {
		mustPut(t, repo, sampleAsset(p, nil, imported))
	}

	var seen []string

	cursor := ""
	for i := 0; i < 10; i++ {
		assets, next, err := repo.FetchAssets(ctx, cursor, 2)
		if err != nil {
			t.Fatalf("Failed to fetch assets: %v", err)
		}

		for _, a := range assets {
			seen = append(seen, a.FileName)
		}

		if next == repository.CursorDone {
			cursor = next
			break
		}

		cursor = next
	}

	if cursor != repository.CursorDone {
		t.Fatal("Cursor never reached done sentinel")
	}

	if len(seen) != len(paths) {
		t.Fatalf("Expected %d assets via cursor, got %d: %v", len(paths), len(seen), seen)
	}

	// 终止游标幂等：再取一次必须为空
	assets, next, err := repo.FetchAssets(ctx, repository.CursorDone, 2)
	if err != nil {
		t.Fatalf("Failed to fetch with done cursor: %v", err)
	}

	if len(assets) != 0 || next != repository.CursorDone {
		t.Errorf("Done cursor should yield nothing, got %d assets next=%q", len(assets), next)
	}
}

// TestDeleteAsset 测试删除后文档与索引行都不可见.
func TestDeleteAsset(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	imported := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	a := sampleAsset("gone.jpg", []string{"cat"}, imported)
	mustPut(t, repo, a)

	if err := repo.DeleteAsset(ctx, a.Key); err != nil {
		t.Fatalf("Failed to delete asset: %v", err)
	}

	_, err := repo.GetAssetByID(ctx, a.Key)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}

	results, err := repo.QueryByTags(ctx, []string{"cat"})
	if err != nil {
		t.Fatalf("Failed to query after delete: %v", err)
	}

	if len(results) != 0 {
		t.Errorf("Index rows survived delete: %+v", results)
	}
}

// TestReindexOnVersionMismatch 测试存量版本号过期时重开仓库会重建索引行.
func TestReindexOnVersionMismatch(t *testing.T) {
	repo, engine := newRepo(t)
	ctx := context.Background()
	imported := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mustPut(t, repo, sampleAsset("a.jpg", []string{"cat"}, imported))

	// 伪造过期版本号并注入一条孤儿索引行
	if err := engine.Set(ctx, "meta.catalog-index-version", []byte("1")); err != nil {
		t.Fatalf("Failed to downgrade version marker: %v", err)
	}

	if err := engine.Set(ctx, "idx.tag.b3JwaGFu.bogus", []byte(`{"value":"orphan"}`)); err != nil {
		t.Fatalf("Failed to plant orphan row: %v", err)
	}

	reopened, err := document.NewWithEngine(ctx, engine)
	if err != nil {
		t.Fatalf("Failed to reopen repository: %v", err)
	}

	results, err := reopened.QueryByTags(ctx, []string{"cat"})
	if err != nil {
		t.Fatalf("Failed to query after rebuild: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("Expected rebuilt index to serve queries, got %+v", results)
	}

	orphan, err := engine.Exists(ctx, "idx.tag.b3JwaGFu.bogus")
	if err != nil {
		t.Fatalf("Failed to check orphan row: %v", err)
	}

	if orphan {
		t.Error("Orphan index row should be dropped by rebuild")
	}
}

// TestStoreAssets 测试批量写入逐条幂等提交.
func TestStoreAssets(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	imported := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	batch := []model.Asset{
		sampleAsset("x.jpg", []string{"cat"}, imported),
		sampleAsset("y.jpg", []string{"dog"}, imported),
	}

	if err := repo.StoreAssets(ctx, batch); err != nil {
		t.Fatalf("Failed to store assets: %v", err)
	}

	count, err := repo.CountAssets(ctx)
	if err != nil {
		t.Fatalf("Failed to count assets: %v", err)
	}

	if count != 2 {
		t.Errorf("Expected 2 assets, got %d", count)
	}

	// 重放同一批不会产生重复
	if err := repo.StoreAssets(ctx, batch); err != nil {
		t.Fatalf("Failed to replay batch: %v", err)
	}

	count, err = repo.CountAssets(ctx)
	if err != nil {
		t.Fatalf("Failed to count assets: %v", err)
	}

	if count != 2 {
		t.Errorf("Replay should be idempotent, got %d assets", count)
	}
}
