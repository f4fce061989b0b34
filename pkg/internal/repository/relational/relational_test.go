package relational_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeisme/photovault/pkg/internal/model"
	"github.com/yeisme/photovault/pkg/internal/repository"
	"github.com/yeisme/photovault/pkg/internal/repository/document"
	"github.com/yeisme/photovault/pkg/internal/repository/relational"
	"github.com/yeisme/photovault/pkg/internal/storage/kv"
)

// newRepo 在内存 SQLite 上建一个空仓库.
func newRepo(t *testing.T) (*relational.Repo, *gorm.DB) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open in-memory sqlite: %v", err)
	}

	// 内存库绑定单个连接，连接池复用会拿到空库
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("Failed to get underlying sql.DB: %v", err)
	}

	sqlDB.SetMaxOpenConns(1)

	repo, err := relational.NewWithDB(context.Background(), gdb)
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}

	return repo, gdb
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

func mustPut(t *testing.T, repo *relational.Repo, a model.Asset) {
	t.Helper()

	if err := repo.PutAsset(context.Background(), &a); err != nil {
		t.Fatalf("Failed to put asset %s: %v", a.FileName, err)
	}
}

// TestPutAndGetAsset 测试写入后按记录键读回，标签与位置经制表符编码往返.
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

	if len(got.Tags) != 2 || got.Tags[0] != "Beach" || got.Tags[1] != "sunset" {
		t.Errorf("Expected normalized tags [Beach sunset], got %v", got.Tags)
	}

	if got.Location == nil || got.Location.Label != "harbor" || got.Location.City != "Porto" || got.Location.Region != "Norte" {
		t.Errorf("Location not preserved: %+v", got.Location)
	}

	_, err = repo.GetAssetByID(ctx, model.EncodeKey("missing.jpg"))
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing key, got %v", err)
	}
}

// TestEmptyLocationRoundTrip 测试三字段全空的位置往返为"无位置"，而不是三个空串.
func TestEmptyLocationRoundTrip(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	a := sampleAsset("plain.jpg", nil, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	a.Location = &model.Location{}
	mustPut(t, repo, a)

	got, err := repo.GetAssetByID(ctx, a.Key)
	if err != nil {
		t.Fatalf("Failed to get asset: %v", err)
	}

	if got.Location != nil {
		t.Errorf("Empty location should round-trip as nil, got %+v", got.Location)
	}
}

// TestQueryByTags 测试标签查询为超集匹配，交集算法工作在视图返回的并集之上.
func TestQueryByTags(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	imported := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mustPut(t, repo, sampleAsset("a.jpg", []string{"cat", "mouse", "outdoor"}, imported))
	mustPut(t, repo, sampleAsset("b.jpg", []string{"cat"}, imported))
	mustPut(t, repo, sampleAsset("c.jpg", []string{"dog"}, imported))

	results, err := repo.QueryByTags(ctx, []string{"Cat", "MOUSE"})
	if err != nil {
		t.Fatalf("Failed to query by tags: %v", err)
	}

	if len(results) != 1 || results[0].Key != model.EncodeKey("a.jpg") {
		t.Fatalf("Expected only a.jpg for [cat mouse], got %+v", results)
	}

	results, err = repo.QueryByTags(ctx, []string{"cat"})
	if err != nil {
		t.Fatalf("Failed to query by tags: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("Expected 2 assets for [cat], got %d", len(results))
	}

	if results[0].Key > results[1].Key {
		t.Errorf("Results not sorted by key: %v, %v", results[0].Key, results[1].Key)
	}
}

// TestQueryByLocations 测试位置多值交集匹配.
func TestQueryByLocations(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	imported := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	a := sampleAsset("porto.jpg", nil, imported)
	a.Location = model.ParseLocation("riverside; Porto, Norte")
	mustPut(t, repo, a)

	b := sampleAsset("braga.jpg", nil, imported)
	b.Location = model.ParseLocation("Braga, Norte")
	mustPut(t, repo, b)

	results, err := repo.QueryByLocations(ctx, []string{"NORTE"})
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

// TestDateQueries 测试最佳日期边界：after 含界、before 不含界、区间半开.
// WHERE 谓词与建索引共用同一个表达式常量.
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

// TestQueryNewborn 测试待整理查询：有说明或有位置标注的资产被排除，仅有城市的不算标注.
func TestQueryNewborn(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	cutoff := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	fresh := sampleAsset("fresh.jpg", nil, cutoff.Add(time.Hour))
	mustPut(t, repo, fresh)

	cityOnly := sampleAsset("city.jpg", nil, cutoff.Add(time.Hour))
	cityOnly.Location = &model.Location{City: "Porto"}
	mustPut(t, repo, cityOnly)

	labeled := sampleAsset("labeled.jpg", nil, cutoff.Add(time.Hour))
	labeled.Location = &model.Location{Label: "pier"}
	mustPut(t, repo, labeled)

	captioned := sampleAsset("captioned.jpg", nil, cutoff.Add(time.Hour))
	captioned.Caption = "done"
	mustPut(t, repo, captioned)

	old := sampleAsset("old.jpg", nil, cutoff.Add(-time.Hour))
	mustPut(t, repo, old)

	results, err := repo.QueryNewborn(ctx, cutoff)
	if err != nil {
		t.Fatalf("Failed to query newborn: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("Expected fresh.jpg and city.jpg, got %+v", results)
	}

	keys := map[string]bool{results[0].Key: true, results[1].Key: true}
	if !keys[model.EncodeKey("fresh.jpg")] || !keys[model.EncodeKey("city.jpg")] {
		t.Errorf("Unexpected newborn set: %+v", results)
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

// TestPutAssetPreservesImmutables 测试原生 upsert 冲突时只覆盖可变列.
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

	if got.Caption != "reviewed" || len(got.Tags) != 1 || got.Tags[0] != "final" {
		t.Errorf("Mutable fields not updated: caption=%q tags=%v", got.Caption, got.Tags)
	}

	stale, err := repo.QueryByTags(ctx, []string{"draft"})
	if err != nil {
		t.Fatalf("Failed to query stale tag: %v", err)
	}

	if len(stale) != 0 {
		t.Errorf("Stale tag still matches after update: %+v", stale)
	}
}

// TestUpsertIdempotence 测试同一 upsert 施加两次与一次结果一致.
func TestUpsertIdempotence(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	imported := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	a := sampleAsset("same.jpg", []string{"cat"}, imported)
	mustPut(t, repo, a)

	first, err := repo.GetAssetByID(ctx, a.Key)
	if err != nil {
		t.Fatalf("Failed to get asset: %v", err)
	}

	mustPut(t, repo, a)

	second, err := repo.GetAssetByID(ctx, a.Key)
	if err != nil {
		t.Fatalf("Failed to get asset: %v", err)
	}

	if first.Checksum != second.Checksum || first.Caption != second.Caption ||
		len(first.Tags) != len(second.Tags) || !first.ImportDate.Equal(second.ImportDate) {
		t.Errorf("Repeated upsert diverged: %+v vs %+v", first, second)
	}

	count, err := repo.CountAssets(ctx)
	if err != nil {
		t.Fatalf("Failed to count assets: %v", err)
	}

	if count != 1 {
		t.Errorf("Expected 1 asset after repeated upsert, got %d", count)
	}
}

// TestGroupedCounts 测试视图分组计数：标签小写、年份来自生成列且为四位数字.
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
}

// TestLocationPartCounts 测试位置片段展开视图的分组计数.
func TestLocationPartCounts(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	imported := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	a := sampleAsset("a.jpg", nil, imported)
	a.Location = model.ParseLocation("pier; Porto, Norte")
	mustPut(t, repo, a)

	b := sampleAsset("b.jpg", nil, imported)
	b.Location = model.ParseLocation("Braga, Norte")
	mustPut(t, repo, b)

	parts, err := repo.AllLocationParts(ctx)
	if err != nil {
		t.Fatalf("Failed to count location parts: %v", err)
	}

	byLabel := make(map[string]int64, len(parts))
	for _, c := range parts {
		byLabel[c.Label] = c.Count
	}

	if byLabel["norte"] != 2 || byLabel["porto"] != 1 || byLabel["pier"] != 1 || byLabel["braga"] != 1 {
		t.Errorf("Unexpected location part counts: %v", byLabel)
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

	mustPut(t, repo, sampleAsset("c.jpg", nil, imported))

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

		cursor = next
		if cursor == repository.CursorDone {
			break
		}
	}

	if cursor != repository.CursorDone {
		t.Fatal("Cursor never reached done sentinel")
	}

	if len(seen) != len(paths) {
		t.Fatalf("Expected %d assets via cursor, got %d: %v", len(paths), len(seen), seen)
	}
}

// TestDeleteAsset 测试删除后记录与视图行都不可见.
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
		t.Errorf("View rows survived delete: %+v", results)
	}
}

// TestSchemaVersionMigration 测试存量版本号过期时重开仓库会重建视图.
func TestSchemaVersionMigration(t *testing.T) {
	repo, gdb := newRepo(t)
	ctx := context.Background()
	imported := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mustPut(t, repo, sampleAsset("a.jpg", []string{"cat"}, imported))

	// 伪造过期版本号并破坏视图
	if err := gdb.Exec(`UPDATE schema_info SET version = 1`).Error; err != nil {
		t.Fatalf("Failed to downgrade version marker: %v", err)
	}

	if err := gdb.Exec(`DROP VIEW asset_tags`).Error; err != nil {
		t.Fatalf("Failed to drop view: %v", err)
	}

	reopened, err := relational.NewWithDB(ctx, gdb)
	if err != nil {
		t.Fatalf("Failed to reopen repository: %v", err)
	}

	results, err := reopened.QueryByTags(ctx, []string{"cat"})
	if err != nil {
		t.Fatalf("Failed to query after migration: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("Expected migrated schema to serve queries, got %+v", results)
	}
}

// TestLocationPartCountsDuplicateField 位置的 label 与 city 小写后相同，
// 该资产对这个片段只应计一次，与文档后端的去重索引保持一致.
func TestLocationPartCountsDuplicateField(t *testing.T) {
	ctx := context.Background()
	imported := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	a := sampleAsset("duplicate.jpg", nil, imported)
	a.Location = &model.Location{Label: "Porto", City: "porto", Region: "Norte"}

	relRepo, _ := newRepo(t)
	mustPut(t, relRepo, a)

	engine, err := kv.NewMemoryStore(ctx, nil)
	if err != nil {
		t.Fatalf("Failed to create memory store: %v", err)
	}

	docRepo, err := document.NewWithEngine(ctx, engine)
	if err != nil {
		t.Fatalf("Failed to create document repository: %v", err)
	}
	defer docRepo.Close()

	docAsset := a
	if err := docRepo.PutAsset(ctx, &docAsset); err != nil {
		t.Fatalf("Failed to put asset into document repository: %v", err)
	}

	counts := func(repo repository.AssetRepository) map[string]int64 {
		parts, err := repo.AllLocationParts(ctx)
		if err != nil {
			t.Fatalf("Failed to count location parts: %v", err)
		}

		byLabel := make(map[string]int64, len(parts))
		for _, c := range parts {
			byLabel[c.Label] = c.Count
		}

		return byLabel
	}

	relCounts := counts(relRepo)
	docCounts := counts(docRepo)

	if relCounts["porto"] != 1 || relCounts["norte"] != 1 {
		t.Errorf("Unexpected relational counts: %v", relCounts)
	}

	for label, want := range docCounts {
		if relCounts[label] != want {
			t.Errorf("Backend divergence for %q: relational=%d document=%d",
				label, relCounts[label], want)
		}
	}

	if len(relCounts) != len(docCounts) {
		t.Errorf("Backend label sets differ: relational=%v document=%v", relCounts, docCounts)
	}
}
