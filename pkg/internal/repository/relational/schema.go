package relational

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	nlog "github.com/yeisme/photovault/pkg/log"
)

// schemaVersion 随表和视图定义一同持久化的版本号.
// 定义发生变化时递增，启动时版本不一致会重建视图并补齐缺失对象.
const schemaVersion = 2

// bestDateExpr 最佳日期（user date ▸ original date ▸ import date）的 SQL 表达式.
// WHERE 谓词必须与建索引时逐字一致，否则引擎不会命中表达式索引而退化为全表扫描；
// 因此 DDL 和查询都只从这一个常量取表达式.
const bestDateExpr = "coalesce(user_date, original_date, import_date)"

// 标签与位置字段在宽表里以制表符分隔编码，视图按该分隔符递归展开.
const fieldSep = "\t"

// splitView 生成把制表符分隔列展开为每值一行的递归 CTE 视图.
// concatExpr/locateExpr 按方言给出字符串拼接与子串定位的写法.
func splitView(name, column, alias, concatExpr, locateExpr string) string {
	return "CREATE VIEW " + name + " AS\n" +
		"WITH RECURSIVE split(asset_key, part, rest) AS (\n" +
		"    SELECT asset_key, '', " + concatExpr + " FROM assets WHERE " + column + " <> ''\n" +
		"    UNION ALL\n" +
		"    SELECT asset_key,\n" +
		"           substr(rest, 1, " + locateExpr + " - 1),\n" +
		"           substr(rest, " + locateExpr + " + 1)\n" +
		"    FROM split\n" +
		"    WHERE rest <> ''\n" +
		")\n" +
		"SELECT asset_key, lower(part) AS " + alias + " FROM split WHERE part <> ''"
}

// schemaStatements 返回指定方言下从任意旧版本迁到当前版本的 DDL 语句序列.
// 表建在 IF NOT EXISTS 之后幂等，视图先删后建实现重定义.
func schemaStatements(dialect string) ([]string, error) {
	switch dialect {
	case "sqlite":
		return []string{
			`CREATE TABLE IF NOT EXISTS assets (
    asset_key     TEXT PRIMARY KEY,
    checksum      TEXT NOT NULL DEFAULT '',
    file_name     TEXT NOT NULL DEFAULT '',
    byte_length   INTEGER NOT NULL DEFAULT 0,
    media_type    TEXT NOT NULL DEFAULT '',
    caption       TEXT NOT NULL DEFAULT '',
    tags          TEXT NOT NULL DEFAULT '',
    location      TEXT NOT NULL DEFAULT '',
    import_date   DATETIME NOT NULL,
    original_date DATETIME,
    user_date     DATETIME,
    index_year    INTEGER GENERATED ALWAYS AS (CAST(strftime('%Y', ` + bestDateExpr + `) AS INTEGER)) STORED
)`,
			`CREATE INDEX IF NOT EXISTS idx_assets_best_date ON assets (` + bestDateExpr + `)`,
			`CREATE INDEX IF NOT EXISTS idx_assets_checksum ON assets (checksum)`,
			`DROP VIEW IF EXISTS asset_tags`,
			splitView("asset_tags", "tags", "tag",
				"tags || char(9)", "instr(rest, char(9))"),
			`DROP VIEW IF EXISTS asset_location_parts`,
			splitView("asset_location_parts", "location", "part",
				"location || char(9)", "instr(rest, char(9))"),
		}, nil
	case "mysql":
		return []string{
			// MySQL 不支持 CREATE INDEX IF NOT EXISTS，索引随表内联定义
			`CREATE TABLE IF NOT EXISTS assets (
    asset_key     VARCHAR(512) PRIMARY KEY,
    checksum      VARCHAR(128) NOT NULL DEFAULT '',
    file_name     VARCHAR(1024) NOT NULL DEFAULT '',
    byte_length   BIGINT NOT NULL DEFAULT 0,
    media_type    VARCHAR(128) NOT NULL DEFAULT '',
    caption       TEXT,
    tags          TEXT,
    location      TEXT,
    import_date   DATETIME NOT NULL,
    original_date DATETIME,
    user_date     DATETIME,
    index_year    INT GENERATED ALWAYS AS (YEAR(` + bestDateExpr + `)) STORED,
    INDEX idx_assets_best_date ((` + bestDateExpr + `)),
    INDEX idx_assets_checksum (checksum)
)`,
			`DROP VIEW IF EXISTS asset_tags`,
			splitView("asset_tags", "tags", "tag",
				"CONCAT(tags, CHAR(9))", "INSTR(rest, CHAR(9))"),
			`DROP VIEW IF EXISTS asset_location_parts`,
			splitView("asset_location_parts", "location", "part",
				"CONCAT(location, CHAR(9))", "INSTR(rest, CHAR(9))"),
		}, nil
	case "postgres":
		return []string{
			`CREATE TABLE IF NOT EXISTS assets (
    asset_key     TEXT PRIMARY KEY,
    checksum      TEXT NOT NULL DEFAULT '',
    file_name     TEXT NOT NULL DEFAULT '',
    byte_length   BIGINT NOT NULL DEFAULT 0,
    media_type    TEXT NOT NULL DEFAULT '',
    caption       TEXT NOT NULL DEFAULT '',
    tags          TEXT NOT NULL DEFAULT '',
    location      TEXT NOT NULL DEFAULT '',
    import_date   TIMESTAMP NOT NULL,
    original_date TIMESTAMP,
    user_date     TIMESTAMP,
    index_year    INT GENERATED ALWAYS AS (CAST(EXTRACT(YEAR FROM ` + bestDateExpr + `) AS INT)) STORED
)`,
			`CREATE INDEX IF NOT EXISTS idx_assets_best_date ON assets (` + bestDateExpr + `)`,
			`CREATE INDEX IF NOT EXISTS idx_assets_checksum ON assets (checksum)`,
			`DROP VIEW IF EXISTS asset_tags`,
			splitView("asset_tags", "tags", "tag",
				"tags || chr(9)", "strpos(rest, chr(9))"),
			`DROP VIEW IF EXISTS asset_location_parts`,
			splitView("asset_location_parts", "location", "part",
				"location || chr(9)", "strpos(rest, chr(9))"),
		}, nil
	default:
		return nil, fmt.Errorf("no schema statements for dialect: %s", dialect)
	}
}

// ensureSchema 启动时核对持久化的架构版本，不一致则执行迁移语句并写回当前版本.
// 失败意味着仓库不可用，由调用方升级为致命错误.
func ensureSchema(ctx context.Context, gdb *gorm.DB) error {
	if err := gdb.WithContext(ctx).Exec(
		`CREATE TABLE IF NOT EXISTS schema_info (version INTEGER NOT NULL)`).Error; err != nil {
		return fmt.Errorf("create schema_info table: %w", err)
	}

	var version int
	if err := gdb.WithContext(ctx).Raw(
		`SELECT version FROM schema_info LIMIT 1`).Scan(&version).Error; err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version == schemaVersion {
		return nil
	}

	nlog.Logger().Info().
		Int("stored", version).
		Int("current", schemaVersion).
		Msg("schema definitions out of date, migrating")

	statements, err := schemaStatements(gdb.Dialector.Name())
	if err != nil {
		return err
	}

	for _, stmt := range statements {
		if err := gdb.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}

	if err := gdb.WithContext(ctx).Exec(`DELETE FROM schema_info`).Error; err != nil {
		return fmt.Errorf("reset schema version: %w", err)
	}

	if err := gdb.WithContext(ctx).Exec(
		`INSERT INTO schema_info (version) VALUES (?)`, schemaVersion).Error; err != nil {
		return fmt.Errorf("store schema version: %w", err)
	}

	return nil
}
