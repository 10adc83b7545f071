// Package sqlite SQLite方言与驱动注册
package sqlite

import (
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/LENAX/task-visualizer/pkg/storage"
)

// DriverName sqlx驱动名
const DriverName = "sqlite3"

// SQLiteDialect SQLite方言实现（对外导出）
type SQLiteDialect struct{}

// NewSQLiteDialect 创建SQLite方言实例
func NewSQLiteDialect() *SQLiteDialect {
	return &SQLiteDialect{}
}

// Name 返回方言名称
func (d *SQLiteDialect) Name() string {
	return DriverName
}

// SchemaSQL 快照表，SQLite的TEXT没有长度上限
func (d *SQLiteDialect) SchemaSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	kv_key TEXT NOT NULL PRIMARY KEY,
	kv_value TEXT NOT NULL,
	updated_at DATETIME NOT NULL
)`, table)
}

// PutSQL 使用ON CONFLICT覆盖，保留行的rowid
func (d *SQLiteDialect) PutSQL(table string) string {
	return fmt.Sprintf(
		"INSERT INTO %s (kv_key, kv_value, updated_at) VALUES (:kv_key, :kv_value, :updated_at) "+
			"ON CONFLICT (kv_key) DO UPDATE SET kv_value = excluded.kv_value, updated_at = excluded.updated_at",
		table,
	)
}

// SessionSQL 发布协程与API并发读写同一个文件
func (d *SQLiteDialect) SessionSQL() []string {
	return []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
	}
}

var _ storage.Dialect = (*SQLiteDialect)(nil)
