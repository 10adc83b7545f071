// Package postgres PostgreSQL方言与驱动注册
package postgres

import (
	"fmt"

	_ "github.com/lib/pq"

	"github.com/LENAX/task-visualizer/pkg/storage"
)

// DriverName sqlx驱动名
const DriverName = "postgres"

// PostgresDialect PostgreSQL方言实现（对外导出）
type PostgresDialect struct{}

// NewPostgresDialect 创建PostgreSQL方言实例
func NewPostgresDialect() *PostgresDialect {
	return &PostgresDialect{}
}

// Name 返回方言名称
func (d *PostgresDialect) Name() string {
	return DriverName
}

// SchemaSQL 快照表
func (d *PostgresDialect) SchemaSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	kv_key VARCHAR(255) NOT NULL PRIMARY KEY,
	kv_value TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`, table)
}

// PutSQL 主键冲突时覆盖值，sqlx会把命名参数改写为$n
func (d *PostgresDialect) PutSQL(table string) string {
	return fmt.Sprintf(
		"INSERT INTO %s (kv_key, kv_value, updated_at) VALUES (:kv_key, :kv_value, :updated_at) "+
			"ON CONFLICT (kv_key) DO UPDATE SET kv_value = EXCLUDED.kv_value, updated_at = EXCLUDED.updated_at",
		table,
	)
}

// SessionSQL 会话时区统一为UTC
func (d *PostgresDialect) SessionSQL() []string {
	return []string{
		"SET TIME ZONE 'UTC';",
	}
}

var _ storage.Dialect = (*PostgresDialect)(nil)
