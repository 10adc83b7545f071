// Package mysql MySQL方言与驱动注册
package mysql

import (
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"github.com/LENAX/task-visualizer/pkg/storage"
)

// DriverName sqlx驱动名
const DriverName = "mysql"

// MySQLDialect MySQL方言实现（对外导出）
type MySQLDialect struct{}

// NewMySQLDialect 创建MySQL方言实例
func NewMySQLDialect() *MySQLDialect {
	return &MySQLDialect{}
}

// Name 返回方言名称
func (d *MySQLDialect) Name() string {
	return DriverName
}

// SchemaSQL 快照可能超过TEXT的64KB上限，值列使用LONGTEXT
func (d *MySQLDialect) SchemaSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	kv_key VARCHAR(255) NOT NULL PRIMARY KEY,
	kv_value LONGTEXT NOT NULL,
	updated_at DATETIME(6) NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, table)
}

// PutSQL 主键冲突时覆盖值
func (d *MySQLDialect) PutSQL(table string) string {
	return fmt.Sprintf(
		"INSERT INTO %s (kv_key, kv_value, updated_at) VALUES (:kv_key, :kv_value, :updated_at) "+
			"ON DUPLICATE KEY UPDATE kv_value = VALUES(kv_value), updated_at = VALUES(updated_at)",
		table,
	)
}

// SessionSQL 写入时间统一为UTC
func (d *MySQLDialect) SessionSQL() []string {
	return []string{
		"SET time_zone = '+00:00';",
	}
}

// NormalizeDSN 补全parseTime=true，updated_at才能扫描为time.Time
func NormalizeDSN(dsn string) string {
	if strings.Contains(dsn, "parseTime=true") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}

var _ storage.Dialect = (*MySQLDialect)(nil)
