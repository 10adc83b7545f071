// Package storage 根据配置创建键值存储（内部使用）
package storage

import (
	"fmt"

	"github.com/LENAX/task-visualizer/pkg/storage"
	"github.com/LENAX/task-visualizer/pkg/storage/mysql"
	"github.com/LENAX/task-visualizer/pkg/storage/postgres"
	"github.com/LENAX/task-visualizer/pkg/storage/sqlite"
	"github.com/LENAX/task-visualizer/pkg/storage/sqlkv"
)

// NewKVStore 创建键值存储（内部方法）
// kvType: 存储类型（memory/sqlite/mysql/postgres）
// dsn: 数据库连接字符串，memory类型忽略
func NewKVStore(kvType, dsn string, pool sqlkv.PoolConfig) (storage.KVStore, error) {
	switch kvType {
	case "", "memory":
		return storage.NewMemoryKV(), nil
	case "sqlite":
		return openSQL(sqlite.NewSQLiteDialect(), dsn, pool)
	case "mysql":
		return openSQL(mysql.NewMySQLDialect(), mysql.NormalizeDSN(dsn), pool)
	case "postgres", "postgresql":
		return openSQL(postgres.NewPostgresDialect(), dsn, pool)
	default:
		return nil, fmt.Errorf("unsupported kv store type: %s", kvType)
	}
}

func openSQL(dialect storage.Dialect, dsn string, pool sqlkv.PoolConfig) (storage.KVStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("create %s kv store failed: dsn is empty", dialect.Name())
	}
	repo, err := sqlkv.Open(dialect, dsn, pool)
	if err != nil {
		return nil, fmt.Errorf("create %s kv store failed: %w", dialect.Name(), err)
	}
	return repo, nil
}
