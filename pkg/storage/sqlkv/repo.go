// Package sqlkv 基于sqlx的键值存储，支持sqlite、mysql、postgres
package sqlkv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/LENAX/task-visualizer/pkg/storage"
	"github.com/LENAX/task-visualizer/pkg/storage/dao"
)

// DefaultTable 默认表名
const DefaultTable = "visualizer_kv"

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// KVRepo SQL键值存储（对外导出）
type KVRepo struct {
	db        *sqlx.DB
	dialect   storage.Dialect
	table     string
	upsertSQL string
}

// NewKVRepo 基于已有连接创建键值存储，会自动建表
func NewKVRepo(db *sqlx.DB, dialect storage.Dialect, table string) (*KVRepo, error) {
	if table == "" {
		table = DefaultTable
	}
	repo := &KVRepo{
		db:        db,
		dialect:   dialect,
		table:     table,
		upsertSQL: dialect.PutSQL(table),
	}
	if err := repo.initSchema(); err != nil {
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}
	return repo, nil
}

// Open 通过DSN打开数据库并创建键值存储
func Open(dialect storage.Dialect, dsn string, pool PoolConfig) (*KVRepo, error) {
	db, err := sqlx.Open(dialect.Name(), dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	for _, stmt := range dialect.SessionSQL() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("配置数据库失败: %w", err)
		}
	}

	repo, err := NewKVRepo(db, dialect, DefaultTable)
	if err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *KVRepo) initSchema() error {
	_, err := r.db.Exec(r.dialect.SchemaSQL(r.table))
	return err
}

// Put 写入或覆盖键值
func (r *KVRepo) Put(ctx context.Context, key, value string) error {
	row := dao.KVDAO{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	if _, err := r.db.NamedExecContext(ctx, r.upsertSQL, row); err != nil {
		return fmt.Errorf("写入键值失败: key=%s: %w", key, err)
	}
	return nil
}

// Get 读取键值
func (r *KVRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var row dao.KVDAO
	query := r.db.Rebind(fmt.Sprintf("SELECT kv_key, kv_value, updated_at FROM %s WHERE kv_key = ?", r.table))
	if err := r.db.GetContext(ctx, &row, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("读取键值失败: key=%s: %w", key, err)
	}
	return row.Value, true, nil
}

// Delete 删除键值
func (r *KVRepo) Delete(ctx context.Context, key string) error {
	query := r.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE kv_key = ?", r.table))
	if _, err := r.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("删除键值失败: key=%s: %w", key, err)
	}
	return nil
}

// Keys 列出所有键
func (r *KVRepo) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	query := fmt.Sprintf("SELECT kv_key FROM %s ORDER BY kv_key", r.table)
	if err := r.db.SelectContext(ctx, &keys, query); err != nil {
		return nil, fmt.Errorf("列出键失败: %w", err)
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

// GetDB 获取底层数据库连接（对外导出）
func (r *KVRepo) GetDB() *sqlx.DB {
	return r.db
}

// Close 关闭数据库连接（对外导出）
func (r *KVRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

var _ storage.KVStore = (*KVRepo)(nil)
