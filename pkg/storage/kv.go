// Package storage 定义快照键值存储接口与SQL方言
package storage

import (
	"context"
	"errors"
)

// ErrClosed 存储已关闭
var ErrClosed = errors.New("存储已关闭")

// KVStore 键值存储接口（对外导出）
// 用于保存最新一次渲染的快照，调用方只关心最新值
type KVStore interface {
	// Put 写入或覆盖键值
	Put(ctx context.Context, key, value string) error
	// Get 读取键值，第二个返回值表示是否存在
	Get(ctx context.Context, key string) (string, bool, error)
	// Delete 删除键值，不存在时不报错
	Delete(ctx context.Context, key string) error
	// Keys 列出所有键，按字典序排列
	Keys(ctx context.Context) ([]string, error)
	// Close 释放底层资源
	Close() error
}

// Dialect 快照键值表的SQL方言（对外导出）
// 表固定三列：kv_key、kv_value、updated_at
type Dialect interface {
	// Name 方言名称，同时也是sqlx驱动名
	Name() string
	// SchemaSQL 建表语句，表已存在时不报错
	SchemaSQL(table string) string
	// PutSQL 按kv_key覆盖写入，使用命名参数 :kv_key :kv_value :updated_at
	PutSQL(table string) string
	// SessionSQL 连接建立后执行的语句
	SessionSQL() []string
}
