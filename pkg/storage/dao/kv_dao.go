// Package dao 数据表映射对象
package dao

import "time"

// KVDAO 键值表的数据访问对象（内部使用）
type KVDAO struct {
	Key       string    `db:"kv_key"`
	Value     string    `db:"kv_value"`
	UpdatedAt time.Time `db:"updated_at"`
}
