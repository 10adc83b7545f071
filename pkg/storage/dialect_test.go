package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LENAX/task-visualizer/pkg/storage"
	"github.com/LENAX/task-visualizer/pkg/storage/mysql"
	"github.com/LENAX/task-visualizer/pkg/storage/postgres"
	"github.com/LENAX/task-visualizer/pkg/storage/sqlite"
)

func TestDialects_PutSQL(t *testing.T) {
	const insert = "INSERT INTO kv (kv_key, kv_value, updated_at) VALUES (:kv_key, :kv_value, :updated_at) "

	assert.Equal(t,
		insert+"ON CONFLICT (kv_key) DO UPDATE SET kv_value = excluded.kv_value, updated_at = excluded.updated_at",
		sqlite.NewSQLiteDialect().PutSQL("kv"))

	assert.Equal(t,
		insert+"ON DUPLICATE KEY UPDATE kv_value = VALUES(kv_value), updated_at = VALUES(updated_at)",
		mysql.NewMySQLDialect().PutSQL("kv"))

	assert.Equal(t,
		insert+"ON CONFLICT (kv_key) DO UPDATE SET kv_value = EXCLUDED.kv_value, updated_at = EXCLUDED.updated_at",
		postgres.NewPostgresDialect().PutSQL("kv"))
}

func TestDialects_SchemaSQL(t *testing.T) {
	dialects := []storage.Dialect{
		sqlite.NewSQLiteDialect(),
		mysql.NewMySQLDialect(),
		postgres.NewPostgresDialect(),
	}
	for _, d := range dialects {
		ddl := d.SchemaSQL("snapshots")
		assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS snapshots", d.Name())
		assert.Contains(t, ddl, "kv_key", d.Name())
		assert.NotEmpty(t, d.SessionSQL(), d.Name())
	}

	assert.Contains(t, mysql.NewMySQLDialect().SchemaSQL("kv"), "kv_value LONGTEXT NOT NULL")
	assert.Contains(t, postgres.NewPostgresDialect().SchemaSQL("kv"), "updated_at TIMESTAMPTZ NOT NULL")
}

func TestMySQL_NormalizeDSN(t *testing.T) {
	assert.Equal(t, "u:p@tcp(h:3306)/db?parseTime=true", mysql.NormalizeDSN("u:p@tcp(h:3306)/db"))
	assert.Equal(t, "u:p@tcp(h:3306)/db?a=b&parseTime=true", mysql.NormalizeDSN("u:p@tcp(h:3306)/db?a=b"))
	assert.Equal(t, "x?parseTime=true", mysql.NormalizeDSN("x?parseTime=true"))
}
