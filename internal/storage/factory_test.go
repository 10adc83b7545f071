package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgstorage "github.com/LENAX/task-visualizer/pkg/storage"
	"github.com/LENAX/task-visualizer/pkg/storage/sqlkv"
)

func TestNewKVStore_Memory(t *testing.T) {
	kv, err := NewKVStore("memory", "", sqlkv.PoolConfig{})
	require.NoError(t, err)
	assert.IsType(t, &pkgstorage.MemoryKV{}, kv)
}

func TestNewKVStore_SQLite(t *testing.T) {
	kv, err := NewKVStore("sqlite", filepath.Join(t.TempDir(), "kv.db"), sqlkv.PoolConfig{})
	require.NoError(t, err)
	defer kv.Close()

	require.NoError(t, kv.Put(context.Background(), "k", "v"))
	v, ok, err := kv.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestNewKVStore_Errors(t *testing.T) {
	_, err := NewKVStore("redis", "", sqlkv.PoolConfig{})
	assert.Error(t, err)

	_, err = NewKVStore("postgres", "", sqlkv.PoolConfig{})
	assert.Error(t, err)
}
