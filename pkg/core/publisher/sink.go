package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/LENAX/task-visualizer/pkg/storage"
)

// DefaultKey 默认键值通道中保存最新快照的键
const DefaultKey = "CommandDescriptors"

// Sink 快照接收方（对外导出）
type Sink interface {
	Publish(payload string) error
}

// SinkFunc 函数形式的Sink
type SinkFunc func(payload string) error

// Publish 实现Sink接口
func (f SinkFunc) Publish(payload string) error { return f(payload) }

// kvSink 把最新快照写入键值存储
type kvSink struct {
	store   storage.KVStore
	key     string
	timeout time.Duration
}

// KVSink 创建写入键值存储的Sink，key为空时使用DefaultKey
func KVSink(store storage.KVStore, key string, timeout time.Duration) Sink {
	if key == "" {
		key = DefaultKey
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &kvSink{store: store, key: key, timeout: timeout}
}

func (s *kvSink) Publish(payload string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.store.Put(ctx, s.key, payload); err != nil {
		return fmt.Errorf("写入快照失败: %w", err)
	}
	return nil
}
