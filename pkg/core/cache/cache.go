// Package cache 按任务ID缓存描述符
package cache

import (
	"sync"
	"time"

	"github.com/LENAX/task-visualizer/pkg/core/describe"
)

// cacheEntry 缓存条目（内部使用）
type cacheEntry struct {
	value    *describe.Descriptor
	lastUsed time.Time
}

// DescriptorCache 内存描述符缓存实现（对外导出）
// 任务不可达时由ID分配器通过Forget删除条目；
// idleTTL>0 时长时间未被使用的条目也会被清理
type DescriptorCache struct {
	mu      sync.RWMutex
	cache   map[int64]*cacheEntry
	idleTTL time.Duration
	now     func() time.Time
	stopCh  chan struct{}
	once    sync.Once
}

// NewDescriptorCache 创建描述符缓存实例（对外导出）
func NewDescriptorCache(idleTTL time.Duration) *DescriptorCache {
	c := &DescriptorCache{
		cache:   make(map[int64]*cacheEntry),
		idleTTL: idleTTL,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	if idleTTL > 0 {
		// 启动清理协程，定期清理闲置条目
		go c.cleanupLoop(idleTTL)
	}
	return c
}

// Put 设置缓存值
func (c *DescriptorCache) Put(id int64, d *describe.Descriptor) {
	if id == 0 || d == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[id] = &cacheEntry{value: d, lastUsed: c.now()}
}

// Get 获取缓存值
func (c *DescriptorCache) Get(id int64) (*describe.Descriptor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.cache[id]
	if !exists {
		return nil, false
	}
	entry.lastUsed = c.now()
	return entry.value, true
}

// Forget 删除缓存值，签名与 identity.Assigner.OnForget 的回调一致
func (c *DescriptorCache) Forget(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, id)
}

// Len 缓存条目数
func (c *DescriptorCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Clear 清空所有缓存
func (c *DescriptorCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[int64]*cacheEntry)
}

// Close 停止清理协程
func (c *DescriptorCache) Close() {
	c.once.Do(func() { close(c.stopCh) })
}

// cleanupLoop 清理闲置缓存（内部方法）
func (c *DescriptorCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.evictIdle()
		case <-c.stopCh:
			return
		}
	}
}

func (c *DescriptorCache) evictIdle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	deadline := c.now().Add(-c.idleTTL)
	for id, entry := range c.cache {
		if entry.lastUsed.Before(deadline) {
			delete(c.cache, id)
		}
	}
}
