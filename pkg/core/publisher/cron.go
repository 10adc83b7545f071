package publisher

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Ticker 可被周期驱动的对象
type Ticker interface {
	Tick()
}

// CronTicker 使用cron定时驱动Tick（对外导出）
type CronTicker struct {
	cron     *cron.Cron
	target   Ticker
	interval time.Duration
	entry    cron.EntryID
	mu       sync.Mutex
	running  bool
}

// NewCronTicker 创建定时驱动器，interval最小为1秒
func NewCronTicker(target Ticker, interval time.Duration) (*CronTicker, error) {
	if target == nil {
		return nil, errors.New("tick目标不能为nil")
	}
	if interval < time.Second {
		return nil, fmt.Errorf("发布间隔不能小于1秒: %s", interval)
	}

	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	entry, err := c.AddFunc(fmt.Sprintf("@every %s", interval), target.Tick)
	if err != nil {
		return nil, fmt.Errorf("添加Cron任务失败: %w", err)
	}

	return &CronTicker{cron: c, target: target, interval: interval, entry: entry}, nil
}

// Interval 发布间隔
func (t *CronTicker) Interval() time.Duration { return t.interval }

// Next 下一次触发时间，未启动时为零值
func (t *CronTicker) Next() time.Time {
	return t.cron.Entry(t.entry).Next
}

// Start 启动定时器（对外导出）
func (t *CronTicker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.running = true
	t.cron.Start()
	log.Printf("✅ [快照定时器] 已启动: Interval=%s", t.interval)
}

// Stop 停止定时器并等待正在执行的Tick结束（对外导出）
func (t *CronTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	<-t.cron.Stop().Done()
	log.Println("✅ [快照定时器] 已停止")
}
