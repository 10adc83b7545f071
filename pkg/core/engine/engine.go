// Package engine 可视化引擎：显式持有注册表、身份分配、存活跟踪、快照发布与调度器
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/LENAX/task-visualizer/pkg/config"
	"github.com/LENAX/task-visualizer/pkg/core/cache"
	"github.com/LENAX/task-visualizer/pkg/core/describe"
	"github.com/LENAX/task-visualizer/pkg/core/identity"
	"github.com/LENAX/task-visualizer/pkg/core/liveness"
	"github.com/LENAX/task-visualizer/pkg/core/publisher"
	"github.com/LENAX/task-visualizer/pkg/core/realtime"
	"github.com/LENAX/task-visualizer/pkg/core/scheduler"
	"github.com/LENAX/task-visualizer/pkg/core/task"
	"github.com/LENAX/task-visualizer/pkg/storage"
)

// TaskSummary 被跟踪任务的摘要
type TaskSummary struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	IsRunning bool   `json:"isRunning"`
	Scheduled bool   `json:"scheduled"`
}

// Status 引擎状态
type Status struct {
	InstanceName string               `json:"instanceName"`
	Running      bool                 `json:"running"`
	Publisher    publisher.Stats      `json:"publisher"`
	Enabled      bool                 `json:"enabled"`
	Mode         string               `json:"mode"`
	Interval     string               `json:"interval"`
	Tracker      liveness.Stats       `json:"tracker"`
	Identities   int                  `json:"identities"`
	Cached       int                  `json:"cached"`
	Sinks        []publisher.SinkInfo `json:"sinks"`
	Bus          *realtime.BusStats   `json:"bus,omitempty"`
	Hub          *realtime.HubStats   `json:"hub,omitempty"`
}

// Engine 可视化引擎（对外导出）
type Engine struct {
	cfg    *config.VisualizerConfig
	logger watermill.LoggerAdapter

	registry  *describe.Registry
	assigner  *identity.Assigner
	tracker   *liveness.Tracker
	cache     *cache.DescriptorCache
	builder   *describe.Builder
	publisher *publisher.Publisher
	scheduler *scheduler.Scheduler
	ticker    *publisher.CronTicker

	store storage.KVStore
	bus   *realtime.Bus
	hub   *realtime.Hub

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Start 启动事件总线、调度循环与快照定时器（对外导出）
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return errors.New("引擎已停止")
	}
	if e.running {
		return nil
	}

	if e.bus != nil {
		e.bus.Start()
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.scheduler.Start(loopCtx, e.cfg.TaskVisualizer.Scheduler.Period)
	}()

	e.ticker.Start()
	e.running = true
	log.Printf("✅ 任务可视化引擎已启动: Instance=%s, Mode=%s, Interval=%s",
		e.cfg.TaskVisualizer.General.InstanceName, e.publisher.Mode(), e.ticker.Interval())
	return nil
}

// Stop 停止引擎并释放资源（对外导出）
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return nil
	}
	e.stopped = true

	var errs []error
	if e.running {
		e.ticker.Stop()
		e.cancel()
		e.wg.Wait()
		e.scheduler.CancelAll()
		e.running = false
	}

	e.publisher.Close()
	if e.hub != nil {
		e.hub.Close()
	}
	if e.bus != nil {
		if err := e.bus.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.cache.Close()
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("关闭键值存储失败: %w", err))
		}
	}
	log.Println("✅ 任务可视化引擎已停止")
	return errors.Join(errs...)
}

// IsRunning 引擎是否已启动
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Config 获取配置
func (e *Engine) Config() *config.VisualizerConfig { return e.cfg }

// Logger 获取日志
func (e *Engine) Logger() watermill.LoggerAdapter { return e.logger }

// Registry 获取描述器注册表
func (e *Engine) Registry() *describe.Registry { return e.registry }

// Assigner 获取身份分配器
func (e *Engine) Assigner() *identity.Assigner { return e.assigner }

// Tracker 获取存活跟踪器
func (e *Engine) Tracker() *liveness.Tracker { return e.tracker }

// Builder 获取不带缓存的描述符构建器，可在渲染之外并发使用
func (e *Engine) Builder() *describe.Builder { return e.builder }

// Publisher 获取快照发布器
func (e *Engine) Publisher() *publisher.Publisher { return e.publisher }

// Scheduler 获取调度器
func (e *Engine) Scheduler() *scheduler.Scheduler { return e.scheduler }

// Store 获取键值存储，未启用时为nil
func (e *Engine) Store() storage.KVStore { return e.store }

// Bus 获取事件总线，未启用时为nil
func (e *Engine) Bus() *realtime.Bus { return e.bus }

// Hub 获取WebSocket广播中心，未启用时为nil
func (e *Engine) Hub() *realtime.Hub { return e.hub }

// Snapshot 返回最近一次发布的快照；尚未发布时即时渲染
func (e *Engine) Snapshot() (string, time.Time, error) {
	if payload, at, ok := e.publisher.LastPayload(); ok {
		return payload, at, nil
	}
	payload, err := e.publisher.Render()
	if err != nil {
		return "", time.Time{}, err
	}
	return payload, time.Now(), nil
}

// Describe 即时描述单个任务，返回的描述符不会被后续渲染修改
func (e *Engine) Describe(t task.Task) (*describe.Descriptor, error) {
	if t == nil {
		return nil, describe.ErrNilTask
	}
	return e.builder.Describe(t, e.tracker.IsRunning(t))
}

// Tasks 按模式列出被跟踪的任务
func (e *Engine) Tasks(mode liveness.Mode) []TaskSummary {
	tasks := e.tracker.Tasks(mode)
	out := make([]TaskSummary, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, TaskSummary{
			ID:        e.assigner.IDFor(t),
			Name:      t.Name(),
			Kind:      t.Kind().Name(),
			IsRunning: e.tracker.IsRunning(t),
			Scheduled: e.scheduler.IsScheduled(t),
		})
	}
	return out
}

// EnablePublishing 启用快照发布
func (e *Engine) EnablePublishing() {
	e.publisher.Enable()
	e.logger.Info("快照发布已启用", nil)
}

// DisablePublishing 禁用快照发布，跟踪状态与Sink不受影响
func (e *Engine) DisablePublishing() {
	e.publisher.Disable()
	e.logger.Info("快照发布已禁用", nil)
}

// Status 获取引擎状态
func (e *Engine) Status() Status {
	s := Status{
		InstanceName: e.cfg.TaskVisualizer.General.InstanceName,
		Running:      e.IsRunning(),
		Publisher:    e.publisher.Stats(),
		Enabled:      e.publisher.Enabled(),
		Mode:         e.publisher.Mode().String(),
		Interval:     e.ticker.Interval().String(),
		Tracker:      e.tracker.Stats(),
		Identities:   e.assigner.Len(),
		Cached:       e.cache.Len(),
		Sinks:        e.publisher.Sinks(),
	}
	if e.bus != nil {
		bs := e.bus.Stats()
		s.Bus = &bs
	}
	if e.hub != nil {
		hs := e.hub.Stats()
		s.Hub = &hs
	}
	return s
}
