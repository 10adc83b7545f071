// Package publisher 周期性渲染任务快照并分发到各个Sink
package publisher

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/google/uuid"

	"github.com/LENAX/task-visualizer/pkg/core/describe"
	"github.com/LENAX/task-visualizer/pkg/core/liveness"
	"github.com/LENAX/task-visualizer/pkg/core/task"
)

// TaskSource 提供待渲染的顶层任务
type TaskSource interface {
	Tasks(mode liveness.Mode) []task.Task
	IsRunning(t task.Task) bool
}

// Describer 为每次渲染提供一个描述过程，整片森林共用
type Describer interface {
	NewPass() *describe.Pass
}

// Stats 发布统计
type Stats struct {
	Ticks                 int64     `json:"ticks"`
	Published             int64     `json:"published"`
	DisabledTicks         int64     `json:"disabledTicks"`
	TaskFailures          int64     `json:"taskFailures"`
	SerializationFailures int64     `json:"serializationFailures"`
	LastPublishedAt       time.Time `json:"lastPublishedAt"`
}

// SinkInfo Sink状态
type SinkInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Delivered int64  `json:"delivered"`
	Failed    int64  `json:"failed"`
	Dropped   int64  `json:"dropped"`
	Queued    int    `json:"queued"`
	Capacity  int    `json:"capacity"`
	Congested bool   `json:"congested"`
}

// Publisher 快照发布器（对外导出）
type Publisher struct {
	source    TaskSource
	describer Describer
	opts      *options
	logger    watermill.LoggerAdapter

	enabled atomic.Bool
	mode    atomic.Int32

	renderMu sync.Mutex

	mu     sync.RWMutex
	sinks  map[string]*sinkWorker
	seq    uint64
	closed bool
	wg     sync.WaitGroup

	lastMu      sync.RWMutex
	lastPayload string
	lastAt      time.Time

	ticks, published, disabledTicks, taskFailures, serializationFailures atomic.Int64
}

// New 创建发布器
func New(source TaskSource, describer Describer, opts ...Option) *Publisher {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	p := &Publisher{
		source:    source,
		describer: describer,
		opts:      o,
		logger:    o.logger,
		sinks:     make(map[string]*sinkWorker),
	}
	p.enabled.Store(o.enabled)
	p.mode.Store(int32(o.mode))
	return p
}

// Enable 启用发布
func (p *Publisher) Enable() { p.enabled.Store(true) }

// Disable 禁用发布，Sink与跟踪状态保持不变
func (p *Publisher) Disable() { p.enabled.Store(false) }

// Enabled 是否启用
func (p *Publisher) Enabled() bool { return p.enabled.Load() }

// Mode 当前快照范围
func (p *Publisher) Mode() liveness.Mode { return liveness.Mode(p.mode.Load()) }

// SetMode 切换快照范围
func (p *Publisher) SetMode(mode liveness.Mode) { p.mode.Store(int32(mode)) }

// Tick 执行一次发布，禁用时不做任何事
func (p *Publisher) Tick() {
	p.ticks.Add(1)
	if !p.Enabled() {
		p.disabledTicks.Add(1)
		return
	}

	payload, err := p.Render()
	if err != nil {
		p.serializationFailures.Add(1)
		p.logger.Error("序列化快照失败，跳过本次发布", err, nil)
		p.reportError(err)
		return
	}

	p.lastMu.Lock()
	p.lastPayload = payload
	p.lastAt = time.Now()
	p.lastMu.Unlock()

	p.published.Add(1)
	p.fanOut(payload)
}

// Render 按当前模式渲染全部顶层任务并序列化为JSON数组
// 单个任务描述失败会被记录并跳过
func (p *Publisher) Render() (string, error) {
	return p.RenderMode(p.Mode())
}

// RenderMode 按指定模式渲染，不改变发布器自身的模式
func (p *Publisher) RenderMode(mode liveness.Mode) (string, error) {
	p.renderMu.Lock()
	defer p.renderMu.Unlock()

	tasks := p.source.Tasks(mode)
	forest := make([]*describe.Descriptor, 0, len(tasks))
	pass := p.describer.NewPass()
	for _, t := range tasks {
		d, err := pass.Describe(t, p.source.IsRunning(t))
		if err != nil {
			p.taskFailures.Add(1)
			p.logger.Error("描述任务失败，已跳过", err, watermill.LogFields{"task": t.Name()})
			p.reportError(err)
			continue
		}
		forest = append(forest, d)
	}
	return describe.MarshalForest(forest)
}

// LastPayload 最近一次发布的快照
func (p *Publisher) LastPayload() (string, time.Time, bool) {
	p.lastMu.RLock()
	defer p.lastMu.RUnlock()
	return p.lastPayload, p.lastAt, !p.lastAt.IsZero()
}

// Stats 获取发布统计
func (p *Publisher) Stats() Stats {
	_, at, _ := p.LastPayload()
	return Stats{
		Ticks:                 p.ticks.Load(),
		Published:             p.published.Load(),
		DisabledTicks:         p.disabledTicks.Load(),
		TaskFailures:          p.taskFailures.Load(),
		SerializationFailures: p.serializationFailures.Load(),
		LastPublishedAt:       at,
	}
}

// RegisterSink 注册Sink，返回用于注销的ID
func (p *Publisher) RegisterSink(name string, sink Sink) (string, error) {
	if sink == nil {
		return "", errors.New("sink不能为nil")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", errors.New("发布器已关闭")
	}

	p.seq++
	w := &sinkWorker{
		id:     uuid.NewString(),
		name:   name,
		seq:    p.seq,
		sink:   sink,
		done:   make(chan struct{}),
		logger: p.logger,
		onErr:  p.reportError,
	}
	w.queue = NewSinkQueue(p.opts.sinkBuffer, p.opts.threshold, func(congested bool, usage float64) {
		fields := watermill.LogFields{"sink": name, "id": w.id, "usage": usage}
		if congested {
			p.logger.Info("Sink队列拥塞", fields)
			return
		}
		p.logger.Info("Sink队列已恢复", fields)
	})
	p.sinks[w.id] = w

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		w.run()
	}()

	p.logger.Debug("已注册Sink", watermill.LogFields{"sink": name, "id": w.id})
	return w.id, nil
}

// UnregisterSink 注销Sink，未投递的快照被丢弃
func (p *Publisher) UnregisterSink(id string) bool {
	p.mu.Lock()
	w, ok := p.sinks[id]
	if ok {
		delete(p.sinks, id)
	}
	p.mu.Unlock()

	if ok {
		w.stop()
	}
	return ok
}

// Sinks 已注册Sink的状态，按注册顺序排列
func (p *Publisher) Sinks() []SinkInfo {
	p.mu.RLock()
	workers := make([]*sinkWorker, 0, len(p.sinks))
	for _, w := range p.sinks {
		workers = append(workers, w)
	}
	p.mu.RUnlock()

	sort.Slice(workers, func(i, j int) bool { return workers[i].seq < workers[j].seq })
	out := make([]SinkInfo, 0, len(workers))
	for _, w := range workers {
		out = append(out, w.info())
	}
	return out
}

// Close 停止全部Sink协程
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	workers := make([]*sinkWorker, 0, len(p.sinks))
	for id, w := range p.sinks {
		workers = append(workers, w)
		delete(p.sinks, id)
	}
	p.mu.Unlock()

	for _, w := range workers {
		w.stop()
	}
	p.wg.Wait()
}

// fanOut 把快照推入每个Sink的队列，不等待投递
func (p *Publisher) fanOut(payload string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, w := range p.sinks {
		if !w.queue.Offer(payload) {
			p.logger.Debug("Sink队列已满，丢弃快照", watermill.LogFields{"sink": w.name})
		}
	}
}

func (p *Publisher) reportError(err error) {
	if p.opts.errorHandler != nil {
		p.opts.errorHandler(err)
	}
}

// sinkWorker 每个Sink一个投递协程
type sinkWorker struct {
	id     string
	name   string
	seq    uint64
	sink   Sink
	queue  *SinkQueue
	done   chan struct{}
	once   sync.Once
	logger watermill.LoggerAdapter
	onErr  func(error)

	delivered, failed atomic.Int64
}

func (w *sinkWorker) run() {
	for {
		payload, ok := w.queue.Take(w.done)
		if !ok {
			return
		}
		if err := w.deliver(payload); err != nil {
			w.failed.Add(1)
			w.logger.Error("投递快照失败", err, watermill.LogFields{"sink": w.name})
			w.onErr(err)
			continue
		}
		w.delivered.Add(1)
	}
}

// deliver 调用Sink并把错误与panic转换为SinkError
func (w *sinkWorker) deliver(payload string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &SinkError{SinkID: w.id, SinkName: w.name, Err: fmt.Errorf("sink panic: %v", r)}
		}
	}()
	if err := w.sink.Publish(payload); err != nil {
		return &SinkError{SinkID: w.id, SinkName: w.name, Err: err}
	}
	return nil
}

func (w *sinkWorker) stop() {
	w.once.Do(func() { close(w.done) })
}

func (w *sinkWorker) info() SinkInfo {
	return SinkInfo{
		ID:        w.id,
		Name:      w.name,
		Delivered: w.delivered.Load(),
		Failed:    w.failed.Load(),
		Dropped:   w.queue.Stats().Dropped,
		Queued:    w.queue.Len(),
		Capacity:  w.queue.Cap(),
		Congested: w.queue.Congested(),
	}
}
