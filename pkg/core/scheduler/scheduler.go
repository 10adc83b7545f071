// Package scheduler 参考任务调度器：负责任务的生命周期、资源占用与禁用状态
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/LENAX/task-visualizer/pkg/core/task"
)

// DefaultPeriod 默认调度周期
const DefaultPeriod = 20 * time.Millisecond

type entry struct {
	task task.Task
	seq  uint64
}

// Option 调度器选项
type Option func(*Scheduler)

// WithLogger 设置日志
func WithLogger(logger watermill.LoggerAdapter) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Scheduler 调度器（对外导出）
// 任务方法只在持有执行权的协程上调用，执行期间收到的Schedule/Cancel会延后到本轮结束处理
type Scheduler struct {
	mu     sync.Mutex
	idle   *sync.Cond
	busy   bool
	logger watermill.LoggerAdapter

	seq       uint64
	scheduled map[*task.Handle]*entry
	owners    map[task.Requirement]task.Task
	composed  map[*task.Handle]int
	disabled  bool

	toSchedule []task.Task
	toCancel   []task.Task

	periodics []func()

	initHooks      []func(task.Task)
	finishHooks    []func(task.Task)
	interruptHooks []func(task.Task)
}

// New 创建调度器
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:    watermill.NopLogger{},
		scheduled: make(map[*task.Handle]*entry),
		owners:    make(map[task.Requirement]task.Task),
		composed:  make(map[*task.Handle]int),
	}
	s.idle = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnInitialize 注册任务启动钩子
func (s *Scheduler) OnInitialize(fn func(task.Task)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initHooks = append(s.initHooks, fn)
}

// OnFinish 注册任务正常结束钩子
func (s *Scheduler) OnFinish(fn func(task.Task)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishHooks = append(s.finishHooks, fn)
}

// OnInterrupt 注册任务被中断钩子
func (s *Scheduler) OnInterrupt(fn func(task.Task)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interruptHooks = append(s.interruptHooks, fn)
}

// AddPeriodic 添加每轮调度前执行的回调
func (s *Scheduler) AddPeriodic(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periodics = append(s.periodics, fn)
}

// Schedule 调度任务
// 已调度、被组合、禁用期间不可运行、或与拒绝抢占的任务冲突的任务会被忽略
func (s *Scheduler) Schedule(tasks ...task.Task) {
	if !s.acquireOrDefer(tasks, nil) {
		return
	}
	for _, t := range tasks {
		s.scheduleNow(t)
	}
	s.release()
}

// Cancel 取消任务，未调度的任务会被忽略
func (s *Scheduler) Cancel(tasks ...task.Task) {
	if !s.acquireOrDefer(nil, tasks) {
		return
	}
	for _, t := range tasks {
		s.cancelNow(t)
	}
	s.release()
}

// CancelAll 取消全部已调度任务
func (s *Scheduler) CancelAll() {
	s.Cancel(s.Scheduled()...)
}

// IsScheduled 任务是否已调度（包括等待本轮结束后调度的任务）
func (s *Scheduler) IsScheduled(t task.Task) bool {
	if t == nil || t.Handle() == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scheduled[t.Handle()]; ok {
		return true
	}
	for _, pending := range s.toSchedule {
		if task.Same(pending, t) {
			return true
		}
	}
	return false
}

// IsRunning 与IsScheduled相同，供描述器查询
func (s *Scheduler) IsRunning(t task.Task) bool { return s.IsScheduled(t) }

// IsComposed 任务是否属于某个已调度的组合任务
func (s *Scheduler) IsComposed(t task.Task) bool {
	if t == nil || t.Handle() == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.composed[t.Handle()] > 0
}

// Requiring 占用某个资源的任务
func (s *Scheduler) Requiring(req task.Requirement) (task.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.owners[req]
	return t, ok
}

// Scheduled 按调度顺序返回已调度任务
func (s *Scheduler) Scheduled() []task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderedLocked()
}

// Disable 禁用调度器，不可在禁用期间运行的任务会在下一轮被中断
func (s *Scheduler) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled = true
}

// Enable 启用调度器
func (s *Scheduler) Enable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled = false
}

// Disabled 是否禁用
func (s *Scheduler) Disabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disabled
}

// Run 执行一轮调度：周期回调、执行任务、结束已完成任务
func (s *Scheduler) Run() {
	s.mu.Lock()
	for s.busy {
		s.idle.Wait()
	}
	s.busy = true
	periodics := append([]func(){}, s.periodics...)
	s.mu.Unlock()

	for _, fn := range periodics {
		s.safeCall("periodic", fn)
	}

	for _, t := range s.Scheduled() {
		if !s.stillScheduled(t) {
			continue
		}
		if s.Disabled() && !t.RunsWhenDisabled() {
			s.cancelNow(t)
			continue
		}
		t.Execute()
		if t.IsFinished() {
			s.finishNow(t)
		}
	}

	s.release()
}

// Start 以固定周期运行调度循环，直到ctx取消
func (s *Scheduler) Start(ctx context.Context, period time.Duration) {
	if period <= 0 {
		period = DefaultPeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	s.logger.Info("调度循环已启动", watermill.LogFields{"period": period.String()})
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("调度循环已停止", nil)
			return
		case <-ticker.C:
			s.Run()
		}
	}
}

// acquireOrDefer 获取执行权；已被占用时把请求挂起并返回false
func (s *Scheduler) acquireOrDefer(schedule, cancel []task.Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		s.toSchedule = append(s.toSchedule, schedule...)
		s.toCancel = append(s.toCancel, cancel...)
		return false
	}
	s.busy = true
	return true
}

// release 处理挂起的请求后释放执行权
func (s *Scheduler) release() {
	for {
		s.mu.Lock()
		if len(s.toSchedule) == 0 && len(s.toCancel) == 0 {
			s.busy = false
			s.idle.Broadcast()
			s.mu.Unlock()
			return
		}
		cancel, schedule := s.toCancel, s.toSchedule
		s.toCancel, s.toSchedule = nil, nil
		s.mu.Unlock()

		for _, t := range cancel {
			s.cancelNow(t)
		}
		for _, t := range schedule {
			s.scheduleNow(t)
		}
	}
}

func (s *Scheduler) scheduleNow(t task.Task) {
	if t == nil || t.Handle() == nil {
		return
	}

	s.mu.Lock()
	h := t.Handle()
	if _, ok := s.scheduled[h]; ok {
		s.mu.Unlock()
		return
	}
	if s.composed[h] > 0 {
		s.mu.Unlock()
		s.logger.Error("被组合的任务不能单独调度", ErrComposed, watermill.LogFields{"task": t.Name()})
		return
	}
	if s.disabled && !t.RunsWhenDisabled() {
		s.mu.Unlock()
		s.logger.Debug("调度器已禁用，忽略任务", watermill.LogFields{"task": t.Name()})
		return
	}

	var conflicts []task.Task
	for _, req := range t.Requirements() {
		owner, ok := s.owners[req]
		if !ok || containsTask(conflicts, owner) {
			continue
		}
		if owner.InterruptionBehavior() == task.CancelIncoming {
			s.mu.Unlock()
			s.logger.Debug("资源被占用且拒绝抢占，忽略任务", watermill.LogFields{
				"task":  t.Name(),
				"owner": owner.Name(),
				"req":   req.RequirementName(),
			})
			return
		}
		conflicts = append(conflicts, owner)
	}
	s.mu.Unlock()

	for _, c := range conflicts {
		s.cancelNow(c)
	}

	t.Initialize()

	s.mu.Lock()
	s.seq++
	s.scheduled[h] = &entry{task: t, seq: s.seq}
	for _, req := range t.Requirements() {
		s.owners[req] = t
	}
	s.markComposedLocked(t, 1)
	hooks := append([]func(task.Task){}, s.initHooks...)
	s.mu.Unlock()

	s.logger.Debug("任务已调度", watermill.LogFields{"task": t.Name(), "kind": t.Kind().Name()})
	fire(hooks, t)
}

func (s *Scheduler) cancelNow(t task.Task) {
	if !s.removeScheduled(t) {
		return
	}
	t.End(true)

	s.mu.Lock()
	hooks := append([]func(task.Task){}, s.interruptHooks...)
	s.mu.Unlock()

	s.logger.Debug("任务已中断", watermill.LogFields{"task": t.Name()})
	fire(hooks, t)
}

func (s *Scheduler) finishNow(t task.Task) {
	if !s.removeScheduled(t) {
		return
	}
	t.End(false)

	s.mu.Lock()
	hooks := append([]func(task.Task){}, s.finishHooks...)
	s.mu.Unlock()

	s.logger.Debug("任务已完成", watermill.LogFields{"task": t.Name()})
	fire(hooks, t)
}

func (s *Scheduler) removeScheduled(t task.Task) bool {
	if t == nil || t.Handle() == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h := t.Handle()
	if _, ok := s.scheduled[h]; !ok {
		return false
	}
	delete(s.scheduled, h)
	for req, owner := range s.owners {
		if task.Same(owner, t) {
			delete(s.owners, req)
		}
	}
	s.markComposedLocked(t, -1)
	return true
}

func (s *Scheduler) stillScheduled(t task.Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.scheduled[t.Handle()]
	return ok
}

// markComposedLocked 递归增减组合任务成员的引用计数
func (s *Scheduler) markComposedLocked(t task.Task, delta int) {
	c, ok := t.(task.Composite)
	if !ok {
		return
	}
	for _, child := range c.Components() {
		if child == nil || child.Handle() == nil {
			continue
		}
		h := child.Handle()
		s.composed[h] += delta
		if s.composed[h] <= 0 {
			delete(s.composed, h)
		}
		s.markComposedLocked(child, delta)
	}
}

func (s *Scheduler) orderedLocked() []task.Task {
	entries := make([]*entry, 0, len(s.scheduled))
	for _, e := range s.scheduled {
		entries = append(entries, e)
	}
	sortEntries(entries)
	out := make([]task.Task, len(entries))
	for i, e := range entries {
		out[i] = e.task
	}
	return out
}

func (s *Scheduler) safeCall(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("回调发生panic", ErrCallbackPanic, watermill.LogFields{"callback": name, "panic": r})
		}
	}()
	fn()
}

func fire(hooks []func(task.Task), t task.Task) {
	for _, fn := range hooks {
		fn(t)
	}
}

func containsTask(list []task.Task, t task.Task) bool {
	for _, existing := range list {
		if task.Same(existing, t) {
			return true
		}
	}
	return false
}

func sortEntries(entries []*entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
}
