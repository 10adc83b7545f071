// Package demo 演示用任务树，visualizer server --demo 时挂到调度器上
package demo

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/LENAX/task-visualizer/pkg/core/scheduler"
	"github.com/LENAX/task-visualizer/pkg/core/task"
)

// Option 演示配置
type Option func(*Routine)

// WithClock 使用指定时钟驱动等待类任务
func WithClock(clock task.Clock) Option {
	return func(r *Routine) { r.clock = clock }
}

// Routine 循环执行的演示任务集合
// auto每次结束后由调度器周期回调重新调度，目标分支在三个值之间轮换
type Routine struct {
	sched *scheduler.Scheduler
	clock task.Clock

	target atomic.Int32
	cycles atomic.Int64
	pulses atomic.Int64

	once      sync.Once
	auto      *task.Sequential
	heartbeat *task.Repeat
	vision    *task.Proxy
}

// Install 构建演示任务并调度
func Install(s *scheduler.Scheduler, opts ...Option) *Routine {
	r := &Routine{sched: s}
	for _, opt := range opts {
		opt(r)
	}
	r.build()

	s.AddPeriodic(r.periodic)
	s.Schedule(r.auto, r.heartbeat, r.vision)
	return r
}

func (r *Routine) build() {
	drivetrain := task.NewResource("drivetrain")
	intake := task.NewResource("intake")

	notifier := task.NewNotifier(func() { r.pulses.Add(1) }, 200*time.Millisecond)
	notifier.SetName("intake-telemetry")

	deadline := task.NewDeadline("collect",
		r.wait(2*time.Second),
		task.NewRun("run-intake", nil, intake),
		notifier,
	)

	pick := task.NewSelect(func() any { return int(r.target.Load()) },
		task.SelectEntry{Key: 0, Task: task.NewInstant("score-low", nil)},
		task.SelectEntry{Key: 1, Task: task.NewInstant("score-high", nil)},
		task.SelectEntry{Key: 2, Task: r.wait(time.Second)},
	)
	pick.SetName("score")

	race := task.NewRace("align",
		r.wait(1500*time.Millisecond),
		task.NewWaitUntil(func() bool { return false }),
	)

	endgame := task.NewConditional(
		task.NewInstant("park", nil),
		task.NewInstant("climb", nil),
		func() bool { return r.cycles.Load()%2 == 0 },
	)
	endgame.SetName("endgame")

	r.auto = task.NewSequential("auto",
		r.wait(time.Second),
		deadline,
		pick,
		race,
		endgame,
	)
	r.auto.AddRequirements(drivetrain)

	blink := task.NewSequential("blink", task.NewInstant("led-on", nil), r.wait(500*time.Millisecond))
	r.heartbeat = task.NewRepeat(blink)
	r.heartbeat.SetName("heartbeat")
	r.heartbeat.SetRunsWhenDisabled(true)

	r.vision = task.NewProxy(r.sched, task.NewRun("vision-tracking", nil))
}

func (r *Routine) wait(d time.Duration) *task.Wait {
	return task.NewWait(d, r.clock)
}

// periodic auto结束后切换目标并重新调度
func (r *Routine) periodic() {
	if r.sched.IsScheduled(r.auto) {
		return
	}
	r.cycles.Add(1)
	r.target.Store((r.target.Load() + 1) % 3)
	r.sched.Schedule(r.auto)
}

// Cycles auto已完成的轮数
func (r *Routine) Cycles() int64 { return r.cycles.Load() }

// Pulses 遥测通知的触发次数
func (r *Routine) Pulses() int64 { return r.pulses.Load() }

// Tasks 顶层演示任务
func (r *Routine) Tasks() []task.Task {
	return []task.Task{r.auto, r.heartbeat, r.vision}
}

// Stop 取消全部演示任务
func (r *Routine) Stop() {
	r.once.Do(func() {
		r.sched.Cancel(r.auto, r.heartbeat, r.vision)
	})
}
