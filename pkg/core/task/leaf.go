package task

import (
	"sync"
	"time"
)

// Instant 初始化时执行一次动作并立即结束
type Instant struct {
	Base
	action func()
}

// NewInstant 创建即时任务
func NewInstant(name string, action func(), reqs ...Requirement) *Instant {
	t := &Instant{action: action}
	t.Bind(t, KindInstant, name)
	t.AddRequirements(reqs...)
	return t
}

// Initialize 执行动作
func (t *Instant) Initialize() {
	if t.action != nil {
		t.action()
	}
}

// IsFinished 始终结束
func (t *Instant) IsFinished() bool { return true }

// Run 每个周期执行一次动作，直到被中断
type Run struct {
	Base
	action func()
}

// NewRun 创建持续执行任务
func NewRun(name string, action func(), reqs ...Requirement) *Run {
	t := &Run{action: action}
	t.Bind(t, KindRun, name)
	t.AddRequirements(reqs...)
	return t
}

// Execute 执行动作
func (t *Run) Execute() {
	if t.action != nil {
		t.action()
	}
}

// Wait 等待指定时长
type Wait struct {
	Base
	duration time.Duration
	timer    *Timer
}

// NewWait 创建定时等待任务，clock为nil时使用系统时钟
func NewWait(duration time.Duration, clock Clock) *Wait {
	t := &Wait{duration: duration, timer: NewTimer(clock)}
	t.Bind(t, KindWait, "")
	t.SetRunsWhenDisabled(true)
	return t
}

// Initialize 开始计时
func (t *Wait) Initialize() { t.timer.Restart() }

// End 停止计时
func (t *Wait) End(interrupted bool) { t.timer.Stop() }

// IsFinished 到达时长即结束
func (t *Wait) IsFinished() bool { return t.timer.Elapsed() >= t.duration }

// Duration 配置的等待时长
func (t *Wait) Duration() time.Duration { return t.duration }

// Elapsed 自启动以来的时间
func (t *Wait) Elapsed() time.Duration { return t.timer.Elapsed() }

// WaitUntil 等待条件成立
type WaitUntil struct {
	Base
	condition func() bool
}

// NewWaitUntil 创建条件等待任务
func NewWaitUntil(condition func() bool) *WaitUntil {
	t := &WaitUntil{condition: condition}
	t.Bind(t, KindWaitUntil, "")
	t.SetRunsWhenDisabled(true)
	return t
}

// Condition 当前条件值
func (t *WaitUntil) Condition() bool { return t.condition != nil && t.condition() }

// IsFinished 条件成立即结束
func (t *WaitUntil) IsFinished() bool { return t.Condition() }

// Notifier 在后台按固定周期执行动作，直到被中断
type Notifier struct {
	Base
	action func()
	period time.Duration

	mu   sync.Mutex
	stop chan struct{}
}

// NewNotifier 创建周期通知任务
func NewNotifier(action func(), period time.Duration, reqs ...Requirement) *Notifier {
	t := &Notifier{action: action, period: period}
	t.Bind(t, KindNotifier, "")
	t.AddRequirements(reqs...)
	return t
}

// Period 执行周期
func (t *Notifier) Period() time.Duration { return t.period }

// Initialize 启动后台周期执行
func (t *Notifier) Initialize() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil || t.period <= 0 || t.action == nil {
		return
	}
	stop := make(chan struct{})
	t.stop = stop
	go func() {
		ticker := time.NewTicker(t.period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.action()
			case <-stop:
				return
			}
		}
	}()
}

// End 停止后台执行
func (t *Notifier) End(interrupted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}
