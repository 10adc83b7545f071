package task

import (
	"sync"
	"time"
)

// Clock 时间源，测试中可替换
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock 系统时钟
var SystemClock Clock = systemClock{}

// Timer 可启停的累计计时器
type Timer struct {
	mu          sync.Mutex
	clock       Clock
	accumulated time.Duration
	startedAt   time.Time
	running     bool
}

// NewTimer 创建计时器，clock为nil时使用系统时钟
func NewTimer(clock Clock) *Timer {
	if clock == nil {
		clock = SystemClock
	}
	return &Timer{clock: clock}
}

// Restart 清零并开始计时
func (t *Timer) Restart() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.accumulated = 0
	t.startedAt = t.clock.Now()
	t.running = true
}

// Stop 停止计时，保留已累计时间
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		t.accumulated += t.clock.Now().Sub(t.startedAt)
		t.running = false
	}
}

// Elapsed 获取累计时间
func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return t.accumulated + t.clock.Now().Sub(t.startedAt)
	}
	return t.accumulated
}
