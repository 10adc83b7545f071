package task

import "sync"

// Proxy 代理任务：初始化时把目标任务交给调度器独立调度
type Proxy struct {
	Base
	launcher Launcher
	supplier func() Task

	mu     sync.Mutex
	target Task
}

// NewProxy 创建固定目标的代理任务
func NewProxy(launcher Launcher, target Task) *Proxy {
	t := &Proxy{launcher: launcher, supplier: func() Task { return target }, target: target}
	t.Bind(t, KindProxy, "Proxy("+target.Name()+")")
	return t
}

// NewProxySupplier 创建延迟解析目标的代理任务
func NewProxySupplier(launcher Launcher, supplier func() Task) *Proxy {
	t := &Proxy{launcher: launcher, supplier: supplier}
	t.Bind(t, KindProxy, "Proxy")
	return t
}

// Delegate 当前代理的目标任务，延迟解析时初始化前为nil
func (t *Proxy) Delegate() Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.target
}

// Initialize 解析并调度目标任务
func (t *Proxy) Initialize() {
	t.mu.Lock()
	t.target = t.supplier()
	target := t.target
	t.mu.Unlock()
	if target != nil {
		t.launcher.Schedule(target)
	}
}

// End 中断时取消目标任务
func (t *Proxy) End(interrupted bool) {
	target := t.Delegate()
	if interrupted && target != nil {
		t.launcher.Cancel(target)
	}
}

// IsFinished 目标任务不再被调度即结束
func (t *Proxy) IsFinished() bool {
	target := t.Delegate()
	return target == nil || !t.launcher.IsScheduled(target)
}

// Schedule 调度任务：调度目标后立即结束
type Schedule struct {
	Base
	launcher Launcher
	targets  []Task
}

// NewSchedule 创建调度任务
func NewSchedule(launcher Launcher, targets ...Task) *Schedule {
	t := &Schedule{launcher: launcher, targets: targets}
	t.Bind(t, KindSchedule, "")
	t.SetRunsWhenDisabled(true)
	return t
}

// Targets 被调度的目标任务
func (t *Schedule) Targets() []Task {
	out := make([]Task, len(t.targets))
	copy(out, t.targets)
	return out
}

// Initialize 调度所有目标
func (t *Schedule) Initialize() { t.launcher.Schedule(t.targets...) }

// IsFinished 始终结束
func (t *Schedule) IsFinished() bool { return true }

// ProxySchedule 代理调度任务：调度目标并等待全部结束
type ProxySchedule struct {
	Base
	launcher Launcher
	targets  []Task
}

// NewProxySchedule 创建代理调度任务
func NewProxySchedule(launcher Launcher, targets ...Task) *ProxySchedule {
	t := &ProxySchedule{launcher: launcher, targets: targets}
	t.Bind(t, KindProxySchedule, "")
	return t
}

// Targets 被调度的目标任务
func (t *ProxySchedule) Targets() []Task {
	out := make([]Task, len(t.targets))
	copy(out, t.targets)
	return out
}

// Initialize 调度所有目标
func (t *ProxySchedule) Initialize() { t.launcher.Schedule(t.targets...) }

// End 中断时取消目标
func (t *ProxySchedule) End(interrupted bool) {
	if interrupted {
		t.launcher.Cancel(t.targets...)
	}
}

// IsFinished 所有目标都不再被调度即结束
func (t *ProxySchedule) IsFinished() bool {
	for _, target := range t.targets {
		if t.launcher.IsScheduled(target) {
			return false
		}
	}
	return true
}
