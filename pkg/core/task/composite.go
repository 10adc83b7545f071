package task

import (
	"sync"
)

// Conditional 条件任务：初始化时根据条件选择执行分支
type Conditional struct {
	Base
	mu        sync.Mutex
	onTrue    Task
	onFalse   Task
	condition func() bool
	selected  Task
}

// NewConditional 创建条件任务
func NewConditional(onTrue, onFalse Task, condition func() bool) *Conditional {
	t := &Conditional{onTrue: onTrue, onFalse: onFalse, condition: condition}
	t.Bind(t, KindConditional, "")
	t.composeFrom(onTrue, onFalse)
	return t
}

// Components 实现Composite接口
func (t *Conditional) Components() []Task { return []Task{t.onTrue, t.onFalse} }

// Condition 当前条件值
func (t *Conditional) Condition() bool { return t.condition != nil && t.condition() }

// OnTrue 条件为真时的分支
func (t *Conditional) OnTrue() Task { return t.onTrue }

// OnFalse 条件为假时的分支
func (t *Conditional) OnFalse() Task { return t.onFalse }

// Initialize 选择分支并初始化
func (t *Conditional) Initialize() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Condition() {
		t.selected = t.onTrue
	} else {
		t.selected = t.onFalse
	}
	t.selected.Initialize()
}

// Execute 执行选中分支
func (t *Conditional) Execute() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.selected != nil {
		t.selected.Execute()
	}
}

// End 结束选中分支
func (t *Conditional) End(interrupted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.selected != nil {
		t.selected.End(interrupted)
	}
}

// IsFinished 选中分支结束即结束
func (t *Conditional) IsFinished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selected != nil && t.selected.IsFinished()
}

// Repeat 重复任务：子任务结束后立即重新开始
type Repeat struct {
	Base
	mu    sync.Mutex
	child Task
	ended bool
}

// NewRepeat 创建重复任务
func NewRepeat(child Task) *Repeat {
	t := &Repeat{child: child}
	t.Bind(t, KindRepeat, "Repeat"+child.Name())
	t.composeFrom(child)
	return t
}

// Components 实现Composite接口
func (t *Repeat) Components() []Task { return []Task{t.child} }

// Repeated 被重复的子任务
func (t *Repeat) Repeated() Task { return t.child }

// Initialize 初始化子任务
func (t *Repeat) Initialize() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ended = false
	t.child.Initialize()
}

// Execute 执行子任务，结束后重新初始化
func (t *Repeat) Execute() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended {
		t.ended = false
		t.child.Initialize()
	}
	t.child.Execute()
	if t.child.IsFinished() {
		t.child.End(false)
		t.ended = true
	}
}

// End 结束子任务
func (t *Repeat) End(interrupted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ended {
		t.child.End(interrupted)
	}
}

// Wrapper 包装任务：完整委托给被包装任务，可覆盖名称与类型
type Wrapper struct {
	Base
	inner Task
}

// NewWrapper 创建包装任务
func NewWrapper(inner Task) *Wrapper {
	return NewWrapperOfKind(KindWrapper, inner)
}

// NewWrapperOfKind 创建指定类型（需为KindWrapper的子类型）的包装任务
func NewWrapperOfKind(kind *Kind, inner Task) *Wrapper {
	t := &Wrapper{inner: inner}
	t.Bind(t, kind, inner.Name())
	t.composeFrom(inner)
	t.SetRunsWhenDisabled(inner.RunsWhenDisabled())
	t.SetInterruptionBehavior(inner.InterruptionBehavior())
	return t
}

// Components 实现Composite接口
func (t *Wrapper) Components() []Task { return []Task{t.inner} }

// Wrapped 被包装的任务
func (t *Wrapper) Wrapped() Task { return t.inner }

// Initialize 委托
func (t *Wrapper) Initialize() { t.inner.Initialize() }

// Execute 委托
func (t *Wrapper) Execute() { t.inner.Execute() }

// End 委托
func (t *Wrapper) End(interrupted bool) { t.inner.End(interrupted) }

// IsFinished 委托
func (t *Wrapper) IsFinished() bool { return t.inner.IsFinished() }
