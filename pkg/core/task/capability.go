package task

import "time"

// 以下接口暴露内置组合任务的内部状态，供描述器只读访问

// ConditionalSource 条件任务
type ConditionalSource interface {
	Condition() bool
	OnTrue() Task
	OnFalse() Task
}

// PeriodicSource 周期通知任务
type PeriodicSource interface {
	Period() time.Duration
}

// ChildState 子任务及其在组合内的运行标志
type ChildState struct {
	Task    Task
	Running bool
}

// ParallelSource 并行组（全部完成）
type ParallelSource interface {
	ChildStates() []ChildState
}

// DeadlineSource 截止并行组，ChildStates包含截止任务本身
type DeadlineSource interface {
	Deadline() Task
	ChildStates() []ChildState
}

// RaceSource 竞速并行组
type RaceSource interface {
	Children() []Task
}

// DelegateSource 代理任务，Delegate在初始化前可能为nil
type DelegateSource interface {
	Delegate() Task
}

// ScheduleSource 调度类任务（即发即忘）
type ScheduleSource interface {
	Targets() []Task
}

// RepeatSource 重复任务
type RepeatSource interface {
	Repeated() Task
}

// SelectEntry 选择任务的键与候选任务
type SelectEntry struct {
	Key  any
	Task Task
}

// SelectSource 选择任务
// HasSupplier为true时Entries为空，候选任务延迟解析
type SelectSource interface {
	SelectorValue() any
	HasSupplier() bool
	Entries() []SelectEntry
	Selected() Task
}

// SequenceSource 顺序组
type SequenceSource interface {
	Steps() []Task
	CurrentIndex() int
}

// WaitSource 定时等待任务
type WaitSource interface {
	Duration() time.Duration
	Elapsed() time.Duration
}

// ConditionSource 条件等待任务
type ConditionSource interface {
	Condition() bool
}

// WrapperSource 包装任务
type WrapperSource interface {
	Wrapped() Task
}
