package task

import (
	"encoding/json"
	"fmt"
	"sort"
)

// InterruptionBehavior 任务被新任务抢占资源时的处理策略（对外导出）
type InterruptionBehavior int

const (
	// CancelSelf 被抢占时取消自身（默认）
	CancelSelf InterruptionBehavior = iota
	// CancelIncoming 被抢占时拒绝新任务
	CancelIncoming
)

// String 返回策略名称（与可视化端约定的名称一致）
func (b InterruptionBehavior) String() string {
	switch b {
	case CancelIncoming:
		return "kCancelIncoming"
	default:
		return "kCancelSelf"
	}
}

// MarshalJSON 序列化为策略名称
func (b InterruptionBehavior) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// UnmarshalJSON 从策略名称反序列化
func (b *InterruptionBehavior) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "kCancelSelf":
		*b = CancelSelf
	case "kCancelIncoming":
		*b = CancelIncoming
	default:
		return fmt.Errorf("未知的中断策略: %s", s)
	}
	return nil
}

// Requirement 任务占用的资源（对外导出）
type Requirement interface {
	RequirementName() string
}

// Resource 简单的具名资源实现
type Resource struct {
	name string
}

// NewResource 创建具名资源
func NewResource(name string) *Resource {
	return &Resource{name: name}
}

// RequirementName 实现Requirement接口
func (r *Resource) RequirementName() string {
	return r.name
}

// Task 任务接口（对外导出）
// 生命周期由外部调度器负责：Initialize -> Execute* -> End
type Task interface {
	Name() string
	Kind() *Kind
	Requirements() []Requirement
	RunsWhenDisabled() bool
	InterruptionBehavior() InterruptionBehavior
	// Handle 返回任务的身份锚点，任务存活期间保持不变
	Handle() *Handle

	Initialize()
	Execute()
	End(interrupted bool)
	IsFinished() bool
}

// Composite 组合任务接口，调度器据此标记被组合的子任务
type Composite interface {
	Components() []Task
}

// Launcher 可调度其他任务的调度器能力（Proxy/Schedule类任务使用）
type Launcher interface {
	Schedule(tasks ...Task)
	Cancel(tasks ...Task)
	IsScheduled(t Task) bool
}

// Handle 任务身份锚点（对外导出）
// 仅由任务本身强引用，弱引用表通过它判断任务是否仍然可达
type Handle struct {
	owner Task
	kind  *Kind
}

// Task 返回拥有该锚点的任务
func (h *Handle) Task() Task {
	if h == nil {
		return nil
	}
	return h.owner
}

// Base 任务公共字段实现，供具体任务嵌入（对外导出）
type Base struct {
	handle           *Handle
	name             string
	kind             *Kind
	requirements     []Requirement
	runsWhenDisabled bool
	interruption     InterruptionBehavior
}

// Bind 绑定任务自身、类型和名称，嵌入Base的任务必须在构造时调用
func (b *Base) Bind(self Task, kind *Kind, name string) {
	if kind == nil {
		kind = KindTask
	}
	b.kind = kind
	b.name = name
	b.handle = &Handle{owner: self, kind: kind}
}

// Name 获取任务名称
func (b *Base) Name() string {
	if b.name == "" {
		return b.kind.Name()
	}
	return b.name
}

// SetName 设置任务名称
func (b *Base) SetName(name string) {
	b.name = name
}

// Kind 获取任务类型
func (b *Base) Kind() *Kind {
	return b.kind
}

// Handle 获取身份锚点
func (b *Base) Handle() *Handle {
	return b.handle
}

// Requirements 获取资源需求（返回副本）
func (b *Base) Requirements() []Requirement {
	out := make([]Requirement, len(b.requirements))
	copy(out, b.requirements)
	return out
}

// AddRequirements 添加资源需求，重复资源会被忽略
func (b *Base) AddRequirements(reqs ...Requirement) {
	for _, r := range reqs {
		if r == nil || containsRequirement(b.requirements, r) {
			continue
		}
		b.requirements = append(b.requirements, r)
	}
}

// RunsWhenDisabled 系统禁用时是否仍可运行
func (b *Base) RunsWhenDisabled() bool {
	return b.runsWhenDisabled
}

// SetRunsWhenDisabled 设置系统禁用时是否仍可运行
func (b *Base) SetRunsWhenDisabled(v bool) {
	b.runsWhenDisabled = v
}

// InterruptionBehavior 获取中断策略
func (b *Base) InterruptionBehavior() InterruptionBehavior {
	return b.interruption
}

// SetInterruptionBehavior 设置中断策略
func (b *Base) SetInterruptionBehavior(v InterruptionBehavior) {
	b.interruption = v
}

// Initialize 默认空实现
func (b *Base) Initialize() {}

// Execute 默认空实现
func (b *Base) Execute() {}

// End 默认空实现
func (b *Base) End(interrupted bool) {}

// IsFinished 默认永不结束
func (b *Base) IsFinished() bool {
	return false
}

// RequirementNames 返回排序后的资源名称列表
func RequirementNames(t Task) []string {
	reqs := t.Requirements()
	names := make([]string, 0, len(reqs))
	for _, r := range reqs {
		names = append(names, r.RequirementName())
	}
	sort.Strings(names)
	return names
}

// Same 判断两个任务是否为同一个实例（按身份而非相等性）
func Same(a, b Task) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Handle() == b.Handle()
}

func containsRequirement(list []Requirement, r Requirement) bool {
	for _, existing := range list {
		if existing == r {
			return true
		}
	}
	return false
}

// composeFrom 组合任务从子任务继承资源需求、禁用运行标志和中断策略
func (b *Base) composeFrom(children ...Task) {
	runsWhenDisabled := true
	interruption := CancelIncoming
	for _, child := range children {
		if child == nil {
			continue
		}
		b.AddRequirements(child.Requirements()...)
		runsWhenDisabled = runsWhenDisabled && child.RunsWhenDisabled()
		if child.InterruptionBehavior() == CancelSelf {
			interruption = CancelSelf
		}
	}
	b.runsWhenDisabled = runsWhenDisabled
	b.interruption = interruption
}
