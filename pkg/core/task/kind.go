// Package task 定义被可视化的任务抽象、任务类型（Kind）以及内置组合任务
package task

// Kind 任务类型（对外导出）
// 每个Kind可以有一个父类型，用于描述器的继承链查找
type Kind struct {
	name   string
	parent *Kind
}

// KindTask 所有任务的通用父类型，描述器查找时不会匹配到它
var KindTask = &Kind{name: "Task"}

// 内置任务类型
var (
	KindInstant         = NewKind("InstantTask", nil)
	KindRun             = NewKind("RunTask", nil)
	KindConditional     = NewKind("ConditionalTask", nil)
	KindNotifier        = NewKind("NotifierTask", nil)
	KindParallelGroup   = NewKind("ParallelGroup", nil)
	KindDeadlineGroup   = NewKind("ParallelDeadlineGroup", nil)
	KindRaceGroup       = NewKind("ParallelRaceGroup", nil)
	KindProxy           = NewKind("ProxyTask", nil)
	KindProxySchedule   = NewKind("ProxyScheduleTask", nil)
	KindRepeat          = NewKind("RepeatTask", nil)
	KindSchedule        = NewKind("ScheduleTask", nil)
	KindSelect          = NewKind("SelectTask", nil)
	KindSequentialGroup = NewKind("SequentialGroup", nil)
	KindWait            = NewKind("WaitTask", nil)
	KindWaitUntil       = NewKind("WaitUntilTask", nil)
	KindWrapper         = NewKind("WrapperTask", nil)
)

// NewKind 声明一个新的任务类型（对外导出）
// parent为nil时父类型为KindTask
func NewKind(name string, parent *Kind) *Kind {
	if parent == nil {
		parent = KindTask
	}
	return &Kind{name: name, parent: parent}
}

// Name 获取类型名称
func (k *Kind) Name() string {
	if k == nil {
		return ""
	}
	return k.name
}

// Parent 获取父类型，KindTask的父类型为nil
func (k *Kind) Parent() *Kind {
	if k == nil {
		return nil
	}
	return k.parent
}

// String 实现fmt.Stringer
func (k *Kind) String() string {
	return k.Name()
}

// Ancestry 返回从自身到最远祖先的类型链（不包含KindTask）
func (k *Kind) Ancestry() []*Kind {
	chain := make([]*Kind, 0, 4)
	for cur := k; cur != nil && cur != KindTask; cur = cur.parent {
		chain = append(chain, cur)
	}
	return chain
}

// IsA 判断k是否为other或other的子类型
func (k *Kind) IsA(other *Kind) bool {
	for cur := k; cur != nil; cur = cur.parent {
		if cur == other {
			return true
		}
	}
	return false
}
