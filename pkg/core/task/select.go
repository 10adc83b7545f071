package task

import "sync"

// Select 选择任务：初始化时按选择器的值（或供给函数）决定执行哪个候选任务
type Select struct {
	Base
	entries  []SelectEntry
	selector func() any
	supplier func() Task

	mu       sync.Mutex
	selected Task
}

// NewSelect 创建按键选择的任务，entries的顺序即候选表顺序
func NewSelect(selector func() any, entries ...SelectEntry) *Select {
	t := &Select{entries: entries, selector: selector}
	t.Bind(t, KindSelect, "")
	children := make([]Task, 0, len(entries))
	for _, e := range entries {
		children = append(children, e.Task)
	}
	t.composeFrom(children...)
	return t
}

// NewSelectSupplier 创建延迟解析候选任务的选择任务
func NewSelectSupplier(supplier func() Task) *Select {
	t := &Select{supplier: supplier}
	t.Bind(t, KindSelect, "")
	return t
}

// Components 实现Composite接口
func (t *Select) Components() []Task {
	out := make([]Task, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.Task)
	}
	return out
}

// SelectorValue 选择器当前的值，供给模式下为nil
func (t *Select) SelectorValue() any {
	if t.selector == nil {
		return nil
	}
	return t.selector()
}

// HasSupplier 是否为延迟解析模式
func (t *Select) HasSupplier() bool { return t.supplier != nil }

// Entries 候选表（副本），供给模式下为空
func (t *Select) Entries() []SelectEntry {
	out := make([]SelectEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Selected 最近一次初始化选中的任务
func (t *Select) Selected() Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selected
}

// Initialize 选择并初始化候选任务
func (t *Select) Initialize() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.supplier != nil {
		t.selected = t.supplier()
	} else {
		t.selected = nil
		key := t.SelectorValue()
		for _, e := range t.entries {
			if KeysEqual(e.Key, key) {
				t.selected = e.Task
				break
			}
		}
	}
	if t.selected == nil {
		t.selected = NewInstant("SelectTask没有匹配的候选任务", nil)
	}
	t.selected.Initialize()
}

// Execute 执行选中任务
func (t *Select) Execute() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.selected != nil {
		t.selected.Execute()
	}
}

// End 结束选中任务
func (t *Select) End(interrupted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.selected != nil {
		t.selected.End(interrupted)
	}
}

// IsFinished 选中任务结束即结束
func (t *Select) IsFinished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selected != nil && t.selected.IsFinished()
}

// KeysEqual 比较两个选择键，不可比较的类型视为不相等
func KeysEqual(a, b any) (equal bool) {
	defer func() {
		if recover() != nil {
			equal = false
		}
	}()
	return a == b
}
