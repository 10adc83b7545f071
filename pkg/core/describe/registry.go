// Package describe 将任务分解为统一的描述符树
package describe

import (
	"sort"
	"sync"

	"github.com/LENAX/task-visualizer/pkg/core/task"
)

// Describer 描述器函数（对外导出）
// 只允许补充parameters和覆盖subCommands，基础字段由Builder统一填写
type Describer func(p *Pass, d *Descriptor, t task.Task, running bool) error

// NamedDescriber 带标识的描述器，标识写入describerKind
type NamedDescriber struct {
	Name string
	Fn   Describer
}

// Describable 自描述任务，优先于注册表查找
type Describable interface {
	DescribeSelf(p *Pass, d *Descriptor, running bool) error
}

// Registry 描述器注册表（对外导出）
// 注册与查找可以与渲染并发进行
type Registry struct {
	mu      sync.RWMutex
	entries map[*task.Kind]NamedDescriber
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{entries: make(map[*task.Kind]NamedDescriber)}
}

// Register 为任务类型注册描述器，同一类型后注册的覆盖先注册的
func (r *Registry) Register(kind *task.Kind, fn Describer) {
	r.RegisterNamed(kind, kind.Name()+"Describer", fn)
}

// RegisterNamed 使用指定标识注册描述器
func (r *Registry) RegisterNamed(kind *task.Kind, name string, fn Describer) {
	if kind == nil || fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[kind] = NamedDescriber{Name: name, Fn: fn}
}

// Unregister 移除类型的描述器
func (r *Registry) Unregister(kind *task.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, kind)
}

// Resolve 沿类型继承链（从最具体到最一般，不含KindTask）查找第一个已注册的描述器
func (r *Registry) Resolve(kind *task.Kind) (NamedDescriber, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, k := range kind.Ancestry() {
		if nd, ok := r.entries[k]; ok {
			return nd, true
		}
	}
	return NamedDescriber{}, false
}

// RegisteredKind 注册表条目的只读视图
type RegisteredKind struct {
	Kind      string `json:"kind"`
	Parent    string `json:"parent,omitempty"`
	Describer string `json:"describer"`
}

// Kinds 已注册的类型，按名称排序
func (r *Registry) Kinds() []RegisteredKind {
	r.mu.RLock()
	out := make([]RegisteredKind, 0, len(r.entries))
	for k, nd := range r.entries {
		rk := RegisteredKind{Kind: k.Name(), Describer: nd.Name}
		if p := k.Parent(); p != nil && p != task.KindTask {
			rk.Parent = p.Name()
		}
		out = append(out, rk)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// Len 已注册的描述器数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
