// Package identity 为存活中的任务分配稳定且唯一的数字ID
package identity

import (
	"runtime"
	"sync"
	"unsafe"
	"weak"

	"github.com/LENAX/task-visualizer/pkg/core/task"
)

// CandidateFunc 根据任务身份锚点计算初始候选ID
type CandidateFunc func(h *task.Handle) int64

// Option 配置选项函数类型
type Option func(*Assigner)

// WithCandidate 替换候选ID计算方式
func WithCandidate(fn CandidateFunc) Option {
	return func(a *Assigner) {
		if fn != nil {
			a.candidate = fn
		}
	}
}

// Assigner 任务ID分配器（对外导出）
// 只持有任务身份锚点的弱引用，锚点被回收后对应ID自动释放
type Assigner struct {
	mu        sync.Mutex
	ids       map[weak.Pointer[task.Handle]]int64
	owners    map[int64]weak.Pointer[task.Handle]
	onForget  []func(id int64)
	candidate CandidateFunc
}

// NewAssigner 创建ID分配器（对外导出）
func NewAssigner(opts ...Option) *Assigner {
	a := &Assigner{
		ids:       make(map[weak.Pointer[task.Handle]]int64),
		owners:    make(map[int64]weak.Pointer[task.Handle]),
		candidate: addressCandidate,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// addressCandidate 由锚点地址派生候选ID（Go的GC不移动堆对象，地址在对象存活期内稳定）
func addressCandidate(h *task.Handle) int64 {
	addr := uint64(uintptr(unsafe.Pointer(h)))
	return int64(uint32((addr >> 4) * 0x9E3779B1))
}

// IDFor 获取任务ID，首次调用时分配（对外导出）
// 同一存活任务多次调用返回相同的值，任意两个同时存活的任务ID不同
func (a *Assigner) IDFor(t task.Task) int64 {
	h := t.Handle()
	if h == nil {
		return 0
	}
	wp := weak.Make(h)

	a.mu.Lock()
	defer a.mu.Unlock()

	if id, ok := a.ids[wp]; ok {
		return id
	}

	id := a.candidate(h)
	for {
		owner, taken := a.owners[id]
		if !taken || owner.Value() == nil {
			break
		}
		id++
	}

	a.ids[wp] = id
	a.owners[id] = wp
	runtime.AddCleanup(h, a.forget, wp)
	return id
}

// Lookup 查询已分配的ID，不会触发分配
func (a *Assigner) Lookup(t task.Task) (int64, bool) {
	h := t.Handle()
	if h == nil {
		return 0, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	id, ok := a.ids[weak.Make(h)]
	return id, ok
}

// Len 当前记录的ID数量
func (a *Assigner) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.ids)
}

// OnForget 注册ID释放回调（例如清理描述符缓存）
func (a *Assigner) OnForget(fn func(id int64)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onForget = append(a.onForget, fn)
}

// forget 锚点被回收后由运行时调用
func (a *Assigner) forget(wp weak.Pointer[task.Handle]) {
	a.mu.Lock()
	id, ok := a.ids[wp]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.ids, wp)
	if a.owners[id] == wp {
		delete(a.owners, id)
	}
	hooks := make([]func(int64), len(a.onForget))
	copy(hooks, a.onForget)
	a.mu.Unlock()

	for _, hook := range hooks {
		hook(id)
	}
}
