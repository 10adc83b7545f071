package describe

import (
	"fmt"

	"github.com/LENAX/task-visualizer/pkg/core/task"
)

// IDSource 为任务提供稳定ID
type IDSource interface {
	IDFor(t task.Task) int64
}

// CompositionQuery 查询任务是否被某个组合任务持有
type CompositionQuery interface {
	IsComposed(t task.Task) bool
}

// RunningQuery 查询任务是否正在被调度器执行
type RunningQuery interface {
	IsRunning(t task.Task) bool
}

// Cache 按任务ID缓存描述符
type Cache interface {
	Get(id int64) (*Descriptor, bool)
	Put(id int64, d *Descriptor)
}

// BuilderOption 配置选项函数类型
type BuilderOption func(*Builder)

// WithIDSource 设置ID来源
func WithIDSource(ids IDSource) BuilderOption {
	return func(b *Builder) { b.ids = ids }
}

// WithComposition 设置组合关系查询
func WithComposition(q CompositionQuery) BuilderOption {
	return func(b *Builder) { b.composition = q }
}

// WithRunning 设置运行状态查询
func WithRunning(q RunningQuery) BuilderOption {
	return func(b *Builder) { b.running = q }
}

// WithCache 启用描述符缓存
func WithCache(c Cache) BuilderOption {
	return func(b *Builder) { b.cache = c }
}

// Builder 描述符树构建器（对外导出）
type Builder struct {
	registry    *Registry
	ids         IDSource
	composition CompositionQuery
	running     RunningQuery
	cache       Cache
}

// NewBuilder 创建构建器，registry为nil时使用空注册表
func NewBuilder(registry *Registry, opts ...BuilderOption) *Builder {
	if registry == nil {
		registry = NewRegistry()
	}
	b := &Builder{registry: registry}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Registry 获取注册表
func (b *Builder) Registry() *Registry { return b.registry }

// Describe 描述一个任务及其全部子任务
// running 表示该任务在当前渲染路径上是否正在执行
func (b *Builder) Describe(t task.Task, running bool) (*Descriptor, error) {
	return b.NewPass().Describe(t, running)
}

// NewPass 开始一次渲染（对外导出）
// 同一次渲染的多个顶层任务应共用一个Pass，缓存中的描述符在一个Pass内最多复用一次；
// 启用缓存时同一时刻只能有一个Pass在进行
func (b *Builder) NewPass() *Pass {
	return &Pass{
		builder: b,
		path:    make(map[*task.Handle]struct{}),
		used:    make(map[int64]struct{}),
	}
}

// Pass 一次描述过程，描述器通过它递归描述子任务
type Pass struct {
	builder *Builder
	path    map[*task.Handle]struct{}
	used    map[int64]struct{}
}

// IsRunning 通过调度器查询任务是否在执行，未配置时返回false
func (p *Pass) IsRunning(t task.Task) bool {
	if p.builder.running == nil || t == nil {
		return false
	}
	return p.builder.running.IsRunning(t)
}

// Describe 描述子任务
func (p *Pass) Describe(t task.Task, running bool) (*Descriptor, error) {
	if t == nil {
		return nil, &DescriptionError{Err: ErrNilTask}
	}

	if h := t.Handle(); h != nil {
		if _, ok := p.path[h]; ok {
			return nil, &DescriptionError{TaskName: t.Name(), Kind: t.Kind().Name(), Err: ErrCycle}
		}
		p.path[h] = struct{}{}
		defer delete(p.path, h)
	}

	d := p.acquire(t)
	d.Name = t.Name()
	d.Kind = t.Kind().Name()
	d.IsRunning = running
	d.RunsWhenDisabled = t.RunsWhenDisabled()
	d.InterruptionBehavior = t.InterruptionBehavior()
	d.Requirements = append(d.Requirements, task.RequirementNames(t)...)
	if p.builder.composition != nil {
		d.IsComposed = p.builder.composition.IsComposed(t)
	}

	var (
		name string
		fn   Describer
	)
	if self, ok := t.(Describable); ok {
		name = d.Kind
		fn = func(p *Pass, d *Descriptor, _ task.Task, running bool) error {
			return self.DescribeSelf(p, d, running)
		}
	} else if nd, ok := p.builder.registry.Resolve(t.Kind()); ok {
		name, fn = nd.Name, nd.Fn
	}
	if fn == nil {
		return d, nil
	}

	d.DescriberKind = name
	if err := invoke(fn, p, d, t, running); err != nil {
		return nil, &DescriptionError{TaskName: d.Name, Kind: d.Kind, Describer: name, Err: err}
	}
	return d, nil
}

// acquire 获取一个已重置的描述符，缓存命中且本次未使用时复用
func (p *Pass) acquire(t task.Task) *Descriptor {
	var id int64
	if p.builder.ids != nil {
		id = p.builder.ids.IDFor(t)
	}

	if c := p.builder.cache; c != nil && id != 0 {
		if _, dup := p.used[id]; !dup {
			p.used[id] = struct{}{}
			if d, ok := c.Get(id); ok {
				d.reset()
				d.ID = id
				return d
			}
			d := newDescriptor(id)
			c.Put(id, d)
			return d
		}
	}
	return newDescriptor(id)
}

func newDescriptor(id int64) *Descriptor {
	return &Descriptor{
		ID:           id,
		Requirements: []string{},
		Parameters:   make(map[string]any),
		SubCommands:  []*Descriptor{},
	}
}

// invoke 调用描述器并将panic转换为错误
func invoke(fn Describer, p *Pass, d *Descriptor, t task.Task, running bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("描述器panic: %v", r)
		}
	}()
	return fn(p, d, t, running)
}
