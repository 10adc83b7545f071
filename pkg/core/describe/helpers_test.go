package describe

import (
	"time"

	"github.com/LENAX/task-visualizer/pkg/core/task"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// sequenceAt 游标固定的顺序组
type sequenceAt struct {
	task.Base
	steps  []task.Task
	cursor int
}

func newSequenceAt(cursor int, steps ...task.Task) *sequenceAt {
	s := &sequenceAt{steps: steps, cursor: cursor}
	s.Bind(s, task.KindSequentialGroup, "sequence")
	return s
}

func (s *sequenceAt) Steps() []task.Task { return s.steps }
func (s *sequenceAt) CurrentIndex() int  { return s.cursor }

// selfWrapper 包装自身，形成环
type selfWrapper struct {
	task.Base
}

func newSelfWrapper() *selfWrapper {
	w := &selfWrapper{}
	w.Bind(w, task.KindWrapper, "loop")
	return w
}

func (w *selfWrapper) Wrapped() task.Task { return w }

// selfDescribing 自描述任务
type selfDescribing struct {
	task.Base
	calls int
}

func newSelfDescribing(kind *task.Kind) *selfDescribing {
	s := &selfDescribing{}
	s.Bind(s, kind, "self")
	return s
}

func (s *selfDescribing) DescribeSelf(_ *Pass, d *Descriptor, running bool) error {
	s.calls++
	d.SetBool("described", running)
	return nil
}

type runningSet map[task.Task]bool

func (r runningSet) IsRunning(t task.Task) bool { return r[t] }

type composedSet map[task.Task]bool

func (c composedSet) IsComposed(t task.Task) bool { return c[t] }

// counterIDs 按首次出现顺序分配ID
type counterIDs struct {
	next int64
	ids  map[*task.Handle]int64
}

func newCounterIDs() *counterIDs {
	return &counterIDs{ids: make(map[*task.Handle]int64)}
}

func (c *counterIDs) IDFor(t task.Task) int64 {
	if id, ok := c.ids[t.Handle()]; ok {
		return id
	}
	c.next++
	c.ids[t.Handle()] = c.next
	return c.next
}

type mapCache map[int64]*Descriptor

func (m mapCache) Get(id int64) (*Descriptor, bool) {
	d, ok := m[id]
	return d, ok
}

func (m mapCache) Put(id int64, d *Descriptor) { m[id] = d }

func newBuiltinBuilder(opts ...BuilderOption) *Builder {
	r := NewRegistry()
	RegisterBuiltins(r)
	return NewBuilder(r, opts...)
}

func leaf(name string) task.Task {
	return task.NewInstant(name, nil)
}

func names(ds []*Descriptor) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Name)
	}
	return out
}

func runningFlags(ds []*Descriptor) []bool {
	out := make([]bool, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.IsRunning)
	}
	return out
}
