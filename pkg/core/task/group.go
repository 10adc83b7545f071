package task

import "sync"

// Sequential 顺序组：依次执行每个步骤
type Sequential struct {
	Base
	mu      sync.Mutex
	steps   []Task
	current int
}

// NewSequential 创建顺序组
func NewSequential(name string, steps ...Task) *Sequential {
	t := &Sequential{steps: steps, current: -1}
	t.Bind(t, KindSequentialGroup, name)
	t.composeFrom(steps...)
	return t
}

// Components 实现Composite接口
func (t *Sequential) Components() []Task { return t.Steps() }

// Steps 获取所有步骤（副本）
func (t *Sequential) Steps() []Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Task, len(t.steps))
	copy(out, t.steps)
	return out
}

// CurrentIndex 当前执行到的步骤下标，未启动时为-1
func (t *Sequential) CurrentIndex() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Initialize 从第一个步骤开始
func (t *Sequential) Initialize() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = 0
	if len(t.steps) > 0 {
		t.steps[0].Initialize()
	}
}

// Execute 执行当前步骤，完成后推进游标
func (t *Sequential) Execute() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current < 0 || t.current >= len(t.steps) {
		return
	}
	step := t.steps[t.current]
	step.Execute()
	if step.IsFinished() {
		step.End(false)
		t.current++
		if t.current < len(t.steps) {
			t.steps[t.current].Initialize()
		}
	}
}

// End 中断时结束当前步骤
func (t *Sequential) End(interrupted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if interrupted && t.current >= 0 && t.current < len(t.steps) {
		t.steps[t.current].End(true)
	}
	t.current = -1
}

// IsFinished 所有步骤完成即结束
func (t *Sequential) IsFinished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current == len(t.steps)
}

// parallelState 并行组共用的子任务状态
type parallelState struct {
	mu       sync.Mutex
	children []Task
	running  []bool
}

func (p *parallelState) initializeAll() {
	for i, child := range p.children {
		child.Initialize()
		p.running[i] = true
	}
}

// executeAll 执行所有运行中的子任务，返回本轮结束的子任务下标
func (p *parallelState) executeAll() []int {
	var finished []int
	for i, child := range p.children {
		if !p.running[i] {
			continue
		}
		child.Execute()
		if child.IsFinished() {
			child.End(false)
			p.running[i] = false
			finished = append(finished, i)
		}
	}
	return finished
}

func (p *parallelState) interruptRunning() {
	for i, child := range p.children {
		if p.running[i] {
			child.End(true)
			p.running[i] = false
		}
	}
}

func (p *parallelState) anyRunning() bool {
	for _, r := range p.running {
		if r {
			return true
		}
	}
	return false
}

func (p *parallelState) snapshot() []ChildState {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ChildState, len(p.children))
	for i, child := range p.children {
		out[i] = ChildState{Task: child, Running: p.running[i]}
	}
	return out
}

func (p *parallelState) list() []Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Task, len(p.children))
	copy(out, p.children)
	return out
}

// Parallel 并行组：全部子任务完成时结束
type Parallel struct {
	Base
	parallelState
}

// NewParallel 创建并行组
func NewParallel(name string, children ...Task) *Parallel {
	t := &Parallel{parallelState: parallelState{children: children, running: make([]bool, len(children))}}
	t.Bind(t, KindParallelGroup, name)
	t.composeFrom(children...)
	return t
}

// Components 实现Composite接口
func (t *Parallel) Components() []Task { return t.list() }

// ChildStates 子任务及运行标志
func (t *Parallel) ChildStates() []ChildState { return t.snapshot() }

// Initialize 启动全部子任务
func (t *Parallel) Initialize() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.initializeAll()
}

// Execute 执行运行中的子任务
func (t *Parallel) Execute() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.executeAll()
}

// End 中断时结束仍在运行的子任务
func (t *Parallel) End(interrupted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if interrupted {
		t.interruptRunning()
	}
}

// IsFinished 没有运行中的子任务即结束
func (t *Parallel) IsFinished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.anyRunning()
}

// Deadline 截止并行组：截止任务完成时结束，其余任务被中断
type Deadline struct {
	Base
	parallelState
	deadline Task
	finished bool
}

// NewDeadline 创建截止并行组，deadline会作为第一个子任务加入
func NewDeadline(name string, deadline Task, others ...Task) *Deadline {
	children := append([]Task{deadline}, others...)
	t := &Deadline{
		parallelState: parallelState{children: children, running: make([]bool, len(children))},
		deadline:      deadline,
	}
	t.Bind(t, KindDeadlineGroup, name)
	t.composeFrom(children...)
	return t
}

// SetDeadline 更换截止任务，新截止任务不在组内时会被加入
func (t *Deadline) SetDeadline(deadline Task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	found := false
	for _, child := range t.children {
		if Same(child, deadline) {
			found = true
			break
		}
	}
	if !found {
		t.children = append(t.children, deadline)
		t.running = append(t.running, false)
		t.composeFrom(t.children...)
	}
	t.deadline = deadline
}

// Components 实现Composite接口
func (t *Deadline) Components() []Task { return t.list() }

// Deadline 当前截止任务
func (t *Deadline) Deadline() Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deadline
}

// ChildStates 子任务及运行标志（包含截止任务）
func (t *Deadline) ChildStates() []ChildState { return t.snapshot() }

// Initialize 启动全部子任务
func (t *Deadline) Initialize() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finished = false
	t.initializeAll()
}

// Execute 执行子任务，截止任务完成时标记结束
func (t *Deadline) Execute() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, idx := range t.executeAll() {
		if Same(t.children[idx], t.deadline) {
			t.finished = true
		}
	}
}

// End 结束仍在运行的子任务
func (t *Deadline) End(interrupted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interruptRunning()
}

// IsFinished 截止任务完成即结束
func (t *Deadline) IsFinished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished
}

// Race 竞速并行组：任一子任务完成即结束
type Race struct {
	Base
	parallelState
	finished bool
}

// NewRace 创建竞速并行组
func NewRace(name string, children ...Task) *Race {
	t := &Race{parallelState: parallelState{children: children, running: make([]bool, len(children))}}
	t.Bind(t, KindRaceGroup, name)
	t.composeFrom(children...)
	return t
}

// Components 实现Composite接口
func (t *Race) Components() []Task { return t.list() }

// Children 所有子任务
func (t *Race) Children() []Task { return t.list() }

// Initialize 启动全部子任务
func (t *Race) Initialize() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finished = false
	t.initializeAll()
}

// Execute 执行子任务，任一完成即标记结束
func (t *Race) Execute() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.executeAll()) > 0 {
		t.finished = true
	}
}

// End 结束仍在运行的子任务
func (t *Race) End(interrupted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interruptRunning()
}

// IsFinished 任一子任务完成即结束
func (t *Race) IsFinished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished
}
