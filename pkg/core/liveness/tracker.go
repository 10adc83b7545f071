// Package liveness 跟踪调度器中正在运行以及出现过的任务
package liveness

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"weak"

	"github.com/LENAX/task-visualizer/pkg/core/task"
)

// Mode 快照包含的任务范围
type Mode int

const (
	// ModeRunning 仅正在运行的任务
	ModeRunning Mode = iota
	// ModeAll 所有出现过且仍可达的任务
	ModeAll
)

func (m Mode) String() string {
	if m == ModeAll {
		return "all"
	}
	return "running"
}

// ParseMode 解析配置中的模式字符串
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "running":
		return ModeRunning, nil
	case "all":
		return ModeAll, nil
	default:
		return ModeRunning, fmt.Errorf("未知的跟踪模式: %s", s)
	}
}

// EventSource 调度器生命周期事件订阅接口
type EventSource interface {
	OnInitialize(fn func(task.Task))
	OnFinish(fn func(task.Task))
	OnInterrupt(fn func(task.Task))
}

type runningEntry struct {
	task task.Task
	seq  uint64
}

// Tracker 任务存活跟踪器（对外导出）
// running集合持有强引用，all集合只持有弱引用
type Tracker struct {
	mu      sync.RWMutex
	seq     uint64
	running map[*task.Handle]runningEntry
	all     map[weak.Pointer[task.Handle]]uint64
}

// NewTracker 创建跟踪器
func NewTracker() *Tracker {
	return &Tracker{
		running: make(map[*task.Handle]runningEntry),
		all:     make(map[weak.Pointer[task.Handle]]uint64),
	}
}

// Subscribe 订阅调度器的三个生命周期事件
func (tr *Tracker) Subscribe(src EventSource) {
	src.OnInitialize(tr.TaskInitialized)
	src.OnFinish(tr.TaskFinished)
	src.OnInterrupt(tr.TaskInterrupted)
}

// TaskInitialized 任务启动：加入running和all
func (tr *Tracker) TaskInitialized(t task.Task) {
	h := t.Handle()
	if h == nil {
		return
	}
	wp := weak.Make(h)

	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.seq++
	if _, ok := tr.running[h]; !ok {
		tr.running[h] = runningEntry{task: t, seq: tr.seq}
	}
	if _, ok := tr.all[wp]; !ok {
		tr.all[wp] = tr.seq
		runtime.AddCleanup(h, tr.forget, wp)
	}
}

// TaskFinished 任务正常结束：移出running
func (tr *Tracker) TaskFinished(t task.Task) { tr.remove(t) }

// TaskInterrupted 任务被中断：移出running
func (tr *Tracker) TaskInterrupted(t task.Task) { tr.remove(t) }

func (tr *Tracker) remove(t task.Task) {
	h := t.Handle()
	if h == nil {
		return
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	delete(tr.running, h)
}

func (tr *Tracker) forget(wp weak.Pointer[task.Handle]) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	delete(tr.all, wp)
}

// IsRunning 任务当前是否在running集合中
func (tr *Tracker) IsRunning(t task.Task) bool {
	if t == nil || t.Handle() == nil {
		return false
	}
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	_, ok := tr.running[t.Handle()]
	return ok
}

// Running 正在运行的任务（副本），按启动顺序排列
func (tr *Tracker) Running() []task.Task {
	tr.mu.RLock()
	entries := make([]runningEntry, 0, len(tr.running))
	for _, e := range tr.running {
		entries = append(entries, e)
	}
	tr.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]task.Task, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.task)
	}
	return out
}

// All 所有出现过且仍可达的任务（副本），按首次出现顺序排列
func (tr *Tracker) All() []task.Task {
	tr.mu.RLock()
	entries := make([]runningEntry, 0, len(tr.all))
	for wp, seq := range tr.all {
		if h := wp.Value(); h != nil {
			entries = append(entries, runningEntry{task: h.Task(), seq: seq})
		}
	}
	tr.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]task.Task, 0, len(entries))
	for _, e := range entries {
		if e.task != nil {
			out = append(out, e.task)
		}
	}
	return out
}

// Tasks 按模式返回任务列表
func (tr *Tracker) Tasks(mode Mode) []task.Task {
	if mode == ModeAll {
		return tr.All()
	}
	return tr.Running()
}

// Stats 跟踪统计
type Stats struct {
	Running int `json:"running"`
	All     int `json:"all"`
}

// Stats 获取集合大小，all可能包含尚未清理的不可达条目
func (tr *Tracker) Stats() Stats {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return Stats{Running: len(tr.running), All: len(tr.all)}
}
