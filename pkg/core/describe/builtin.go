package describe

import (
	"fmt"

	"github.com/LENAX/task-visualizer/pkg/core/task"
)

// NullSelectorValue 选择器值为nil时的占位字符串
const NullSelectorValue = "<null>"

// RegisterBuiltins 注册内置任务类型的描述器
func RegisterBuiltins(r *Registry) {
	r.Register(task.KindConditional, describeConditional)
	r.Register(task.KindNotifier, describeNotifier)
	r.Register(task.KindParallelGroup, describeParallel)
	r.Register(task.KindDeadlineGroup, describeDeadline)
	r.Register(task.KindRaceGroup, describeRace)
	r.Register(task.KindProxy, describeProxy)
	r.Register(task.KindProxySchedule, describeSchedule)
	r.Register(task.KindRepeat, describeRepeat)
	r.Register(task.KindSchedule, describeSchedule)
	r.Register(task.KindSelect, describeSelect)
	r.Register(task.KindSequentialGroup, describeSequential)
	r.Register(task.KindWait, describeWait)
	r.Register(task.KindWaitUntil, describeWaitUntil)
	r.Register(task.KindWrapper, describeWrapper)
}

func mismatch(t task.Task, capability string) error {
	return fmt.Errorf("%w: %T 未实现 %s", ErrKindMismatch, t, capability)
}

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingState, field)
}

func describeConditional(p *Pass, d *Descriptor, t task.Task, running bool) error {
	src, ok := t.(task.ConditionalSource)
	if !ok {
		return mismatch(t, "ConditionalSource")
	}
	cond := src.Condition()
	d.SetBool("condition", cond)

	onTrue, err := p.Describe(src.OnTrue(), running && cond)
	if err != nil {
		return err
	}
	onFalse, err := p.Describe(src.OnFalse(), running && !cond)
	if err != nil {
		return err
	}
	d.SetSubCommands(onTrue, onFalse)
	return nil
}

func describeNotifier(_ *Pass, d *Descriptor, t task.Task, _ bool) error {
	src, ok := t.(task.PeriodicSource)
	if !ok {
		return mismatch(t, "PeriodicSource")
	}
	d.SetSeconds("period", src.Period())
	return nil
}

func describeParallel(p *Pass, d *Descriptor, t task.Task, _ bool) error {
	src, ok := t.(task.ParallelSource)
	if !ok {
		return mismatch(t, "ParallelSource")
	}
	states := src.ChildStates()
	subs := make([]*Descriptor, 0, len(states))
	for _, cs := range states {
		sub, err := p.Describe(cs.Task, cs.Running)
		if err != nil {
			return err
		}
		subs = append(subs, sub)
	}
	d.SetSubCommands(subs...)
	return nil
}

// describeDeadline 截止任务总是排在第一位，其余子任务按身份（而非相等）排除截止任务
func describeDeadline(p *Pass, d *Descriptor, t task.Task, running bool) error {
	src, ok := t.(task.DeadlineSource)
	if !ok {
		return mismatch(t, "DeadlineSource")
	}
	deadline := src.Deadline()
	if deadline == nil {
		return missing("deadline")
	}
	states := src.ChildStates()
	subs := make([]*Descriptor, 0, len(states))

	first, err := p.Describe(deadline, running)
	if err != nil {
		return err
	}
	subs = append(subs, first)

	for _, cs := range states {
		if task.Same(cs.Task, deadline) {
			continue
		}
		sub, err := p.Describe(cs.Task, cs.Running)
		if err != nil {
			return err
		}
		subs = append(subs, sub)
	}
	d.SetSubCommands(subs...)
	return nil
}

// describeRace 竞速组不区分领先的子任务，所有子任务沿用父任务的运行标志
func describeRace(p *Pass, d *Descriptor, t task.Task, running bool) error {
	src, ok := t.(task.RaceSource)
	if !ok {
		return mismatch(t, "RaceSource")
	}
	return describeAll(p, d, src.Children(), func(task.Task) bool { return running })
}

func describeProxy(p *Pass, d *Descriptor, t task.Task, running bool) error {
	src, ok := t.(task.DelegateSource)
	if !ok {
		return mismatch(t, "DelegateSource")
	}
	if !running {
		return nil
	}
	delegate := src.Delegate()
	if delegate == nil {
		return nil
	}
	sub, err := p.Describe(delegate, running)
	if err != nil {
		return err
	}
	d.SetSubCommands(sub)
	return nil
}

// describeSchedule 被调度的目标独立运行，运行标志来自调度器
func describeSchedule(p *Pass, d *Descriptor, t task.Task, _ bool) error {
	src, ok := t.(task.ScheduleSource)
	if !ok {
		return mismatch(t, "ScheduleSource")
	}
	return describeAll(p, d, src.Targets(), p.IsRunning)
}

func describeRepeat(p *Pass, d *Descriptor, t task.Task, running bool) error {
	src, ok := t.(task.RepeatSource)
	if !ok {
		return mismatch(t, "RepeatSource")
	}
	child := src.Repeated()
	if child == nil {
		return missing("repeated")
	}
	sub, err := p.Describe(child, running)
	if err != nil {
		return err
	}
	d.SetSubCommands(sub)
	return nil
}

func describeSelect(p *Pass, d *Descriptor, t task.Task, running bool) error {
	src, ok := t.(task.SelectSource)
	if !ok {
		return mismatch(t, "SelectSource")
	}
	value := src.SelectorValue()
	d.SetString("currentSelectorValue", selectorString(value))

	if src.HasSupplier() {
		d.SetBool("hasSupplier", true)
		d.SetStrings("subCommandValues", nil)
		if !running {
			return nil
		}
		selected := src.Selected()
		if selected == nil {
			return nil
		}
		sub, err := p.Describe(selected, true)
		if err != nil {
			return err
		}
		d.SetSubCommands(sub)
		return nil
	}

	d.SetBool("hasSupplier", false)
	entries := src.Entries()
	values := make([]string, 0, len(entries)+1)
	subs := make([]*Descriptor, 0, len(entries)+1)

	selected := src.Selected()
	if running && selected != nil {
		sub, err := p.Describe(selected, true)
		if err != nil {
			return err
		}
		values = append(values, selectorString(value))
		subs = append(subs, sub)
		for _, e := range entries {
			if task.KeysEqual(e.Key, value) {
				continue
			}
			sub, err := p.Describe(e.Task, false)
			if err != nil {
				return err
			}
			values = append(values, selectorString(e.Key))
			subs = append(subs, sub)
		}
	} else {
		for _, e := range entries {
			sub, err := p.Describe(e.Task, false)
			if err != nil {
				return err
			}
			values = append(values, selectorString(e.Key))
			subs = append(subs, sub)
		}
	}

	d.SetStrings("subCommandValues", values)
	d.SetSubCommands(subs...)
	return nil
}

func selectorString(v any) string {
	if v == nil {
		return NullSelectorValue
	}
	return fmt.Sprint(v)
}

func describeSequential(p *Pass, d *Descriptor, t task.Task, running bool) error {
	src, ok := t.(task.SequenceSource)
	if !ok {
		return mismatch(t, "SequenceSource")
	}
	steps := src.Steps()
	cursor := src.CurrentIndex()
	subs := make([]*Descriptor, 0, len(steps))
	for i, step := range steps {
		sub, err := p.Describe(step, running && i == cursor)
		if err != nil {
			return err
		}
		subs = append(subs, sub)
	}
	d.SetSubCommands(subs...)
	return nil
}

func describeWait(_ *Pass, d *Descriptor, t task.Task, _ bool) error {
	src, ok := t.(task.WaitSource)
	if !ok {
		return mismatch(t, "WaitSource")
	}
	d.SetSeconds("duration", src.Duration())
	d.SetSeconds("timeElapsed", src.Elapsed())
	return nil
}

func describeWaitUntil(_ *Pass, d *Descriptor, t task.Task, _ bool) error {
	src, ok := t.(task.ConditionSource)
	if !ok {
		return mismatch(t, "ConditionSource")
	}
	d.SetBool("condition", src.Condition())
	return nil
}

func describeWrapper(p *Pass, d *Descriptor, t task.Task, running bool) error {
	src, ok := t.(task.WrapperSource)
	if !ok {
		return mismatch(t, "WrapperSource")
	}
	wrapped := src.Wrapped()
	if wrapped == nil {
		return missing("wrapped")
	}
	sub, err := p.Describe(wrapped, running)
	if err != nil {
		return err
	}
	d.SetSubCommands(sub)
	return nil
}

func describeAll(p *Pass, d *Descriptor, children []task.Task, runningOf func(task.Task) bool) error {
	subs := make([]*Descriptor, 0, len(children))
	for _, child := range children {
		sub, err := p.Describe(child, runningOf(child))
		if err != nil {
			return err
		}
		subs = append(subs, sub)
	}
	d.SetSubCommands(subs...)
	return nil
}
