package describe

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/LENAX/task-visualizer/pkg/core/task"
)

// Descriptor 某一时刻单个任务的可序列化视图（对外导出）
type Descriptor struct {
	ID                   int64                     `json:"id"`
	Name                 string                    `json:"name"`
	Kind                 string                    `json:"kind"`
	DescriberKind        string                    `json:"describerKind"`
	IsRunning            bool                      `json:"isRunning"`
	RunsWhenDisabled     bool                      `json:"runsWhenDisabled"`
	IsComposed           bool                      `json:"isComposed"`
	InterruptionBehavior task.InterruptionBehavior `json:"interruptionBehavior"`
	Requirements         []string                  `json:"requirements"`
	Parameters           map[string]any            `json:"parameters"`
	SubCommands          []*Descriptor             `json:"subCommands"`
}

// reset 清空描述符，缓存复用时调用
func (d *Descriptor) reset() {
	*d = Descriptor{
		Requirements: d.Requirements[:0],
		Parameters:   d.Parameters,
		SubCommands:  d.SubCommands[:0],
	}
	if d.Parameters == nil {
		d.Parameters = make(map[string]any)
	}
	clear(d.Parameters)
}

// SetBool 设置布尔参数
func (d *Descriptor) SetBool(key string, v bool) { d.Parameters[key] = v }

// SetFloat 设置浮点参数
func (d *Descriptor) SetFloat(key string, v float64) { d.Parameters[key] = v }

// SetSeconds 以秒为单位设置时长参数
func (d *Descriptor) SetSeconds(key string, v time.Duration) { d.Parameters[key] = v.Seconds() }

// SetString 设置字符串参数
func (d *Descriptor) SetString(key string, v string) { d.Parameters[key] = v }

// SetStrings 设置字符串数组参数，nil视为空数组
func (d *Descriptor) SetStrings(key string, v []string) {
	if v == nil {
		v = []string{}
	}
	d.Parameters[key] = v
}

// Set 设置任意参数，值类型在序列化时校验
func (d *Descriptor) Set(key string, v any) { d.Parameters[key] = v }

// SetSubCommands 覆盖子描述符列表
func (d *Descriptor) SetSubCommands(subs ...*Descriptor) {
	d.SubCommands = append(d.SubCommands[:0], subs...)
}

// Walk 深度优先遍历描述符树
func (d *Descriptor) Walk(fn func(d *Descriptor, depth int)) {
	d.walk(fn, 0)
}

func (d *Descriptor) walk(fn func(d *Descriptor, depth int), depth int) {
	fn(d, depth)
	for _, sub := range d.SubCommands {
		if sub != nil {
			sub.walk(fn, depth+1)
		}
	}
}

// Count 树中描述符的总数
func (d *Descriptor) Count() int {
	n := 0
	d.Walk(func(*Descriptor, int) { n++ })
	return n
}

// Validate 检查参数值是否都属于可序列化的类型（bool、float64、string、[]string）
func (d *Descriptor) Validate() error {
	return d.validate(d.Name)
}

func (d *Descriptor) validate(path string) error {
	for key, v := range d.Parameters {
		switch v.(type) {
		case bool, float64, string, []string:
		default:
			return &SerializationError{
				Path: path + ".parameters." + key,
				Err:  fmt.Errorf("不支持的参数类型 %T", v),
			}
		}
	}
	for i, sub := range d.SubCommands {
		if sub == nil {
			return &SerializationError{
				Path: fmt.Sprintf("%s.subCommands[%d]", path, i),
				Err:  fmt.Errorf("子描述符为nil"),
			}
		}
		if err := sub.validate(path + "/" + sub.Name); err != nil {
			return err
		}
	}
	return nil
}

// descriptorJSON 避免MarshalJSON递归
type descriptorJSON Descriptor

// MarshalJSON 保证requirements、parameters、subCommands总是编码为数组或对象而不是null
func (d *Descriptor) MarshalJSON() ([]byte, error) {
	out := descriptorJSON(*d)
	if out.Requirements == nil {
		out.Requirements = []string{}
	}
	if out.Parameters == nil {
		out.Parameters = map[string]any{}
	}
	if out.SubCommands == nil {
		out.SubCommands = []*Descriptor{}
	}
	return json.Marshal(out)
}

// ToJSON 序列化单个描述符树
func (d *Descriptor) ToJSON() (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(d)
	if err != nil {
		return "", &SerializationError{Path: d.Name, Err: err}
	}
	return string(data), nil
}

// MarshalForest 将多棵描述符树序列化为JSON数组
// 任意一个值无法表示时整体失败，不会产生部分结果
func MarshalForest(forest []*Descriptor) (string, error) {
	if forest == nil {
		forest = []*Descriptor{}
	}
	for _, d := range forest {
		if d == nil {
			return "", &SerializationError{Err: fmt.Errorf("描述符为nil")}
		}
		if err := d.Validate(); err != nil {
			return "", err
		}
	}
	data, err := json.Marshal(forest)
	if err != nil {
		return "", &SerializationError{Err: err}
	}
	return string(data), nil
}

// UnmarshalForest 解析MarshalForest的输出
func UnmarshalForest(payload string) ([]*Descriptor, error) {
	var forest []*Descriptor
	if err := json.Unmarshal([]byte(payload), &forest); err != nil {
		return nil, fmt.Errorf("解析描述符失败: %w", err)
	}
	return forest, nil
}
