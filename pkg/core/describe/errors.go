package describe

import (
	"errors"
	"fmt"
)

var (
	// ErrKindMismatch 任务未实现描述器需要的能力接口
	ErrKindMismatch = errors.New("任务类型与描述器不匹配")
	// ErrMissingState 描述器需要的内部状态不可读
	ErrMissingState = errors.New("任务内部状态缺失")
	// ErrCycle 任务组合中存在环
	ErrCycle = errors.New("任务组合存在环")
	// ErrNilTask 待描述的任务为nil
	ErrNilTask = errors.New("任务为nil")
)

// DescriptionError 描述某个任务失败（对外导出）
// 只影响该任务本身，调用方决定跳过还是中止整批
type DescriptionError struct {
	TaskName  string
	Kind      string
	Describer string
	Err       error
}

func (e *DescriptionError) Error() string {
	if e.Describer == "" {
		return fmt.Sprintf("描述任务失败: task=%s, kind=%s: %v", e.TaskName, e.Kind, e.Err)
	}
	return fmt.Sprintf("描述任务失败: task=%s, kind=%s, describer=%s: %v", e.TaskName, e.Kind, e.Describer, e.Err)
}

func (e *DescriptionError) Unwrap() error { return e.Err }

// SerializationError 描述符无法序列化为JSON（对外导出）
type SerializationError struct {
	// Path 出错位置，如 "Auto/Wait.parameters.duration"
	Path string
	Err  error
}

func (e *SerializationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("序列化描述符失败: %v", e.Err)
	}
	return fmt.Sprintf("序列化描述符失败: %s: %v", e.Path, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }
