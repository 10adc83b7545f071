package scheduler

import "errors"

var (
	// ErrComposed 被组合的任务不能被单独调度
	ErrComposed = errors.New("任务已被组合")
	// ErrCallbackPanic 周期回调发生panic
	ErrCallbackPanic = errors.New("周期回调panic")
)
