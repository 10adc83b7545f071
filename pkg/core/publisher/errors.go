package publisher

import "fmt"

// SinkError 某个Sink拒绝或在接收快照时panic（对外导出）
// 只影响该Sink，其他Sink照常投递
type SinkError struct {
	SinkID   string
	SinkName string
	Err      error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("投递快照失败: sink=%s(%s): %v", e.SinkName, e.SinkID, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }
