package publisher

import (
	"sync/atomic"
)

// QueueStats Sink队列统计
type QueueStats struct {
	Accepted int64   `json:"accepted"`
	Taken    int64   `json:"taken"`
	Dropped  int64   `json:"dropped"`
	Usage    float64 `json:"usage"`
}

// SinkQueue 单个Sink的待投递快照队列（对外导出）
// Offer 从不阻塞，队列满时丢弃最新的快照并计数
type SinkQueue struct {
	payloads  chan string
	threshold float64
	congested atomic.Bool

	accepted atomic.Int64
	taken    atomic.Int64
	dropped  atomic.Int64

	// onCongestion 拥塞状态变化时调用，congested=false 表示已恢复
	onCongestion func(congested bool, usage float64)
}

// NewSinkQueue 创建队列
// 使用率达到threshold进入拥塞，降到threshold一半以下恢复
func NewSinkQueue(capacity int, threshold float64, onCongestion func(congested bool, usage float64)) *SinkQueue {
	if capacity <= 0 {
		capacity = 16
	}
	if threshold <= 0 || threshold > 1 {
		threshold = 0.8
	}
	return &SinkQueue{
		payloads:     make(chan string, capacity),
		threshold:    threshold,
		onCongestion: onCongestion,
	}
}

// Offer 入队，返回false表示队列已满、快照被丢弃
func (q *SinkQueue) Offer(payload string) bool {
	select {
	case q.payloads <- payload:
		q.accepted.Add(1)
		q.observe()
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Take 阻塞取出下一个快照，done关闭时返回false
func (q *SinkQueue) Take(done <-chan struct{}) (string, bool) {
	select {
	case payload := <-q.payloads:
		q.taken.Add(1)
		q.observe()
		return payload, true
	case <-done:
		return "", false
	}
}

// Len 队列中等待投递的快照数
func (q *SinkQueue) Len() int { return len(q.payloads) }

// Cap 队列容量
func (q *SinkQueue) Cap() int { return cap(q.payloads) }

// Usage 使用率
func (q *SinkQueue) Usage() float64 {
	return float64(len(q.payloads)) / float64(cap(q.payloads))
}

// Congested 是否处于拥塞状态
func (q *SinkQueue) Congested() bool { return q.congested.Load() }

// Stats 队列统计
func (q *SinkQueue) Stats() QueueStats {
	return QueueStats{
		Accepted: q.accepted.Load(),
		Taken:    q.taken.Load(),
		Dropped:  q.dropped.Load(),
		Usage:    q.Usage(),
	}
}

// observe 根据当前使用率切换拥塞状态
func (q *SinkQueue) observe() {
	usage := q.Usage()
	switch {
	case usage >= q.threshold:
		if q.congested.CompareAndSwap(false, true) {
			q.notify(true, usage)
		}
	case usage < q.threshold/2:
		if q.congested.CompareAndSwap(true, false) {
			q.notify(false, usage)
		}
	}
}

func (q *SinkQueue) notify(congested bool, usage float64) {
	if q.onCongestion != nil {
		go q.onCongestion(congested, usage)
	}
}
