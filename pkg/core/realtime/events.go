// Package realtime 通过消息总线与WebSocket实时分发任务快照和生命周期事件
package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType 事件类型，同时作为消息总线的topic
type EventType string

const (
	// 快照事件
	EventSnapshotPublished EventType = "task.snapshot" // 快照发布

	// 任务生命周期事件
	EventTaskInitialized EventType = "task.initialized" // 任务启动
	EventTaskFinished    EventType = "task.finished"    // 任务完成
	EventTaskInterrupted EventType = "task.interrupted" // 任务中断
)

// Event 实时事件
type Event struct {
	ID            string            `json:"id"`             // 事件ID（UUID）
	Type          EventType         `json:"type"`           // 事件类型
	Timestamp     time.Time         `json:"timestamp"`      // 事件时间
	Payload       json.RawMessage   `json:"payload"`        // 事件负载
	Metadata      map[string]string `json:"metadata"`       // 元数据
	CorrelationID string            `json:"correlation_id"` // 关联ID
}

// NewEvent 创建事件，payload被序列化为JSON
func NewEvent(eventType EventType, payload interface{}) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化事件负载失败: %w", err)
	}
	return newRawEvent(eventType, raw), nil
}

func newRawEvent(eventType EventType, raw json.RawMessage) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   raw,
		Metadata:  make(map[string]string),
	}
}

// WithMetadata 添加元数据
func (e *Event) WithMetadata(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// WithCorrelationID 设置关联ID
func (e *Event) WithCorrelationID(correlationID string) *Event {
	e.CorrelationID = correlationID
	return e
}

// DecodePayload 解析事件负载
func (e *Event) DecodePayload(v interface{}) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("事件 %s 没有负载", e.ID)
	}
	return json.Unmarshal(e.Payload, v)
}

// TaskLifecyclePayload 任务生命周期事件负载
type TaskLifecyclePayload struct {
	TaskID   int64  `json:"task_id"`   // 任务标识（未分配时为0）
	TaskName string `json:"task_name"` // 任务名称
	Kind     string `json:"kind"`      // 任务类型
}

// EventHandler 事件处理器函数类型
type EventHandler func(event *Event) error

// SubscriptionID 订阅ID类型
type SubscriptionID string
