package dto

import (
	"encoding/json"
	"time"
)

// APIResponse 通用API响应结构
type APIResponse[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse[T any](data T) APIResponse[T] {
	return APIResponse[T]{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) APIResponse[any] {
	return APIResponse[any]{
		Code:    code,
		Message: message,
	}
}

// SnapshotResponse 快照响应，Descriptors为原始JSON数组
type SnapshotResponse struct {
	Mode        string          `json:"mode"`
	Fresh       bool            `json:"fresh"`
	PublishedAt time.Time       `json:"published_at"`
	Count       int             `json:"count"`
	Descriptors json.RawMessage `json:"descriptors"`
}

// TaskSummary 被跟踪任务摘要
type TaskSummary struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	IsRunning bool   `json:"is_running"`
	Scheduled bool   `json:"scheduled"`
}

// DescriberInfo 描述器注册信息
type DescriberInfo struct {
	Kind      string `json:"kind"`
	Parent    string `json:"parent,omitempty"`
	Describer string `json:"describer"`
}

// PublisherStateResponse 发布器开关状态
type PublisherStateResponse struct {
	Enabled bool   `json:"enabled"`
	Mode    string `json:"mode"`
	Message string `json:"message"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Timestamp string `json:"timestamp"`
}

// ListResponse 列表响应
type ListResponse[T any] struct {
	Total   int  `json:"total"`
	Items   []T  `json:"items"`
	HasMore bool `json:"has_more"`
}
