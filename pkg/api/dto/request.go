package dto

// TaskQueryRequest 任务列表查询请求
type TaskQueryRequest struct {
	Mode   string `form:"mode" binding:"omitempty,oneof=running all"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

// SnapshotQueryRequest 快照查询请求
type SnapshotQueryRequest struct {
	// Fresh 为true时忽略最近一次发布的快照，即时渲染
	Fresh bool   `form:"fresh"`
	Mode  string `form:"mode" binding:"omitempty,oneof=running all"`
}

// PublisherModeRequest 切换发布模式请求
type PublisherModeRequest struct {
	Mode string `json:"mode" binding:"required,oneof=running all"`
}

// GetDefaultLimit 获取默认limit
func (r *TaskQueryRequest) GetDefaultLimit() int {
	if r.Limit <= 0 {
		return 100
	}
	return r.Limit
}
