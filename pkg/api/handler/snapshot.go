package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LENAX/task-visualizer/pkg/api/dto"
	"github.com/LENAX/task-visualizer/pkg/core/describe"
	"github.com/LENAX/task-visualizer/pkg/core/engine"
	"github.com/LENAX/task-visualizer/pkg/core/graph"
	"github.com/LENAX/task-visualizer/pkg/core/liveness"
)

// SnapshotHandler 快照、任务与描述器查询处理器
type SnapshotHandler struct {
	engine *engine.Engine
}

// NewSnapshotHandler 创建SnapshotHandler
func NewSnapshotHandler(eng *engine.Engine) *SnapshotHandler {
	return &SnapshotHandler{engine: eng}
}

// Snapshot 获取描述符快照
// GET /api/v1/snapshot?fresh=true&mode=all
func (h *SnapshotHandler) Snapshot(c *gin.Context) {
	var query dto.SnapshotQueryRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("查询参数错误: %v", err)))
		return
	}

	payload, at, fresh, mode, err := h.payload(query.Fresh, query.Mode)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, fmt.Sprintf("渲染快照失败: %v", err)))
		return
	}
	forest, err := describe.UnmarshalForest(payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, fmt.Sprintf("解析快照失败: %v", err)))
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.SnapshotResponse{
		Mode:        mode.String(),
		Fresh:       fresh,
		PublishedAt: at,
		Count:       len(forest),
		Descriptors: json.RawMessage(payload),
	}))
}

// Graph 把快照转换为有向无环图
// GET /api/v1/graph?fresh=true&mode=all
func (h *SnapshotHandler) Graph(c *gin.Context) {
	var query dto.SnapshotQueryRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("查询参数错误: %v", err)))
		return
	}

	payload, _, _, _, err := h.payload(query.Fresh, query.Mode)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, fmt.Sprintf("渲染快照失败: %v", err)))
		return
	}
	g, err := graph.FromPayload(payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, fmt.Sprintf("构建任务图失败: %v", err)))
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(g))
}

// Tasks 列出被跟踪的顶层任务
// GET /api/v1/tasks?mode=all&limit=20&offset=0
func (h *SnapshotHandler) Tasks(c *gin.Context) {
	var query dto.TaskQueryRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("查询参数错误: %v", err)))
		return
	}

	mode := h.engine.Publisher().Mode()
	if query.Mode != "" {
		mode, _ = liveness.ParseMode(query.Mode)
	}

	summaries := h.engine.Tasks(mode)
	items := make([]dto.TaskSummary, 0, len(summaries))
	for _, s := range summaries {
		items = append(items, dto.TaskSummary{
			ID:        s.ID,
			Name:      s.Name,
			Kind:      s.Kind,
			IsRunning: s.IsRunning,
			Scheduled: s.Scheduled,
		})
	}

	// 分页
	limit := query.GetDefaultLimit()
	offset := query.Offset
	total := len(items)

	if offset >= total {
		items = []dto.TaskSummary{}
	} else {
		end := offset + limit
		if end > total {
			end = total
		}
		items = items[offset:end]
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ListResponse[dto.TaskSummary]{
		Total:   total,
		Items:   items,
		HasMore: offset+limit < total,
	}))
}

// Describers 列出已注册的描述器
// GET /api/v1/describers
func (h *SnapshotHandler) Describers(c *gin.Context) {
	kinds := h.engine.Registry().Kinds()
	items := make([]dto.DescriberInfo, 0, len(kinds))
	for _, k := range kinds {
		items = append(items, dto.DescriberInfo{Kind: k.Kind, Parent: k.Parent, Describer: k.Describer})
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(items))
}

// Status 引擎状态
// GET /api/v1/status
func (h *SnapshotHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(h.engine.Status()))
}

// payload 选择快照来源：指定模式或fresh时即时渲染，否则取最近一次发布
func (h *SnapshotHandler) payload(fresh bool, modeParam string) (string, time.Time, bool, liveness.Mode, error) {
	pub := h.engine.Publisher()
	mode := pub.Mode()
	if modeParam != "" {
		parsed, err := liveness.ParseMode(modeParam)
		if err != nil {
			return "", time.Time{}, false, mode, err
		}
		if parsed != mode {
			fresh = true
		}
		mode = parsed
	}

	if !fresh {
		if payload, at, ok := pub.LastPayload(); ok {
			return payload, at, false, mode, nil
		}
	}
	payload, err := pub.RenderMode(mode)
	return payload, time.Now(), true, mode, err
}
