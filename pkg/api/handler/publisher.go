package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LENAX/task-visualizer/pkg/api/dto"
	"github.com/LENAX/task-visualizer/pkg/core/engine"
	"github.com/LENAX/task-visualizer/pkg/core/liveness"
)

// PublisherHandler 快照发布开关处理器
type PublisherHandler struct {
	engine *engine.Engine
}

// NewPublisherHandler 创建PublisherHandler
func NewPublisherHandler(eng *engine.Engine) *PublisherHandler {
	return &PublisherHandler{engine: eng}
}

// Enable 启用发布
// POST /api/v1/publisher/enable
func (h *PublisherHandler) Enable(c *gin.Context) {
	h.engine.EnablePublishing()
	c.JSON(http.StatusOK, dto.NewSuccessResponse(h.state("快照发布已启用")))
}

// Disable 禁用发布，跟踪与Sink不受影响
// POST /api/v1/publisher/disable
func (h *PublisherHandler) Disable(c *gin.Context) {
	h.engine.DisablePublishing()
	c.JSON(http.StatusOK, dto.NewSuccessResponse(h.state("快照发布已禁用")))
}

// SetMode 切换快照范围
// POST /api/v1/publisher/mode
func (h *PublisherHandler) SetMode(c *gin.Context) {
	var req dto.PublisherModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("请求参数错误: %v", err)))
		return
	}
	mode, err := liveness.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, err.Error()))
		return
	}
	h.engine.Publisher().SetMode(mode)
	c.JSON(http.StatusOK, dto.NewSuccessResponse(h.state("快照范围已切换")))
}

func (h *PublisherHandler) state(msg string) dto.PublisherStateResponse {
	pub := h.engine.Publisher()
	return dto.PublisherStateResponse{
		Enabled: pub.Enabled(),
		Mode:    pub.Mode().String(),
		Message: msg,
	}
}
