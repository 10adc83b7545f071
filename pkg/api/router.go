package api

import (
	"github.com/gin-gonic/gin"

	"github.com/LENAX/task-visualizer/pkg/api/handler"
	"github.com/LENAX/task-visualizer/pkg/api/middleware"
	"github.com/LENAX/task-visualizer/pkg/core/engine"
)

// SetupRouter 设置路由
func SetupRouter(eng *engine.Engine, version string) *gin.Engine {
	// 设置gin模式
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// 全局中间件
	router.Use(middleware.Recovery(eng.Logger()))
	router.Use(middleware.Logger(eng.Logger()))
	router.Use(middleware.CORS())
	router.SetHTMLTemplate(handler.DashboardTemplate())

	// 创建handlers
	healthHandler := handler.NewHealthHandler(eng, version)
	snapshotHandler := handler.NewSnapshotHandler(eng)
	publisherHandler := handler.NewPublisherHandler(eng)
	dashboardHandler := handler.NewDashboardHandler(eng)

	// 健康检查路由（不带前缀）
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/", dashboardHandler.Index)

	if hub := eng.Hub(); hub != nil {
		router.GET(eng.Config().TaskVisualizer.Transport.WebSocket.Path, gin.WrapH(hub))
	}

	// API v1 路由组
	v1 := router.Group("/api/v1")
	{
		v1.GET("/snapshot", snapshotHandler.Snapshot)
		v1.GET("/graph", snapshotHandler.Graph)
		v1.GET("/tasks", snapshotHandler.Tasks)
		v1.GET("/describers", snapshotHandler.Describers)
		v1.GET("/status", snapshotHandler.Status)

		pub := v1.Group("/publisher")
		{
			pub.POST("/enable", publisherHandler.Enable)
			pub.POST("/disable", publisherHandler.Disable)
			pub.POST("/mode", publisherHandler.SetMode)
		}
	}

	return router
}
