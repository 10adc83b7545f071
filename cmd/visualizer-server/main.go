package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/LENAX/task-visualizer/internal/demo"
	"github.com/LENAX/task-visualizer/pkg/api"
	"github.com/LENAX/task-visualizer/pkg/core/engine"
)

var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	// 命令行参数
	configPath := flag.String("config", "./configs/visualizer.yaml", "可视化引擎配置文件路径")
	withDemo := flag.Bool("demo", false, "挂载演示任务树")
	flag.Parse()

	log.Printf("Task Visualizer Server v%s (%s, %s)", Version, GitCommit, BuildTime)
	log.Printf("配置文件: %s", *configPath)

	// 1. 构建Engine
	eng, err := engine.NewEngineBuilder(*configPath).Build()
	if err != nil {
		log.Fatalf("创建Engine失败: %v", err)
	}

	// 2. 启动Engine
	ctx := context.Background()
	if err := eng.Start(ctx); err != nil {
		log.Fatalf("启动Engine失败: %v", err)
	}

	var routine *demo.Routine
	if *withDemo {
		routine = demo.Install(eng.Scheduler())
		log.Println("📝 已挂载演示任务")
	}

	// 3. 创建API服务器
	config := api.ServerConfigFrom(eng.Config())
	apiServer := api.NewAPIServer(eng, config, Version)

	// 4. 在goroutine中启动API服务器
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Printf("API服务器错误: %v", err)
		}
	}()

	log.Printf("✅ Task Visualizer Server started on %s", apiServer.Addr())

	// 5. 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 6. 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.WriteTimeout)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("关闭API服务器失败: %v", err)
	}

	if routine != nil {
		routine.Stop()
	}
	if err := eng.Stop(); err != nil {
		log.Printf("停止Engine失败: %v", err)
	}
	log.Println("✅ 服务已停止")
}
