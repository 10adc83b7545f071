package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LENAX/task-visualizer/internal/demo"
	"github.com/LENAX/task-visualizer/pkg/api"
	"github.com/LENAX/task-visualizer/pkg/cli/output"
	"github.com/LENAX/task-visualizer/pkg/core/engine"
)

var (
	serverPort int
	configPath string
	serverHost string
	withDemo   bool
)

// serverCmd 启动可视化服务
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动可视化服务",
	Long: `启动Task Visualizer服务：调度循环、快照发布、HTTP API与HTML看板。

示例：
  # 使用默认配置启动
  visualizer server

  # 指定配置文件与端口
  visualizer server --config ./configs/visualizer.yaml --port 9090

  # 挂载演示任务树
  visualizer server --demo`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			output.Info("使用配置文件: %s", configPath)
		}

		eng, err := engine.NewEngineBuilder(configPath).Build()
		if err != nil {
			output.Error("创建Engine失败: %v", err)
			return err
		}

		srvCfg := api.ServerConfigFrom(eng.Config())
		if cmd.Flags().Changed("host") {
			srvCfg.Host = serverHost
		}
		if cmd.Flags().Changed("port") {
			srvCfg.Port = serverPort
		}

		ctx := context.Background()
		if err := eng.Start(ctx); err != nil {
			output.Error("启动Engine失败: %v", err)
			return err
		}

		var routine *demo.Routine
		if withDemo {
			routine = demo.Install(eng.Scheduler())
			output.Info("已挂载演示任务")
		}

		apiServer := api.NewAPIServer(eng, srvCfg, Version)
		go func() {
			if err := apiServer.Start(); err != nil {
				log.Printf("API服务器错误: %v", err)
			}
		}()

		output.Success("Task Visualizer Server started on %s", apiServer.Addr())

		// 等待中断信号
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		output.Info("正在关闭服务...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), srvCfg.WriteTimeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			output.Error("关闭API服务器失败: %v", err)
		}
		if routine != nil {
			routine.Stop()
		}
		if err := eng.Stop(); err != nil {
			output.Error("停止Engine失败: %v", err)
		}
		output.Success("服务已停止")

		return nil
	},
}

func init() {
	serverCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "监听端口，覆盖配置")
	serverCmd.Flags().StringVarP(&serverHost, "host", "H", "0.0.0.0", "监听地址，覆盖配置")
	serverCmd.Flags().StringVarP(&configPath, "config", "c", "", "配置文件路径，为空时使用默认配置")
	serverCmd.Flags().BoolVar(&withDemo, "demo", false, "挂载演示任务树")
}
