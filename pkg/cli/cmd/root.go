package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// 全局变量
	serverURL  string
	outputJSON bool
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "visualizer",
	Short: "Task Visualizer CLI - 任务树可视化命令行工具",
	Long: `Task Visualizer CLI 用于查看调度器中正在运行的任务树。

支持的功能：
  - 启动可视化服务（HTTP API、WebSocket推送、HTML看板）
  - 查看描述符快照与任务图
  - 列出被跟踪的任务与已注册的描述器
  - 启用、禁用快照发布

使用示例：
  # 启动服务并挂载演示任务
  visualizer server --demo

  # 以树形查看当前快照
  visualizer snapshot

  # 列出所有出现过的任务
  visualizer tasks --mode all

  # 暂停快照发布
  visualizer publisher disable`,
	SilenceUsage: true,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Root 返回根命令，供测试使用
func Root() *cobra.Command { return rootCmd }

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "Task Visualizer服务器地址")
	rootCmd.PersistentFlags().BoolVarP(&outputJSON, "json", "j", false, "使用JSON格式输出")

	// 添加子命令
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(describersCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(publisherCmd)
	rootCmd.AddCommand(versionCmd)
}
