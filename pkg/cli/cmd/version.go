package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LENAX/task-visualizer/pkg/cli/output"
)

// 版本信息（编译时注入）
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// versionCmd version命令
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(output.Writer, "Task Visualizer CLI\n")
		fmt.Fprintf(output.Writer, "  Version:    %s\n", Version)
		fmt.Fprintf(output.Writer, "  Git Commit: %s\n", GitCommit)
		fmt.Fprintf(output.Writer, "  Build Time: %s\n", BuildTime)
	},
}
