package cmd

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/LENAX/task-visualizer/pkg/cli/client"
	"github.com/LENAX/task-visualizer/pkg/cli/output"
	"github.com/LENAX/task-visualizer/pkg/core/describe"
)

var (
	snapshotFresh bool
	snapshotMode  string
)

// snapshotCmd 查看描述符快照
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "以树形查看当前描述符快照",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(serverURL)
		snap, err := c.Snapshot(snapshotFresh, snapshotMode)
		if err != nil {
			output.Error("查询失败: %v", err)
			return err
		}

		if outputJSON {
			return output.PrintRawJSON(snap.Descriptors)
		}

		forest, err := describe.UnmarshalForest(string(snap.Descriptors))
		if err != nil {
			output.Error("解析快照失败: %v", err)
			return err
		}
		if len(forest) == 0 {
			output.Info("暂无被跟踪的任务 (mode=%s)", snap.Mode)
			return nil
		}
		output.Info("mode=%s published_at=%s fresh=%t", snap.Mode, snap.PublishedAt.Format("2006-01-02 15:04:05"), snap.Fresh)
		output.PrintTree(forest)
		return nil
	},
}

// graphCmd 查看任务图
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "查看快照对应的任务图（节点、边、深度）",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(serverURL)
		g, err := c.Graph(snapshotFresh, snapshotMode)
		if err != nil {
			output.Error("查询失败: %v", err)
			return err
		}

		if outputJSON {
			return output.PrintJSON(g)
		}

		if len(g.Nodes) == 0 {
			output.Info("任务图为空")
			return nil
		}

		table := output.NewTable([]string{"KEY", "NAME", "KIND", "DEPTH", "RUNNING", "CHILDREN"}).
			SetMaxWidth(1, maxNameWidth).
			SetColor(4, runningColor)
		for _, n := range g.Nodes {
			table.AddRow([]string{
				n.Key,
				n.Name,
				n.Kind,
				strconv.Itoa(n.Depth),
				formatRunning(n.IsRunning),
				strconv.Itoa(len(n.Children)),
			})
		}
		table.Render()
		fmt.Fprintf(output.Writer, "\n节点: %d  边: %d  根: %d  最大深度: %d  运行中: %d\n",
			len(g.Nodes), len(g.Edges), len(g.Roots), g.MaxDepth, g.Running)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{snapshotCmd, graphCmd} {
		c.Flags().BoolVar(&snapshotFresh, "fresh", false, "忽略最近一次发布，即时渲染")
		c.Flags().StringVar(&snapshotMode, "mode", "", "快照范围 (running/all)，默认使用服务端设置")
	}
}

// maxNameWidth 表格中任务名的最大显示宽度
const maxNameWidth = 40

func runningColor(cell string) *color.Color {
	if cell == formatRunning(true) {
		return color.New(color.FgGreen)
	}
	return nil
}

func formatRunning(running bool) string {
	if running {
		return "🔄 yes"
	}
	return "no"
}
