package cmd

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/LENAX/task-visualizer/pkg/cli/client"
	"github.com/LENAX/task-visualizer/pkg/cli/output"
)

var (
	tasksMode  string
	tasksLimit int
)

// tasksCmd 列出被跟踪的任务
var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "列出被跟踪的顶层任务",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(serverURL)
		result, err := c.Tasks(tasksMode, tasksLimit, 0)
		if err != nil {
			output.Error("查询失败: %v", err)
			return err
		}

		if outputJSON {
			return output.PrintJSON(result)
		}

		if len(result.Items) == 0 {
			output.Info("暂无被跟踪的任务")
			return nil
		}

		table := output.NewTable([]string{"ID", "NAME", "KIND", "RUNNING", "SCHEDULED"}).
			SetMaxWidth(1, maxNameWidth).
			SetColor(3, runningColor)
		for _, t := range result.Items {
			table.AddRow([]string{
				strconv.FormatInt(t.ID, 10),
				t.Name,
				t.Kind,
				formatRunning(t.IsRunning),
				strconv.FormatBool(t.Scheduled),
			})
		}
		table.Render()
		if result.HasMore {
			output.Warning("仅显示前 %d 条，共 %d 条", len(result.Items), result.Total)
		}
		return nil
	},
}

// describersCmd 列出描述器
var describersCmd = &cobra.Command{
	Use:   "describers",
	Short: "列出已注册的描述器",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(serverURL)
		items, err := c.Describers()
		if err != nil {
			output.Error("查询失败: %v", err)
			return err
		}

		if outputJSON {
			return output.PrintJSON(items)
		}

		table := output.NewTable([]string{"KIND", "PARENT", "DESCRIBER"})
		for _, d := range items {
			parent := "-"
			if d.Parent != "" {
				parent = d.Parent
			}
			table.AddRow([]string{d.Kind, parent, d.Describer})
		}
		table.Render()
		return nil
	},
}

// statusCmd 查看引擎状态
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "查看引擎与发布器状态",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(serverURL)
		s, err := c.Status()
		if err != nil {
			output.Error("查询失败: %v", err)
			return err
		}

		if outputJSON {
			return output.PrintJSON(s)
		}

		fmt.Fprintf(output.Writer, "Instance:   %s\n", s.InstanceName)
		fmt.Fprintf(output.Writer, "Running:    %t\n", s.Running)
		fmt.Fprintf(output.Writer, "Publishing: %t (mode=%s, interval=%s)\n", s.Enabled, s.Mode, s.Interval)
		fmt.Fprintf(output.Writer, "Ticks:      %d published, %d disabled, %d total\n",
			s.Publisher.Published, s.Publisher.DisabledTicks, s.Publisher.Ticks)
		fmt.Fprintf(output.Writer, "Failures:   %d task, %d serialization\n",
			s.Publisher.TaskFailures, s.Publisher.SerializationFailures)
		fmt.Fprintf(output.Writer, "Tracked:    %d running, %d all, %d ids, %d cached\n",
			s.Tracker.Running, s.Tracker.All, s.Identities, s.Cached)

		fmt.Fprintln(output.Writer, "\nSinks:")
		table := output.NewTable([]string{"NAME", "DELIVERED", "FAILED", "DROPPED", "QUEUE", "STATE"}).
			SetColor(5, func(cell string) *color.Color {
				if cell == "congested" {
					return color.New(color.FgYellow)
				}
				return nil
			})
		for _, sink := range s.Sinks {
			state := "ok"
			if sink.Congested {
				state = "congested"
			}
			table.AddRow([]string{
				sink.Name,
				strconv.FormatInt(sink.Delivered, 10),
				strconv.FormatInt(sink.Failed, 10),
				strconv.FormatInt(sink.Dropped, 10),
				fmt.Sprintf("%d/%d", sink.Queued, sink.Capacity),
				state,
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	tasksCmd.Flags().StringVar(&tasksMode, "mode", "", "任务范围 (running/all)")
	tasksCmd.Flags().IntVar(&tasksLimit, "limit", 100, "返回记录数量限制")
}
