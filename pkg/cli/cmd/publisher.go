package cmd

import (
	"github.com/spf13/cobra"

	"github.com/LENAX/task-visualizer/pkg/api/dto"
	"github.com/LENAX/task-visualizer/pkg/cli/client"
	"github.com/LENAX/task-visualizer/pkg/cli/output"
)

// publisherCmd publisher子命令
var publisherCmd = &cobra.Command{
	Use:   "publisher",
	Short: "快照发布开关",
	Long:  `启用或禁用周期快照发布，禁用期间任务跟踪不受影响。`,
}

var publisherEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "启用快照发布",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printState(client.New(serverURL).EnablePublisher())
	},
}

var publisherDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "禁用快照发布",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printState(client.New(serverURL).DisablePublisher())
	},
}

var publisherModeCmd = &cobra.Command{
	Use:       "mode <running|all>",
	Short:     "切换快照范围",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"running", "all"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return printState(client.New(serverURL).SetMode(args[0]))
	},
}

func printState(state *dto.PublisherStateResponse, err error) error {
	if err != nil {
		output.Error("操作失败: %v", err)
		return err
	}
	if outputJSON {
		return output.PrintJSON(state)
	}
	output.Success("%s (enabled=%t, mode=%s)", state.Message, state.Enabled, state.Mode)
	return nil
}

func init() {
	publisherCmd.AddCommand(publisherEnableCmd)
	publisherCmd.AddCommand(publisherDisableCmd)
	publisherCmd.AddCommand(publisherModeCmd)
}
