package subcmd

import (
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:     "plan [plan file]",
	Short:   "validate a reassignment plan and show the changes it makes",
	Args:    cobra.ExactArgs(1),
	PreRunE: planPreRun,
	RunE:    planRun,
}

type planCmdConfig struct {
	shared sharedOptions
}

var planConfig planCmdConfig

func init() {
	addSharedFlags(planCmd, &planConfig.shared)
	RootCmd.AddCommand(planCmd)
}

func planPreRun(cmd *cobra.Command, args []string) error {
	return planConfig.shared.validate()
}

func planRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := planConfig.shared.getContext()
	defer cancel()

	runner, adminClient, err := planConfig.shared.getCLIRunner(ctx, true, false)
	if err != nil {
		return err
	}
	defer adminClient.Close()

	return runner.ShowPlan(ctx, args[0])
}
