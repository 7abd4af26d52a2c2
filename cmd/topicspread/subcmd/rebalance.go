package subcmd

import (
	"github.com/spf13/cobra"
)

var rebalanceCmd = &cobra.Command{
	Use:     "rebalance [topic]",
	Short:   "spread the replicas of a topic across failure domains",
	Args:    cobra.ExactArgs(1),
	PreRunE: rebalancePreRun,
	RunE:    rebalanceRun,
}

type rebalanceCmdConfig struct {
	execute     bool
	skipConfirm bool

	shared sharedOptions
}

var rebalanceConfig rebalanceCmdConfig

func init() {
	rebalanceCmd.Flags().BoolVar(
		&rebalanceConfig.execute,
		"execute",
		false,
		"Start the reassignment instead of only writing the plan",
	)
	rebalanceCmd.Flags().BoolVar(
		&rebalanceConfig.skipConfirm,
		"skip-confirm",
		false,
		"Skip confirmation prompt before executing",
	)

	addSharedFlags(rebalanceCmd, &rebalanceConfig.shared)
	RootCmd.AddCommand(rebalanceCmd)
}

func rebalancePreRun(cmd *cobra.Command, args []string) error {
	return rebalanceConfig.shared.validate()
}

func rebalanceRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := rebalanceConfig.shared.getContext()
	defer cancel()

	runner, adminClient, err := rebalanceConfig.shared.getCLIRunner(
		ctx,
		!rebalanceConfig.execute,
		rebalanceConfig.skipConfirm,
	)
	if err != nil {
		return err
	}
	defer adminClient.Close()

	return runner.RebalanceTopic(ctx, args[0], rebalanceConfig.execute)
}
