package subcmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:     "check [topic]",
	Short:   "check that no two replicas of a partition share a failure domain",
	Args:    cobra.ExactArgs(1),
	PreRunE: checkPreRun,
	RunE:    checkRun,
}

type checkCmdConfig struct {
	shared sharedOptions
}

var checkConfig checkCmdConfig

func init() {
	addSharedFlags(checkCmd, &checkConfig.shared)
	RootCmd.AddCommand(checkCmd)
}

func checkPreRun(cmd *cobra.Command, args []string) error {
	return checkConfig.shared.validate()
}

func checkRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := checkConfig.shared.getContext()
	defer cancel()

	runner, adminClient, err := checkConfig.shared.getCLIRunner(ctx, true, false)
	if err != nil {
		return err
	}
	defer adminClient.Close()

	ok, err := runner.CheckTopic(ctx, args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("Topic %s has replicas that share a failure domain", args[0])
	}
	return nil
}
