package subcmd

import (
	"github.com/spf13/cobra"
)

var topologyCmd = &cobra.Command{
	Use:     "topology [optional topic]",
	Short:   "show the failure domains of each broker",
	Args:    cobra.MaximumNArgs(1),
	PreRunE: topologyPreRun,
	RunE:    topologyRun,
}

type topologyCmdConfig struct {
	shared sharedOptions
}

var topologyConfig topologyCmdConfig

func init() {
	addSharedFlags(topologyCmd, &topologyConfig.shared)
	RootCmd.AddCommand(topologyCmd)
}

func topologyPreRun(cmd *cobra.Command, args []string) error {
	return topologyConfig.shared.validate()
}

func topologyRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := topologyConfig.shared.getContext()
	defer cancel()

	runner, adminClient, err := topologyConfig.shared.getCLIRunner(ctx, true, false)
	if err != nil {
		return err
	}
	defer adminClient.Close()

	var topic string
	if len(args) > 0 {
		topic = args[0]
	}
	return runner.GetTopology(ctx, topic)
}
