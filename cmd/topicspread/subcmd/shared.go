package subcmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/segmentio/topicspread/pkg/admin"
	"github.com/segmentio/topicspread/pkg/cli"
	"github.com/segmentio/topicspread/pkg/config"
	"github.com/segmentio/topicspread/pkg/topology"
	"github.com/segmentio/topicspread/pkg/util"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type sharedOptions struct {
	clusterConfig string
	expandEnv     bool
	planPath      string
	timeout       time.Duration
}

func (s sharedOptions) validate() error {
	var err error

	if s.clusterConfig == "" {
		err = multierror.Append(
			err,
			errors.New("Must set cluster-config or TOPICSPREAD_CLUSTER_CONFIG"),
		)
	}
	if s.timeout < 0 {
		err = multierror.Append(
			err,
			fmt.Errorf("Timeout cannot be negative: %s", s.timeout),
		)
	}

	return err
}

func (s sharedOptions) loadClusterConfig() (config.ClusterConfig, error) {
	clusterConfig, err := config.LoadClusterFile(s.clusterConfig, s.expandEnv)
	if err != nil {
		return config.ClusterConfig{}, err
	}
	if err := clusterConfig.Validate(); err != nil {
		return config.ClusterConfig{}, err
	}
	return clusterConfig, nil
}

// getContext returns a context that's cancelled on interrupt or after the timeout,
// if one is set.
func (s sharedOptions) getContext() (context.Context, context.CancelFunc) {
	var ctx context.Context
	var cancel context.CancelFunc
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), s.timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			log.Warn("Got interrupt, cancelling")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

// getCLIRunner loads the cluster config and returns a runner with an admin client for
// the cluster. The caller is responsible for closing the admin client.
func (s sharedOptions) getCLIRunner(
	ctx context.Context,
	readOnly bool,
	skipConfirm bool,
) (*cli.CLIRunner, admin.Client, error) {
	clusterConfig, err := s.loadClusterConfig()
	if err != nil {
		return nil, nil, err
	}

	planPath := s.planPath
	if planPath == "" {
		planPath = clusterConfig.GetPlanPath()
	}

	adminClient, err := clusterConfig.NewAdminClient(ctx, planPath, readOnly)
	if err != nil {
		return nil, nil, err
	}
	log.Debugf(
		"Created %s admin client for cluster %s",
		clusterConfig.GetAdminMode(),
		clusterConfig.Meta.Name,
	)

	runner := cli.NewCLIRunner(
		cli.CLIRunnerConfig{
			AdminClient: adminClient,
			LoadTopology: func(ctx context.Context) (*topology.Topology, error) {
				return clusterConfig.LoadTopology(ctx, adminClient)
			},
			MaxReplicas: clusterConfig.GetMaxReplicas(),
			PlanPath:    planPath,
			Printer:     log.Infof,
			ShowSpinner: !noSpinner && util.StderrInTerminal(),
			SkipConfirm: skipConfirm,
		},
	)
	return runner, adminClient, nil
}

func addSharedFlags(cmd *cobra.Command, options *sharedOptions) {
	cmd.Flags().StringVar(
		&options.clusterConfig,
		"cluster-config",
		os.Getenv("TOPICSPREAD_CLUSTER_CONFIG"),
		"Cluster config",
	)
	cmd.Flags().BoolVarP(
		&options.expandEnv,
		"expand-env",
		"",
		false,
		"Expand environment in cluster config",
	)
	cmd.Flags().StringVar(
		&options.planPath,
		"plan-path",
		os.Getenv("TOPICSPREAD_PLAN_PATH"),
		"Path for reassignment plans; overrides the value set in cluster config",
	)
	cmd.Flags().DurationVar(
		&options.timeout,
		"timeout",
		0,
		"Timeout for the whole command; 0 means no timeout",
	)
}
