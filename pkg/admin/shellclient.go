package admin

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/segmentio/topicspread/pkg/util"
	log "github.com/sirupsen/logrus"
)

const (
	topicsTool   = "kafka-topics.sh"
	reassignTool = "kafka-reassign-partitions.sh"

	// DefaultPlanPath is where the reassignment JSON file is written for the shell tools
	// if no other path is configured.
	DefaultPlanPath = "/tmp/_to_move.json"

	reassignSuccessMarker = "Successfully started reassignment of partitions"
)

// CommandRunner runs an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner is the CommandRunner that runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ShellAdminClient is a Client that drives the scripts shipped in a kafka distribution.
// It can only describe topics and start reassignments; broker and cluster lookups
// return ErrUnsupported.
type ShellAdminClient struct {
	binDir   string
	zkAddrs  []string
	planPath string
	readOnly bool
	runner   CommandRunner
}

var _ Client = (*ShellAdminClient)(nil)

// ShellAdminClientConfig contains the parameters necessary to create a ShellAdminClient.
type ShellAdminClientConfig struct {
	// BinDir is the directory holding kafka-topics.sh and kafka-reassign-partitions.sh.
	// If blank, the scripts are looked up in the PATH.
	BinDir string

	// ZKAddrs are joined into the --zookeeper argument of each script.
	ZKAddrs []string

	// PlanPath is where the reassignment JSON is written before it's executed.
	PlanPath string
	ReadOnly bool

	// Runner runs the scripts; defaults to ExecRunner.
	Runner CommandRunner
}

// NewShellAdminClient returns a ShellAdminClient for the argument config.
func NewShellAdminClient(config ShellAdminClientConfig) (*ShellAdminClient, error) {
	if len(config.ZKAddrs) == 0 {
		return nil, errors.New("At least one zookeeper address is required for the shell tools")
	}

	planPath := config.PlanPath
	if planPath == "" {
		planPath = DefaultPlanPath
	}
	runner := config.Runner
	if runner == nil {
		runner = ExecRunner
	}

	return &ShellAdminClient{
		binDir:   config.BinDir,
		zkAddrs:  append([]string{}, config.ZKAddrs...),
		planPath: planPath,
		readOnly: config.ReadOnly,
		runner:   runner,
	}, nil
}

// GetClusterID isn't supported by the shell tools.
func (c *ShellAdminClient) GetClusterID(ctx context.Context) (string, error) {
	return "", ErrUnsupported
}

// GetBrokers isn't supported by the shell tools.
func (c *ShellAdminClient) GetBrokers(ctx context.Context, ids []int) ([]BrokerInfo, error) {
	return nil, ErrUnsupported
}

// GetTopic isn't supported by the shell tools; use DescribeTopic instead.
func (c *ShellAdminClient) GetTopic(ctx context.Context, name string) (TopicInfo, error) {
	return TopicInfo{}, ErrUnsupported
}

// DescribeTopic runs kafka-topics.sh --describe for the argument topic and returns its
// output.
func (c *ShellAdminClient) DescribeTopic(ctx context.Context, name string) (string, error) {
	output, err := c.run(
		ctx,
		topicsTool,
		"--zookeeper", c.zkConnect(),
		"--describe",
		"--topic", name,
	)
	if err != nil {
		return "", fmt.Errorf(
			"Error describing topic %s: %w, output: %s",
			name,
			err,
			util.CompactOutput(output, 500),
		)
	}
	if strings.TrimSpace(output) == "" {
		return "", ErrTopicDoesNotExist
	}
	return output, nil
}

// AssignPartitions writes the plan to the plan path and runs
// kafka-reassign-partitions.sh --execute with it. The run only counts as successful if
// the tool reports that the reassignment started.
func (c *ShellAdminClient) AssignPartitions(
	ctx context.Context,
	plan ReassignmentPlan,
) error {
	if c.readOnly {
		return errors.New("Cannot assign partitions in read-only mode")
	}

	contents, err := plan.Marshal()
	if err != nil {
		return err
	}
	if err := ioutil.WriteFile(c.planPath, contents, 0644); err != nil {
		return fmt.Errorf("Error writing plan to %s: %w", c.planPath, err)
	}

	output, err := c.run(
		ctx,
		reassignTool,
		"--zookeeper", c.zkConnect(),
		"--reassignment-json-file", c.planPath,
		"--execute",
	)
	log.Infof("Output from %s:\n%s", reassignTool, output)

	if err != nil {
		return &ExecutionError{Output: output, Err: err}
	}
	if !strings.Contains(output, reassignSuccessMarker) {
		return &ExecutionError{Output: output}
	}
	return nil
}

// Close is a no-op for the shell client.
func (c *ShellAdminClient) Close() error {
	return nil
}

func (c *ShellAdminClient) zkConnect() string {
	return strings.Join(c.zkAddrs, ",")
}

func (c *ShellAdminClient) run(ctx context.Context, tool string, args ...string) (string, error) {
	command := tool
	if c.binDir != "" {
		command = filepath.Join(c.binDir, tool)
	}

	log.Debugf("Running %s %s", command, strings.Join(args, " "))
	output, err := c.runner(ctx, command, args...)
	return string(output), err
}
