package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/segmentio/topicspread/pkg/admin"
	"github.com/segmentio/topicspread/pkg/assignment"
	"github.com/segmentio/topicspread/pkg/load"
	"github.com/segmentio/topicspread/pkg/plan"
	"github.com/segmentio/topicspread/pkg/reassign"
	"github.com/segmentio/topicspread/pkg/topology"
	log "github.com/sirupsen/logrus"
)

const (
	spinnerCharSet  = 36
	spinnerDuration = 200 * time.Millisecond
)

// TopologyLoader resolves the topology of the cluster being operated on.
type TopologyLoader func(ctx context.Context) (*topology.Topology, error)

// CLIRunnerConfig contains the parameters needed to create a CLIRunner.
type CLIRunnerConfig struct {
	AdminClient  admin.Client
	LoadTopology TopologyLoader

	// MaxReplicas is the largest supported replication factor; defaults to 3.
	MaxReplicas int

	// PlanPath is where generated plans are written; defaults to /tmp/_to_move.json.
	PlanPath string

	Printer     func(f string, a ...interface{})
	ShowSpinner bool

	// SkipConfirm skips the confirmation prompt before plans are executed.
	SkipConfirm bool
}

// CLIRunner runs the topicspread commands against a single cluster.
type CLIRunner struct {
	adminClient  admin.Client
	loadTopology TopologyLoader
	maxReplicas  int
	planPath     string
	printer      func(f string, a ...interface{})
	spinnerObj   *spinner.Spinner
	skipConfirm  bool
}

// NewCLIRunner creates a new CLIRunner.
func NewCLIRunner(config CLIRunnerConfig) *CLIRunner {
	var spinnerObj *spinner.Spinner

	if config.ShowSpinner {
		spinnerObj = spinner.New(
			spinner.CharSets[spinnerCharSet],
			spinnerDuration,
			spinner.WithWriter(os.Stderr),
			spinner.WithHiddenCursor(true),
		)
		spinnerObj.Prefix = "Loading: "
	}

	maxReplicas := config.MaxReplicas
	if maxReplicas <= 0 {
		maxReplicas = assignment.DefaultMaxReplicas
	}
	planPath := config.PlanPath
	if planPath == "" {
		planPath = plan.DefaultPath
	}
	printer := config.Printer
	if printer == nil {
		printer = log.Infof
	}

	return &CLIRunner{
		adminClient:  config.AdminClient,
		loadTopology: config.LoadTopology,
		maxReplicas:  maxReplicas,
		planPath:     planPath,
		printer:      printer,
		spinnerObj:   spinnerObj,
		skipConfirm:  config.SkipConfirm,
	}
}

// RebalanceTopic generates a plan that spreads the replicas of the argument topic across
// failure domains. If the topic needs changes, the plan is written to the plan path and,
// if execute is set, applied to the cluster.
func (c *CLIRunner) RebalanceTopic(ctx context.Context, topic string, execute bool) error {
	c.startSpinner()
	topo, curr, err := c.loadTopic(ctx, topic)
	c.stopSpinner()
	if err != nil {
		return err
	}

	tracker := load.NewTracker(topo.BrokerIDs(), curr.Partitions)
	before := tracker.Counts()

	result, err := reassign.Reassign(topo, topic, curr.Partitions, tracker)
	if err != nil {
		return err
	}
	if result == nil {
		c.printer("Kafka replica assignment has HA")
		return nil
	}

	path, err := result.WriteFile(c.planPath)
	if err != nil {
		return err
	}
	content, err := result.Marshal()
	if err != nil {
		return err
	}

	c.printer(
		"Proposed changes for %d partitions in topic %s:\n%s",
		result.Len(),
		topic,
		plan.FormatPlanDiff(curr, result, topo),
	)
	c.printer("Replicas per broker:\n%s", plan.FormatLoadDiff(before, tracker.Counts()))

	if !execute {
		c.printer("Please run this command with '--execute' to rebalance replicas")
		c.printer("This is the reassignment-json-file, saved as %s\n%s", path, string(content))
		return nil
	}

	ok, err := Confirm(
		fmt.Sprintf("Execute the reassignment of %d partitions?", result.Len()),
		c.skipConfirm,
	)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("Stopping because of user response")
	}

	c.startSpinner()
	err = c.adminClient.AssignPartitions(ctx, result)
	c.stopSpinner()
	if err != nil {
		return err
	}

	c.printer(
		"Started reassignment of %d partitions in topic %s with plan saved as %s",
		result.Len(),
		topic,
		path,
	)
	return nil
}

// CheckTopic reports the replicas of the argument topic that share a failure domain. It
// returns false if there are any.
func (c *CLIRunner) CheckTopic(ctx context.Context, topic string) (bool, error) {
	c.startSpinner()
	topo, curr, err := c.loadTopic(ctx, topic)
	c.stopSpinner()
	if err != nil {
		return false, err
	}

	collisions, err := reassign.EvaluateAssignments(curr.Partitions, topo)
	if err != nil {
		return false, err
	}
	if len(collisions) == 0 {
		c.printer(
			"All %d partitions in topic %s are spread across %+v",
			curr.PartitionCount(),
			topic,
			topo.Dimensions(),
		)
		return true, nil
	}

	c.printer(
		"Found %d domain collisions in topic %s:\n%s",
		len(collisions),
		topic,
		reassign.FormatCollisions(collisions),
	)

	desired, err := reassign.NewDomainAssigner(topo).Assign(topic, curr.Partitions)
	if err != nil {
		c.printer("Topic %s cannot be repaired by rebalance: %+v", topic, err)
		return false, nil
	}

	moves := 0
	changed := 0
	for _, diff := range admin.AssignmentDiffs(curr.Partitions, desired) {
		if diff.Changed() {
			changed++
			moves += diff.Moves()
		}
	}
	c.printer(
		"Running rebalance would move %d replicas in %d partitions of topic %s",
		moves,
		changed,
		topic,
	)
	return false, nil
}

// GetTopology prints the brokers in the cluster topology. If topic is set, the number
// of replicas of the topic on each broker is included.
func (c *CLIRunner) GetTopology(ctx context.Context, topic string) error {
	c.startSpinner()

	var topo *topology.Topology
	var loads map[int]int
	var err error

	if topic == "" {
		topo, err = c.loadTopology(ctx)
	} else {
		var curr assignment.TopicAssignment
		topo, curr, err = c.loadTopic(ctx, topic)
		if err == nil {
			loads = load.NewTracker(topo.BrokerIDs(), curr.Partitions).Counts()
		}
	}
	c.stopSpinner()
	if err != nil {
		return err
	}

	c.printer("Topology (group %s):\n%s", topo.Group(), topology.FormatTopology(topo, loads))

	c.startSpinner()
	brokers, err := c.adminClient.GetBrokers(ctx, nil)
	c.stopSpinner()
	if errors.Is(err, admin.ErrUnsupported) {
		log.Debugf("Fetching brokers not supported, not showing cluster brokers")
		return nil
	} else if err != nil {
		return err
	}

	c.printer("Brokers in cluster:\n%s", admin.FormatBrokers(brokers))
	for _, brokerID := range admin.BrokerIDs(brokers) {
		if !topo.Has(brokerID) {
			log.Warnf("Broker %d is not in the topology and won't receive replicas", brokerID)
		}
	}
	return nil
}

// ShowPlan validates the plan at the argument path and prints it along with the changes
// it would make to each topic.
func (c *CLIRunner) ShowPlan(ctx context.Context, path string) error {
	p, err := plan.ReadFile(path)
	if err != nil {
		return err
	}

	c.printer("Plan in %s:\n%s", path, p.Pretty())

	for _, topic := range p.Topics() {
		c.startSpinner()
		topo, curr, err := c.loadTopic(ctx, topic)
		c.stopSpinner()
		if err != nil {
			return err
		}
		if err := topo.CheckReplicas(p.Assignments(topic)); err != nil {
			return err
		}

		c.printer(
			"Changes for topic %s:\n%s",
			topic,
			plan.FormatPlanDiff(curr, p, topo),
		)
	}

	return nil
}

func (c *CLIRunner) loadTopic(
	ctx context.Context,
	topic string,
) (*topology.Topology, assignment.TopicAssignment, error) {
	topo, err := c.loadTopology(ctx)
	if err != nil {
		return nil, assignment.TopicAssignment{}, err
	}

	curr, err := c.loadAssignment(ctx, topic)
	if err != nil {
		return nil, assignment.TopicAssignment{}, err
	}

	return topo, curr, nil
}

// loadAssignment gets the current assignment of the topic from the cluster, falling back
// to parsing the topic description for clients that can't fetch topics directly.
func (c *CLIRunner) loadAssignment(
	ctx context.Context,
	topic string,
) (assignment.TopicAssignment, error) {
	topicInfo, err := c.adminClient.GetTopic(ctx, topic)
	if err == nil {
		log.Debugf("Got partitions %+v for topic %s", topicInfo.PartitionIDs(), topic)
		return assignment.FromTopicInfo(topicInfo, c.maxReplicas)
	}
	if !errors.Is(err, admin.ErrUnsupported) {
		return assignment.TopicAssignment{}, err
	}

	log.Debugf("Fetching topics not supported, describing topic %s instead", topic)
	description, err := c.adminClient.DescribeTopic(ctx, topic)
	if err != nil {
		return assignment.TopicAssignment{}, err
	}
	return assignment.ParseDescribe(description, c.maxReplicas)
}

func (c *CLIRunner) startSpinner() {
	if c.spinnerObj != nil {
		c.spinnerObj.Start()
	}
}

func (c *CLIRunner) stopSpinner() {
	if c.spinnerObj != nil && c.spinnerObj.Active() {
		c.spinnerObj.Stop()
	}
}
