package cli

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/segmentio/topicspread/pkg/admin"
	"github.com/segmentio/topicspread/pkg/plan"
	"github.com/segmentio/topicspread/pkg/reassign"
	"github.com/segmentio/topicspread/pkg/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdminClient struct {
	admin.Client

	topic           admin.TopicInfo
	brokers         []admin.BrokerInfo
	describeOnly    bool
	assignedPlans   []admin.ReassignmentPlan
	describeCounter int
}

func (c *fakeAdminClient) GetBrokers(ctx context.Context, ids []int) ([]admin.BrokerInfo, error) {
	if c.brokers == nil {
		return nil, admin.ErrUnsupported
	}
	return c.brokers, nil
}

func (c *fakeAdminClient) GetTopic(ctx context.Context, name string) (admin.TopicInfo, error) {
	if c.describeOnly {
		return admin.TopicInfo{}, admin.ErrUnsupported
	}
	if name != c.topic.Name {
		return admin.TopicInfo{}, fmt.Errorf("Topic %s not found", name)
	}
	return c.topic, nil
}

func (c *fakeAdminClient) DescribeTopic(ctx context.Context, name string) (string, error) {
	c.describeCounter++
	if name != c.topic.Name {
		return "", fmt.Errorf("Topic %s not found", name)
	}
	return admin.FormatDescribe(c.topic), nil
}

func (c *fakeAdminClient) AssignPartitions(
	ctx context.Context,
	plan admin.ReassignmentPlan,
) error {
	c.assignedPlans = append(c.assignedPlans, plan)
	return nil
}

func testTopicInfo(name string, replicas ...[]int) admin.TopicInfo {
	topicInfo := admin.TopicInfo{Name: name}

	for p, partitionReplicas := range replicas {
		topicInfo.Partitions = append(
			topicInfo.Partitions,
			admin.PartitionInfo{
				Topic:    name,
				ID:       p,
				Leader:   partitionReplicas[0],
				Replicas: partitionReplicas,
				ISR:      partitionReplicas,
			},
		)
	}

	return topicInfo
}

// testTopologyLoader returns a loader for a topology with a broker at every
// update/fault domain pair. Broker IDs are ud*faultDomains + fd.
func testTopologyLoader(updateDomains int, faultDomains int) TopologyLoader {
	return func(ctx context.Context) (*topology.Topology, error) {
		brokers := []topology.BrokerCoordinates{}

		for ud := 0; ud < updateDomains; ud++ {
			for fd := 0; fd < faultDomains; fd++ {
				brokers = append(
					brokers,
					topology.BrokerCoordinates{
						ID:    ud*faultDomains + fd,
						Group: "test-set",
						Coordinates: []topology.Coordinate{
							topology.Coordinate(fmt.Sprintf("%d", ud)),
							topology.Coordinate(fmt.Sprintf("%d", fd)),
						},
					},
				)
			}
		}

		return topology.NewTopology(topology.DefaultDimensions, brokers)
	}
}

type testOutput struct {
	lines []string
}

func (o *testOutput) printf(f string, a ...interface{}) {
	o.lines = append(o.lines, fmt.Sprintf(f, a...))
}

func (o *testOutput) String() string {
	return strings.Join(o.lines, "\n")
}

func testRunner(
	t *testing.T,
	client admin.Client,
	loader TopologyLoader,
) (*CLIRunner, *testOutput, string) {
	tempDir, err := ioutil.TempDir("", "topicspread-cli")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	planPath := filepath.Join(tempDir, "to_move.json")
	output := &testOutput{}

	return NewCLIRunner(
		CLIRunnerConfig{
			AdminClient:  client,
			LoadTopology: loader,
			PlanPath:     planPath,
			Printer:      output.printf,
			SkipConfirm:  true,
		},
	), output, planPath
}

func TestRebalanceTopicDryRun(t *testing.T) {
	ctx := context.Background()
	client := &fakeAdminClient{
		topic:        testTopicInfo("topic-a", []int{0, 1}),
		describeOnly: true,
	}
	runner, output, planPath := testRunner(t, client, testTopologyLoader(2, 2))

	require.NoError(t, runner.RebalanceTopic(ctx, "topic-a", false))
	assert.Equal(t, 1, client.describeCounter)
	assert.Equal(t, 0, len(client.assignedPlans))

	assert.Contains(
		t,
		output.String(),
		"Please run this command with '--execute' to rebalance replicas",
	)
	assert.Contains(
		t,
		output.String(),
		fmt.Sprintf("This is the reassignment-json-file, saved as %s", planPath),
	)
	assert.Contains(
		t,
		output.String(),
		`{"partitions":[{"topic":"topic-a","partition":0,"replicas":[0,3]}],"version":1}`,
	)

	saved, err := plan.ReadFile(planPath)
	require.NoError(t, err)
	assert.Equal(
		t,
		[]admin.PartitionAssignment{{ID: 0, Replicas: []int{0, 3}}},
		saved.Assignments("topic-a"),
	)
}

func TestRebalanceTopicExecute(t *testing.T) {
	ctx := context.Background()
	client := &fakeAdminClient{
		topic: testTopicInfo("topic-a", []int{0, 1}, []int{3, 2}),
	}
	runner, output, _ := testRunner(t, client, testTopologyLoader(2, 2))

	require.NoError(t, runner.RebalanceTopic(ctx, "topic-a", true))
	assert.Equal(t, 0, client.describeCounter)
	require.Equal(t, 1, len(client.assignedPlans))
	assert.Equal(
		t,
		map[string][]admin.PartitionAssignment{
			"topic-a": {
				{ID: 0, Replicas: []int{0, 3}},
				{ID: 1, Replicas: []int{3, 0}},
			},
		},
		client.assignedPlans[0].TopicAssignments(),
	)
	assert.Contains(t, output.String(), "Started reassignment of 2 partitions in topic topic-a")
}

func TestRebalanceTopicBalanced(t *testing.T) {
	ctx := context.Background()
	client := &fakeAdminClient{
		topic: testTopicInfo("topic-a", []int{0, 3}, []int{1, 2}),
	}
	runner, output, planPath := testRunner(t, client, testTopologyLoader(2, 2))

	require.NoError(t, runner.RebalanceTopic(ctx, "topic-a", true))
	assert.Equal(t, "Kafka replica assignment has HA", output.String())
	assert.Equal(t, 0, len(client.assignedPlans))

	_, err := os.Stat(planPath)
	assert.True(t, os.IsNotExist(err))
}

func TestRebalanceTopicErrors(t *testing.T) {
	ctx := context.Background()

	client := &fakeAdminClient{
		topic: testTopicInfo("topic-a", []int{0, 1}),
	}
	runner, _, planPath := testRunner(t, client, testTopologyLoader(1, 2))

	err := runner.RebalanceTopic(ctx, "topic-a", true)
	require.Error(t, err)
	infeasibleErr := &reassign.InfeasibleAssignmentError{}
	assert.ErrorAs(t, err, &infeasibleErr)
	assert.Equal(t, 0, len(client.assignedPlans))
	_, err = os.Stat(planPath)
	assert.True(t, os.IsNotExist(err))

	err = runner.RebalanceTopic(ctx, "topic-b", true)
	assert.Error(t, err)

	client = &fakeAdminClient{
		topic:        testTopicInfo("topic-a", []int{0, 1, 2, 3}),
		describeOnly: true,
	}
	runner, _, _ = testRunner(t, client, testTopologyLoader(2, 2))
	assert.Error(t, runner.RebalanceTopic(ctx, "topic-a", false))
}

func TestCheckTopic(t *testing.T) {
	ctx := context.Background()

	client := &fakeAdminClient{
		topic: testTopicInfo("topic-a", []int{0, 3}, []int{1, 0}),
	}
	runner, output, _ := testRunner(t, client, testTopologyLoader(2, 2))

	ok, err := runner.CheckTopic(ctx, "topic-a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, output.String(), "Found 1 domain collisions in topic topic-a")
	assert.Contains(
		t,
		output.String(),
		"Running rebalance would move 1 replicas in 1 partitions of topic topic-a",
	)

	// A single update domain can't hold two replicas apart
	runner, output, _ = testRunner(t, client, testTopologyLoader(1, 2))
	client.topic = testTopicInfo("topic-a", []int{0, 1})
	ok, err = runner.CheckTopic(ctx, "topic-a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, output.String(), "Topic topic-a cannot be repaired by rebalance")

	runner, _, _ = testRunner(t, client, testTopologyLoader(2, 2))

	client.topic = testTopicInfo("topic-a", []int{0, 3}, []int{1, 2})
	ok, err = runner.CheckTopic(ctx, "topic-a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetTopology(t *testing.T) {
	ctx := context.Background()
	client := &fakeAdminClient{
		topic: testTopicInfo("topic-a", []int{0, 3}, []int{3, 0}),
	}
	runner, output, _ := testRunner(t, client, testTopologyLoader(2, 2))

	require.NoError(t, runner.GetTopology(ctx, ""))
	assert.Contains(t, output.String(), "Topology (group test-set)")
	assert.NotContains(t, output.String(), "Replicas")

	require.NoError(t, runner.GetTopology(ctx, "topic-a"))
	assert.Contains(t, output.String(), "Replicas")
	assert.NotContains(t, output.String(), "Brokers in cluster")

	client.brokers = []admin.BrokerInfo{
		{ID: 0, Host: "broker0", Port: 9092, Rack: "0/0"},
		{ID: 7, Host: "broker7", Port: 9092},
	}
	require.NoError(t, runner.GetTopology(ctx, ""))
	assert.Contains(t, output.String(), "Brokers in cluster")
	assert.Contains(t, output.String(), "broker7:9092")
}

func TestShowPlan(t *testing.T) {
	ctx := context.Background()
	client := &fakeAdminClient{
		topic: testTopicInfo("topic-a", []int{0, 1}),
	}
	runner, output, planPath := testRunner(t, client, testTopologyLoader(2, 2))

	_, err := plan.New(
		plan.PartitionReassignment{Topic: "topic-a", Partition: 0, Replicas: []int{0, 3}},
	).WriteFile(planPath)
	require.NoError(t, err)

	require.NoError(t, runner.ShowPlan(ctx, planPath))
	assert.Contains(t, output.String(), "Changes for topic topic-a")

	_, err = plan.New(
		plan.PartitionReassignment{Topic: "topic-a", Partition: 0, Replicas: []int{0, 7}},
	).WriteFile(planPath)
	require.NoError(t, err)
	assert.Error(t, runner.ShowPlan(ctx, planPath))

	assert.Error(t, runner.ShowPlan(ctx, filepath.Join(filepath.Dir(planPath), "missing.json")))
}
