package admin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

const defaultReassignTimeout = 30 * time.Second

// BrokerAdminClient is a Client implementation that only uses broker APIs, without any
// zookeeper access. It requires a cluster that supports the AlterPartitionReassignments
// API (kafka 2.4 or newer).
type BrokerAdminClient struct {
	connector *Connector
	client    *kafka.Client
	timeout   time.Duration
	readOnly  bool
}

var _ Client = (*BrokerAdminClient)(nil)

// BrokerAdminClientConfig contains the parameters necessary to create a BrokerAdminClient.
type BrokerAdminClientConfig struct {
	ConnectorConfig

	// ReassignTimeout is passed to the broker with each reassignment request.
	ReassignTimeout time.Duration
	ReadOnly        bool
}

// NewBrokerAdminClient creates a BrokerAdminClient and checks that the cluster is
// reachable.
func NewBrokerAdminClient(
	ctx context.Context,
	config BrokerAdminClientConfig,
) (*BrokerAdminClient, error) {
	connector, err := NewConnector(ctx, config.ConnectorConfig)
	if err != nil {
		return nil, err
	}

	timeout := config.ReassignTimeout
	if timeout == 0 {
		timeout = defaultReassignTimeout
	}

	client := &BrokerAdminClient{
		connector: connector,
		client:    connector.KafkaClient,
		timeout:   timeout,
		readOnly:  config.ReadOnly,
	}

	clusterID, err := client.GetClusterID(ctx)
	if err != nil {
		return nil, fmt.Errorf(
			"Error getting metadata from %s: %w",
			config.BrokerAddr,
			err,
		)
	}
	log.Debugf("Connected to cluster %s", clusterID)

	return client, nil
}

// GetClusterID gets the cluster ID from the broker metadata.
func (c *BrokerAdminClient) GetClusterID(ctx context.Context) (string, error) {
	resp, err := c.client.Metadata(ctx, &kafka.MetadataRequest{})
	if err != nil {
		return "", err
	}
	return resp.ClusterID, nil
}

// GetBrokers gets the brokers in the cluster, including their racks, from the broker
// metadata. If ids is empty, all brokers are returned.
func (c *BrokerAdminClient) GetBrokers(ctx context.Context, ids []int) (
	[]BrokerInfo,
	error,
) {
	metadataResp, err := c.client.Metadata(
		ctx,
		&kafka.MetadataRequest{
			Topics: []string{},
		},
	)
	if err != nil {
		return nil, err
	}

	idsMap := map[int]struct{}{}
	for _, id := range ids {
		idsMap[id] = struct{}{}
	}

	brokerInfos := []BrokerInfo{}

	for _, broker := range metadataResp.Brokers {
		if _, ok := idsMap[broker.ID]; !ok && len(idsMap) > 0 {
			continue
		}

		brokerInfos = append(
			brokerInfos,
			BrokerInfo{
				ID:   broker.ID,
				Host: broker.Host,
				Port: int32(broker.Port),
				Rack: broker.Rack,
			},
		)
	}

	sort.Slice(brokerInfos, func(a, b int) bool {
		return brokerInfos[a].ID < brokerInfos[b].ID
	})

	return brokerInfos, nil
}

// GetTopic gets the partitions of a topic from the broker metadata.
func (c *BrokerAdminClient) GetTopic(
	ctx context.Context,
	name string,
) (TopicInfo, error) {
	resp, err := c.client.Metadata(ctx, &kafka.MetadataRequest{Topics: []string{name}})
	if err != nil {
		return TopicInfo{}, err
	}

	if len(resp.Topics) != 1 {
		return TopicInfo{},
			fmt.Errorf("Unexpected topic length response: %d", len(resp.Topics))
	}
	topic := resp.Topics[0]
	if topic.Error != nil {
		if errors.Is(topic.Error, kafka.UnknownTopicOrPartition) {
			return TopicInfo{}, ErrTopicDoesNotExist
		}
		return TopicInfo{}, topic.Error
	}

	partitionInfos := []PartitionInfo{}

	for _, partition := range topic.Partitions {
		partitionInfos = append(
			partitionInfos,
			PartitionInfo{
				Topic:    topic.Name,
				ID:       partition.ID,
				Leader:   partition.Leader.ID,
				Replicas: brokerIDs(partition.Replicas),
				ISR:      brokerIDs(partition.Isr),
			},
		)
	}

	sort.Slice(partitionInfos, func(a, b int) bool {
		return partitionInfos[a].ID < partitionInfos[b].ID
	})

	return TopicInfo{
		Name:       topic.Name,
		Partitions: partitionInfos,
	}, nil
}

// DescribeTopic renders the topic in the kafka-topics.sh --describe format.
func (c *BrokerAdminClient) DescribeTopic(ctx context.Context, name string) (string, error) {
	topicInfo, err := c.GetTopic(ctx, name)
	if err != nil {
		return "", err
	}
	return FormatDescribe(topicInfo), nil
}

// AssignPartitions starts the reassignments in the plan with the AlterPartitionReassignments
// API. Any top-level or partition-level error in the response is returned as an
// ExecutionError.
func (c *BrokerAdminClient) AssignPartitions(
	ctx context.Context,
	plan ReassignmentPlan,
) error {
	if c.readOnly {
		return errors.New("Cannot assign partitions in read-only mode")
	}

	req := reassignmentsRequest(plan.TopicAssignments(), c.timeout)
	log.Debugf("Sending reassignment request: %+v", req)

	resp, err := c.client.AlterPartitionReassignments(ctx, req)
	if err != nil {
		return &ExecutionError{Err: err}
	}
	return reassignmentsResponseError(resp)
}

// Close closes the idle connections held by the client's transport.
func (c *BrokerAdminClient) Close() error {
	if transport, ok := c.client.Transport.(*kafka.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}

// reassignmentsRequest builds a single request covering every topic in the plan. The
// top-level Topic is left empty so that each assignment carries its own topic.
func reassignmentsRequest(
	topicAssignments map[string][]PartitionAssignment,
	timeout time.Duration,
) *kafka.AlterPartitionReassignmentsRequest {
	req := &kafka.AlterPartitionReassignmentsRequest{
		Assignments: []kafka.AlterPartitionReassignmentsRequestAssignment{},
		Timeout:     timeout,
	}

	topics := []string{}
	for topic := range topicAssignments {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	for _, topic := range topics {
		for _, assignment := range topicAssignments[topic] {
			req.Assignments = append(
				req.Assignments,
				kafka.AlterPartitionReassignmentsRequestAssignment{
					Topic:       topic,
					PartitionID: assignment.ID,
					BrokerIDs:   append([]int{}, assignment.Replicas...),
				},
			)
		}
	}

	return req
}

func reassignmentsResponseError(resp *kafka.AlterPartitionReassignmentsResponse) error {
	if resp.Error != nil {
		return &ExecutionError{Err: resp.Error}
	}

	partitionErrors := map[string]error{}
	for _, result := range resp.PartitionResults {
		if result.Error != nil {
			partitionErrors[fmt.Sprintf("%s/%d", result.Topic, result.PartitionID)] = result.Error
		}
	}
	if len(partitionErrors) > 0 {
		return &ExecutionError{PartitionErrors: partitionErrors}
	}

	return nil
}

func brokerIDs(brokers []kafka.Broker) []int {
	ids := []int{}
	for _, broker := range brokers {
		ids = append(ids, broker.ID)
	}
	return ids
}
