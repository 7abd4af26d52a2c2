package admin

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	szk "github.com/samuel/go-zookeeper/zk"
	"github.com/segmentio/topicspread/pkg/zk"
	log "github.com/sirupsen/logrus"
)

const (
	// Various paths in zookeeper
	assignmentPath = "/admin/reassign_partitions"
	brokersPath    = "/brokers/ids"
	topicsPath     = "/brokers/topics"
	clusterIDPath  = "/cluster/id"

	// The maximum number of partition states to fetch in parallel
	maxPoolSize = 20
)

var (
	// ErrTopicDoesNotExist is returned by admin functions when a topic that should exist
	// does not.
	ErrTopicDoesNotExist = errors.New("Topic does not exist")

	// ErrAssignmentInProgress is returned when a reassignment can't be started because
	// another one hasn't finished yet.
	ErrAssignmentInProgress = errors.New("A partition reassignment is already in progress")
)

// ZKAdminClient is a Client that reads cluster state from, and starts reassignments
// through, zookeeper.
type ZKAdminClient struct {
	zkClient zk.Client
	zkPrefix string
	lockPath string
	readOnly bool
}

var _ Client = (*ZKAdminClient)(nil)

// ZKAdminClientConfig contains all of the parameters necessary to create a ZKAdminClient.
type ZKAdminClientConfig struct {
	ZKAddrs  []string
	ZKPrefix string

	// LockPath, if set, is a zookeeper path that's locked while a reassignment is being
	// started.
	LockPath string

	// ExpectedClusterID, if set, is checked against the cluster ID stored in zookeeper.
	ExpectedClusterID string
	ReadOnly          bool
}

// NewZKAdminClient creates and returns a new ZKAdminClient instance.
func NewZKAdminClient(
	ctx context.Context,
	config ZKAdminClientConfig,
) (*ZKAdminClient, error) {
	zkClient, err := zk.NewPooledClient(
		zk.PooledClientConfig{
			Addrs:          config.ZKAddrs,
			SessionTimeout: time.Minute,
			PoolSize:       10,
			ReadOnly:       config.ReadOnly,
		},
	)
	if err != nil {
		return nil, err
	}

	client := newZKAdminClientWithZK(zkClient, config)

	if config.ExpectedClusterID != "" {
		log.Info("Checking cluster ID against version in cluster")
		clusterID, err := client.GetClusterID(ctx)
		if err != nil {
			client.Close()
			return nil, err
		}
		if clusterID != config.ExpectedClusterID {
			client.Close()
			return nil, fmt.Errorf(
				"ID in cluster (%s) does not match expected one (%s)",
				clusterID,
				config.ExpectedClusterID,
			)
		}
	}

	return client, nil
}

func newZKAdminClientWithZK(zkClient zk.Client, config ZKAdminClientConfig) *ZKAdminClient {
	return &ZKAdminClient{
		zkClient: zkClient,
		zkPrefix: normalizePrefix(config.ZKPrefix),
		lockPath: config.LockPath,
		readOnly: config.ReadOnly,
	}
}

func normalizePrefix(zkPrefix string) string {
	if zkPrefix == "" {
		return ""
	}
	if !strings.HasPrefix(zkPrefix, "/") {
		zkPrefix = "/" + zkPrefix
	}
	return strings.TrimSuffix(zkPrefix, "/")
}

// GetClusterID gets the cluster ID from zookeeper. This ID is generated when the cluster is
// created and should be stable over the life of the cluster.
func (c *ZKAdminClient) GetClusterID(ctx context.Context) (string, error) {
	zkClusterID := zkClusterID{}
	_, err := c.zkClient.GetJSON(ctx, c.zNode(clusterIDPath), &zkClusterID)
	if err != nil {
		return "", err
	}
	return zkClusterID.ID, nil
}

// GetBrokers gets information on one or more cluster brokers from zookeeper.
// If the argument ids is unset, then it fetches all brokers.
func (c *ZKAdminClient) GetBrokers(
	ctx context.Context,
	ids []int,
) ([]BrokerInfo, error) {
	brokerIDs := ids
	if len(brokerIDs) == 0 {
		var err error
		brokerIDs, err = c.getBrokerIDs(ctx)
		if err != nil {
			return nil, err
		}
	}

	brokers := []BrokerInfo{}

	for _, id := range brokerIDs {
		zkBrokerInfo := zkBrokerInfo{}
		_, err := c.zkClient.GetJSON(
			ctx,
			c.zNode(brokersPath, strconv.Itoa(id)),
			&zkBrokerInfo,
		)
		if err != nil {
			return nil, err
		}

		brokers = append(
			brokers,
			BrokerInfo{
				ID:   id,
				Host: zkBrokerInfo.Host,
				Port: zkBrokerInfo.Port,
				Rack: zkBrokerInfo.Rack,
			},
		)
	}

	sort.Slice(brokers, func(i, j int) bool {
		return brokers[i].ID < brokers[j].ID
	})

	return brokers, nil
}

func (c *ZKAdminClient) getBrokerIDs(ctx context.Context) ([]int, error) {
	zPath := c.zNode(brokersPath)

	brokerIDStrs, _, err := c.zkClient.Children(ctx, zPath)
	if err != nil {
		return nil, fmt.Errorf(
			"Error getting children at path %s: %w",
			zPath,
			err,
		)
	}

	brokerIDs := []int{}

	for _, idStr := range brokerIDStrs {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return nil, err
		}
		brokerIDs = append(brokerIDs, id)
	}

	sort.Ints(brokerIDs)
	return brokerIDs, nil
}

// GetTopic gets the replica assignments of a topic from zookeeper along with the leader and
// ISR of each partition.
func (c *ZKAdminClient) GetTopic(
	ctx context.Context,
	name string,
) (TopicInfo, error) {
	log.Debugf("Getting info for topic %s", name)

	topicInfo := TopicInfo{
		Name:       name,
		Partitions: []PartitionInfo{},
	}
	zkTopicInfo := zkTopicInfo{}

	_, err := c.zkClient.GetJSON(
		ctx,
		c.zNode(topicsPath, name),
		&zkTopicInfo,
	)
	if err != nil {
		if errors.Is(err, szk.ErrNoNode) {
			return topicInfo, ErrTopicDoesNotExist
		}
		return topicInfo, err
	}

	type partitionReq struct {
		id       int
		replicas []int
	}

	type partitionResp struct {
		partition PartitionInfo
		err       error
	}

	// This can be slow if there are a lot of partitions, so distribute it out
	partitionReqChan := make(chan partitionReq, len(zkTopicInfo.Partitions))
	partitionRespChan := make(chan partitionResp, len(zkTopicInfo.Partitions))

	for partitionIDStr, replicas := range zkTopicInfo.Partitions {
		partitionID, err := strconv.Atoi(partitionIDStr)
		if err != nil {
			return topicInfo, err
		}

		partitionReqChan <- partitionReq{
			id:       partitionID,
			replicas: replicas,
		}
	}
	close(partitionReqChan)

	poolSize := len(zkTopicInfo.Partitions)
	if poolSize > maxPoolSize {
		poolSize = maxPoolSize
	}

	for i := 0; i < poolSize; i++ {
		go func() {
			for req := range partitionReqChan {
				partition, err := c.getPartition(ctx, name, req.id, req.replicas)
				partitionRespChan <- partitionResp{
					partition: partition,
					err:       err,
				}
			}
		}()
	}

	for i := 0; i < len(zkTopicInfo.Partitions); i++ {
		resp := <-partitionRespChan
		if resp.err != nil {
			return topicInfo, resp.err
		}
		topicInfo.Partitions = append(topicInfo.Partitions, resp.partition)
	}

	sort.Slice(topicInfo.Partitions, func(i, j int) bool {
		return topicInfo.Partitions[i].ID < topicInfo.Partitions[j].ID
	})

	return topicInfo, nil
}

func (c *ZKAdminClient) getPartition(
	ctx context.Context,
	topic string,
	id int,
	replicas []int,
) (PartitionInfo, error) {
	partitionInfo := PartitionInfo{
		Topic:    topic,
		ID:       id,
		Leader:   -1,
		Replicas: replicas,
	}

	zkPartitionInfo := zkPartitionInfo{}
	_, err := c.zkClient.GetJSON(
		ctx,
		c.zNode(topicsPath, topic, "partitions", strconv.Itoa(id), "state"),
		&zkPartitionInfo,
	)
	if err != nil {
		// Partitions of just-created topics may not have a state yet
		if errors.Is(err, szk.ErrNoNode) {
			return partitionInfo, nil
		}
		return partitionInfo, err
	}

	partitionInfo.Leader = zkPartitionInfo.Leader
	partitionInfo.ISR = zkPartitionInfo.ISR
	return partitionInfo, nil
}

// DescribeTopic renders the topic in the kafka-topics.sh --describe format.
func (c *ZKAdminClient) DescribeTopic(ctx context.Context, name string) (string, error) {
	topicInfo, err := c.GetTopic(ctx, name)
	if err != nil {
		return "", err
	}
	return FormatDescribe(topicInfo), nil
}

// AssignPartitions writes the plan to the reassignment node in zookeeper, which the
// controller picks up and starts executing. It fails if another reassignment is still in
// progress.
func (c *ZKAdminClient) AssignPartitions(
	ctx context.Context,
	plan ReassignmentPlan,
) error {
	if c.readOnly {
		return errors.New("Cannot assign partitions in read-only mode")
	}

	if c.lockPath != "" {
		log.Debugf("Acquiring lock at %s", c.lockPath)
		lock, err := c.zkClient.AcquireLock(ctx, c.lockPath)
		if err != nil {
			return fmt.Errorf("Error acquiring lock at %s: %w", c.lockPath, err)
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				log.Warnf("Error releasing lock at %s: %+v", c.lockPath, err)
			}
		}()
	}

	inProgress, err := c.assignmentInProgress(ctx)
	if err != nil {
		return err
	}
	if inProgress {
		return &ExecutionError{Err: ErrAssignmentInProgress}
	}

	contents, err := plan.Marshal()
	if err != nil {
		return err
	}

	zNode := c.zNode(assignmentPath)
	log.Infof("Writing reassignment to zk path %s: %s", zNode, string(contents))

	if err := c.zkClient.CreateJSON(ctx, zNode, rawJSON(contents)); err != nil {
		return &ExecutionError{Err: err}
	}
	return nil
}

// Close closes the connections in the underlying zookeeper client.
func (c *ZKAdminClient) Close() error {
	return c.zkClient.Close()
}

// assignmentInProgress returns whether the zk assignment node exists.
func (c *ZKAdminClient) assignmentInProgress(
	ctx context.Context,
) (bool, error) {
	exists, _, err := c.zkClient.Exists(ctx, c.zNode(assignmentPath))
	return exists, err
}

func (c *ZKAdminClient) zNode(elements ...string) string {
	joinedElements := filepath.Join(elements...)
	return filepath.Join("/", c.zkPrefix, joinedElements)
}

// rawJSON passes already-encoded plan bytes through json.Marshal unchanged.
type rawJSON []byte

func (r rawJSON) MarshalJSON() ([]byte, error) {
	return r, nil
}
