package admin

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"

	szk "github.com/samuel/go-zookeeper/zk"
	"github.com/segmentio/topicspread/pkg/zk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryZK is an in-memory zk.Client used to test the admin logic without a zookeeper
// server.
type memoryZK struct {
	sync.Mutex
	nodes    map[string][]byte
	locked   []string
	unlocked []string
}

var _ zk.Client = (*memoryZK)(nil)

func newMemoryZK(nodes map[string]interface{}) *memoryZK {
	m := &memoryZK{nodes: map[string][]byte{}}
	for nodePath, obj := range nodes {
		data, _ := json.Marshal(obj)
		m.nodes[nodePath] = data
	}
	return m
}

func (m *memoryZK) Get(ctx context.Context, nodePath string) ([]byte, *szk.Stat, error) {
	m.Lock()
	defer m.Unlock()

	data, ok := m.nodes[nodePath]
	if !ok {
		return nil, nil, szk.ErrNoNode
	}
	return data, &szk.Stat{}, nil
}

func (m *memoryZK) GetJSON(
	ctx context.Context,
	nodePath string,
	obj interface{},
) (*szk.Stat, error) {
	data, stat, err := m.Get(ctx, nodePath)
	if err != nil {
		return nil, err
	}
	return stat, json.Unmarshal(data, obj)
}

func (m *memoryZK) Children(ctx context.Context, nodePath string) ([]string, *szk.Stat, error) {
	m.Lock()
	defer m.Unlock()

	children := []string{}
	for key := range m.nodes {
		if path.Dir(key) == nodePath {
			children = append(children, path.Base(key))
		}
	}
	sort.Strings(children)
	return children, &szk.Stat{}, nil
}

func (m *memoryZK) Exists(ctx context.Context, nodePath string) (bool, *szk.Stat, error) {
	m.Lock()
	defer m.Unlock()

	_, ok := m.nodes[nodePath]
	return ok, &szk.Stat{}, nil
}

func (m *memoryZK) CreateJSON(ctx context.Context, nodePath string, obj interface{}) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}

	m.Lock()
	defer m.Unlock()

	if _, ok := m.nodes[nodePath]; ok {
		return szk.ErrNodeExists
	}
	m.nodes[nodePath] = data
	return nil
}

func (m *memoryZK) AcquireLock(ctx context.Context, nodePath string) (zk.Lock, error) {
	m.Lock()
	defer m.Unlock()

	m.locked = append(m.locked, nodePath)
	return &memoryLock{zk: m, path: nodePath}, nil
}

func (m *memoryZK) Close() error {
	return nil
}

type memoryLock struct {
	zk   *memoryZK
	path string
}

func (l *memoryLock) Unlock() error {
	l.zk.Lock()
	defer l.zk.Unlock()

	l.zk.unlocked = append(l.zk.unlocked, l.path)
	return nil
}

func testZKNodes(prefix string) map[string]interface{} {
	return map[string]interface{}{
		prefix + "/cluster/id": map[string]string{
			"version": "1",
			"id":      "test-cluster",
		},
		prefix + "/brokers/ids/1": map[string]interface{}{
			"host": "broker1",
			"port": 9092,
			"rack": "ud0/fd0",
		},
		prefix + "/brokers/ids/2": map[string]interface{}{
			"host": "broker2",
			"port": 9092,
			"rack": "ud1/fd1",
		},
		prefix + "/brokers/ids/3": map[string]interface{}{
			"host": "broker3",
			"port": 9092,
			"rack": "ud2/fd2",
		},
		prefix + "/brokers/topics/topic1": map[string]interface{}{
			"version": 1,
			"partitions": map[string][]int{
				"1": {2, 3},
				"0": {1, 2},
			},
		},
		prefix + "/brokers/topics/topic1/partitions/0/state": map[string]interface{}{
			"leader": 1,
			"isr":    []int{1, 2},
		},
		prefix + "/brokers/topics/topic1/partitions/1/state": map[string]interface{}{
			"leader": 3,
			"isr":    []int{3},
		},
	}
}

func TestZKClientGetters(t *testing.T) {
	ctx := context.Background()
	client := newZKAdminClientWithZK(
		newMemoryZK(testZKNodes("/kafka")),
		ZKAdminClientConfig{ZKPrefix: "kafka/"},
	)

	clusterID, err := client.GetClusterID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "test-cluster", clusterID)

	brokers, err := client.GetBrokers(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, BrokerIDs(brokers))
	assert.Equal(t, "ud1/fd1", brokers[1].Rack)
	assert.Equal(t, "broker2:9092", brokers[1].Addr())

	brokers, err = client.GetBrokers(ctx, []int{3})
	require.NoError(t, err)
	assert.Equal(t, []int{3}, BrokerIDs(brokers))

	topic, err := client.GetTopic(ctx, "topic1")
	require.NoError(t, err)
	assert.Equal(
		t,
		TopicInfo{
			Name: "topic1",
			Partitions: []PartitionInfo{
				{
					Topic:    "topic1",
					ID:       0,
					Leader:   1,
					Replicas: []int{1, 2},
					ISR:      []int{1, 2},
				},
				{
					Topic:    "topic1",
					ID:       1,
					Leader:   3,
					Replicas: []int{2, 3},
					ISR:      []int{3},
				},
			},
		},
		topic,
	)

	describe, err := client.DescribeTopic(ctx, "topic1")
	require.NoError(t, err)
	assert.Equal(
		t,
		"Topic:topic1\tPartitionCount:2\tReplicationFactor:2\tConfigs:\n"+
			"\tTopic: topic1\tPartition: 0\tLeader: 1\tReplicas: 1,2\tIsr: 1,2\n"+
			"\tTopic: topic1\tPartition: 1\tLeader: 3\tReplicas: 2,3\tIsr: 3\n",
		describe,
	)

	_, err = client.GetTopic(ctx, "non-existent-topic")
	assert.Equal(t, ErrTopicDoesNotExist, err)
}

func TestZKClientAssignPartitions(t *testing.T) {
	ctx := context.Background()
	memory := newMemoryZK(testZKNodes(""))
	client := newZKAdminClientWithZK(
		memory,
		ZKAdminClientConfig{LockPath: "/topicspread/locks"},
	)

	plan := testPlan{}
	err := client.AssignPartitions(ctx, plan)
	require.NoError(t, err)

	contents, _, err := memory.Get(ctx, "/admin/reassign_partitions")
	require.NoError(t, err)
	assert.JSONEq(t, `{"partitions":[],"version":1}`, string(contents))
	assert.Equal(t, []string{"/topicspread/locks"}, memory.locked)
	assert.Equal(t, []string{"/topicspread/locks"}, memory.unlocked)

	// The previous reassignment hasn't been picked up yet
	err = client.AssignPartitions(ctx, plan)
	execErr := &ExecutionError{}
	require.True(t, errors.As(err, &execErr))
	assert.True(t, errors.Is(err, ErrAssignmentInProgress))
	assert.Equal(t, 2, len(memory.unlocked))
}

func TestZKClientReadOnly(t *testing.T) {
	client := newZKAdminClientWithZK(
		newMemoryZK(testZKNodes("")),
		ZKAdminClientConfig{ReadOnly: true},
	)
	err := client.AssignPartitions(context.Background(), testPlan{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "read-only"))
}

func TestNormalizePrefix(t *testing.T) {
	assert.Equal(t, "", normalizePrefix(""))
	assert.Equal(t, "/kafka", normalizePrefix("kafka"))
	assert.Equal(t, "/kafka", normalizePrefix("/kafka/"))
	assert.Equal(t, "/a/b", normalizePrefix("a/b/"))
}
