package admin

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by client methods that can't be implemented on top of the
// client's transport, e.g. broker metadata lookups through the shell tools.
var ErrUnsupported = errors.New("Operation not supported by this admin client")

// ReassignmentPlan is the interface a plan needs to satisfy to be applied by a Client.
type ReassignmentPlan interface {
	// Marshal returns the plan in the JSON format consumed by kafka-reassign-partitions.sh
	// and the /admin/reassign_partitions zookeeper node.
	Marshal() ([]byte, error)

	// TopicAssignments returns the desired assignments in the plan, keyed by topic.
	TopicAssignments() map[string][]PartitionAssignment
}

// Client is an interface for interacting with a cluster for administrative tasks.
type Client interface {
	// GetClusterID gets the ID of the cluster.
	GetClusterID(ctx context.Context) (string, error)

	// GetBrokers gets information about brokers in the cluster. If ids is empty, all
	// brokers are returned.
	GetBrokers(ctx context.Context, ids []int) ([]BrokerInfo, error)

	// GetTopic gets the details of a single topic in the cluster.
	GetTopic(ctx context.Context, name string) (TopicInfo, error)

	// DescribeTopic returns the topic in the text format printed by
	// kafka-topics.sh --describe.
	DescribeTopic(ctx context.Context, name string) (string, error)

	// AssignPartitions starts the reassignments in the argument plan.
	AssignPartitions(ctx context.Context, plan ReassignmentPlan) error

	// Close closes the client.
	Close() error
}

// ExecutionError is returned when the cluster doesn't accept a reassignment.
type ExecutionError struct {
	// Output is the output of the admin tool, if one was run.
	Output string

	// PartitionErrors holds per-partition failures, keyed by "topic/partition".
	PartitionErrors map[string]error

	Err error
}

func (e *ExecutionError) Error() string {
	switch {
	case e.Err != nil:
		return "Reassignment failed: " + e.Err.Error()
	case len(e.PartitionErrors) > 0:
		return "Reassignment failed for one or more partitions: " +
			formatPartitionErrors(e.PartitionErrors)
	default:
		return "Reassignment failed, output: " + e.Output
	}
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
