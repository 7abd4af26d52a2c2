package assignment

import (
	"fmt"

	"github.com/segmentio/topicspread/pkg/admin"
	"github.com/segmentio/topicspread/pkg/util"
)

// DefaultMaxReplicas is the largest replica count that's supported unless configured
// otherwise.
const DefaultMaxReplicas = 3

// TopicAssignment is the current replica assignment of every partition in a topic.
type TopicAssignment struct {
	Topic             string
	ReplicationFactor int

	// Partitions are in partition ID order, with Partitions[i].ID == i.
	Partitions []admin.PartitionAssignment
}

// PartitionCount returns the number of partitions in the topic.
func (t TopicAssignment) PartitionCount() int {
	return len(t.Partitions)
}

// Replicas returns a copy of the replicas of the argument partition, leader first, or nil
// if the partition doesn't exist.
func (t TopicAssignment) Replicas(partition int) []int {
	if partition < 0 || partition >= len(t.Partitions) {
		return nil
	}
	return util.CopyInts(t.Partitions[partition].Replicas)
}

// Leader returns the preferred leader of the argument partition, or -1 if the partition
// doesn't exist.
func (t TopicAssignment) Leader(partition int) int {
	if partition < 0 || partition >= len(t.Partitions) {
		return -1
	}
	return t.Partitions[partition].Leader()
}

// ParseError is returned when a topic description can't be parsed.
type ParseError struct {
	// LineNumber is 1-based; it's 0 when the error isn't tied to a single line.
	LineNumber int
	Line       string
	Reason     string
}

func (e *ParseError) Error() string {
	if e.LineNumber == 0 {
		return fmt.Sprintf("Could not parse topic description: %s", e.Reason)
	}
	return fmt.Sprintf(
		"Could not parse topic description, line %d (%q): %s",
		e.LineNumber,
		e.Line,
		e.Reason,
	)
}

// CapacityError is returned when a topic has more replicas than are supported.
type CapacityError struct {
	Declared int
	Max      int

	// Partition is the partition with too many replicas, or -1 if the declared
	// replication factor of the topic is the problem.
	Partition int
}

func (e *CapacityError) Error() string {
	if e.Partition < 0 {
		return fmt.Sprintf(
			"Replication factor %d exceeds the supported maximum of %d",
			e.Declared,
			e.Max,
		)
	}
	return fmt.Sprintf(
		"Partition %d has %d replicas, which exceeds the supported maximum of %d",
		e.Partition,
		e.Declared,
		e.Max,
	)
}

// FromTopicInfo builds a TopicAssignment from a topic fetched from the cluster.
func FromTopicInfo(topic admin.TopicInfo, maxReplicas int) (TopicAssignment, error) {
	if maxReplicas <= 0 {
		maxReplicas = DefaultMaxReplicas
	}

	replicationFactor := topic.MaxReplication()
	if replicationFactor > maxReplicas {
		return TopicAssignment{}, &CapacityError{
			Declared:  replicationFactor,
			Max:       maxReplicas,
			Partition: -1,
		}
	}

	assignments := topic.ToAssignments()
	if len(assignments) > 0 {
		if err := admin.CheckAssignments(assignments); err != nil {
			return TopicAssignment{}, fmt.Errorf(
				"Invalid assignments for topic %s: %w",
				topic.Name,
				err,
			)
		}
	}

	return TopicAssignment{
		Topic:             topic.Name,
		ReplicationFactor: replicationFactor,
		Partitions:        assignments,
	}, nil
}
