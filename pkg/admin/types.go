package admin

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/segmentio/topicspread/pkg/util"
)

// BrokerInfo represents the information stored about a broker in zookeeper or returned by
// the broker metadata API.
type BrokerInfo struct {
	ID   int    `json:"id"`
	Host string `json:"host"`
	Port int32  `json:"port"`
	Rack string `json:"rack"`
}

// TopicInfo represents the information stored about a topic in the cluster.
type TopicInfo struct {
	Name       string          `json:"name"`
	Partitions []PartitionInfo `json:"partitions"`
}

// PartitionInfo represents the information stored about a topic partition.
type PartitionInfo struct {
	Topic    string `json:"topic"`
	ID       int    `json:"ID"`
	Leader   int    `json:"leader"`
	Replicas []int  `json:"replicas"`
	ISR      []int  `json:"isr"`
}

// PartitionAssignment contains the actual or desired assignment of
// replicas in a topic partition. Replicas[0] is the preferred leader.
type PartitionAssignment struct {
	ID       int   `json:"id"`
	Replicas []int `json:"replicas"`
}

type zkClusterID struct {
	Version string `json:"version"`
	ID      string `json:"id"`
}

type zkBrokerInfo struct {
	Endpoints []string `json:"endpoints"`
	Host      string   `json:"host"`
	Port      int32    `json:"port"`
	Rack      string   `json:"rack"`
	Version   int      `json:"version"`
}

type zkTopicInfo struct {
	Version    int              `json:"version"`
	Partitions map[string][]int `json:"partitions"`
}

type zkPartitionInfo struct {
	Leader int   `json:"leader"`
	ISR    []int `json:"isr"`
}

// Addr returns the address of the current BrokerInfo.
func (b BrokerInfo) Addr() string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}

// BrokerIDs returns a slice of the IDs of the argument brokers.
func BrokerIDs(brokers []BrokerInfo) []int {
	brokerIDs := []int{}

	for _, broker := range brokers {
		brokerIDs = append(brokerIDs, broker.ID)
	}

	return brokerIDs
}

// BrokerRacks returns a mapping of broker ID -> rack.
func BrokerRacks(brokers []BrokerInfo) map[int]string {
	brokerRacks := map[int]string{}

	for _, broker := range brokers {
		brokerRacks[broker.ID] = broker.Rack
	}

	return brokerRacks
}

// PartitionIDs returns an ordered slice of partition IDs for a topic.
func (t TopicInfo) PartitionIDs() []int {
	ids := []int{}

	for _, partition := range t.Partitions {
		ids = append(ids, partition.ID)
	}

	return ids
}

// MaxReplication returns the maximum number of replicas across all partitions
// in a topic.
func (t TopicInfo) MaxReplication() int {
	maxReplication := 0

	for _, partition := range t.Partitions {
		if len(partition.Replicas) > maxReplication {
			maxReplication = len(partition.Replicas)
		}
	}

	return maxReplication
}

// ToAssignments converts a topic to a slice of partition assignments, sorted by
// partition ID.
func (t TopicInfo) ToAssignments() []PartitionAssignment {
	assignments := []PartitionAssignment{}

	for _, partitionInfo := range t.Partitions {
		assignments = append(
			assignments,
			PartitionAssignment{
				ID:       partitionInfo.ID,
				Replicas: util.CopyInts(partitionInfo.Replicas),
			},
		)
	}

	sort.Slice(assignments, func(a, b int) bool {
		return assignments[a].ID < assignments[b].ID
	})

	return assignments
}

// Index returns the index of the argument replica, or -1 if it can't
// be found.
func (a PartitionAssignment) Index(replica int) int {
	return util.IndexOf(a.Replicas, replica)
}

// Leader returns the preferred leader of the partition, or -1 if the partition has no
// replicas.
func (a PartitionAssignment) Leader() int {
	if len(a.Replicas) == 0 {
		return -1
	}
	return a.Replicas[0]
}

// Copy returns a deep copy of this PartitionAssignment.
func (a PartitionAssignment) Copy() PartitionAssignment {
	return PartitionAssignment{
		ID:       a.ID,
		Replicas: util.CopyInts(a.Replicas),
	}
}

// CopyAssignments returns a deep copy of the argument PartitionAssignment
// slice.
func CopyAssignments(
	curr []PartitionAssignment,
) []PartitionAssignment {
	copied := []PartitionAssignment{}

	for _, assignment := range curr {
		copied = append(copied, assignment.Copy())
	}

	return copied
}

// CheckAssignments does some basic sanity checks on the argument assignments so that
// we can fail early if something is obviously wrong: the slice must be non-empty, in
// partition order, without repeated replicas, and without empty partitions.
func CheckAssignments(assignments []PartitionAssignment) error {
	if len(assignments) == 0 {
		return errors.New("Got zero-length slice")
	}

	for a, assignment := range assignments {
		if a != assignment.ID {
			return errors.New("Slice elements not in order")
		}
		if len(assignment.Replicas) == 0 {
			return fmt.Errorf("Partition %d has no replicas", assignment.ID)
		}
		if hasRepeats(assignment) {
			return fmt.Errorf(
				"Found repeated replica in assignment: %+v",
				assignment,
			)
		}
	}

	return nil
}

func hasRepeats(assignment PartitionAssignment) bool {
	replicasMap := map[int]struct{}{}

	for _, replica := range assignment.Replicas {
		if _, ok := replicasMap[replica]; ok {
			return true
		}

		replicasMap[replica] = struct{}{}
	}

	return false
}

// ReplicasToAssignments converts a slice of slices to a slice of PartitionAssignments,
// assuming that the argument slices are in partition order. Used for unit tests.
func ReplicasToAssignments(
	replicaSlices [][]int,
) []PartitionAssignment {
	assignments := []PartitionAssignment{}

	for p, replicas := range replicaSlices {
		assignments = append(
			assignments,
			PartitionAssignment{
				ID:       p,
				Replicas: util.CopyInts(replicas),
			},
		)
	}

	return assignments
}

// AssignmentsToReplicas is the inverse of ReplicasToAssignments. Used for unit
// tests.
func AssignmentsToReplicas(assignments []PartitionAssignment) ([][]int, error) {
	replicaSlices := [][]int{}

	for a, assignment := range assignments {
		if a != assignment.ID {
			return nil, errors.New("Assignments are not in order")
		}

		replicaSlices = append(
			replicaSlices,
			assignment.Replicas,
		)
	}

	return replicaSlices, nil
}

// ReplicaCountsPerBroker returns a mapping of broker ID -> number of replicas hosted,
// counting leaders and followers equally.
func ReplicaCountsPerBroker(assignments []PartitionAssignment) map[int]int {
	counts := map[int]int{}

	for _, assignment := range assignments {
		for _, replica := range assignment.Replicas {
			counts[replica]++
		}
	}

	return counts
}

// AssignmentDiff represents the diff in a single partition reassignment.
type AssignmentDiff struct {
	PartitionID int
	Old         PartitionAssignment
	New         PartitionAssignment
}

// Changed returns whether the old and new replicas differ.
func (d AssignmentDiff) Changed() bool {
	return !reflect.DeepEqual(d.Old.Replicas, d.New.Replicas)
}

// Moves returns the number of replica positions that differ between the old and new
// assignments.
func (d AssignmentDiff) Moves() int {
	moves := 0

	for r, replica := range d.New.Replicas {
		if r >= len(d.Old.Replicas) || d.Old.Replicas[r] != replica {
			moves++
		}
	}

	return moves
}

// AssignmentDiffs returns the diffs implied by the argument current and
// desired PartitionAssignments. Partitions that are missing from desired keep their
// current replicas. Used for displaying diffs to user.
func AssignmentDiffs(
	current []PartitionAssignment,
	desired []PartitionAssignment,
) []AssignmentDiff {
	diffsMap := map[int]AssignmentDiff{}

	for _, assignment := range current {
		diffsMap[assignment.ID] = AssignmentDiff{
			PartitionID: assignment.ID,
			Old:         assignment,
			New:         assignment,
		}
	}

	for _, assignment := range desired {
		currDiff, ok := diffsMap[assignment.ID]
		if !ok {
			diffsMap[assignment.ID] = AssignmentDiff{
				PartitionID: assignment.ID,
				New:         assignment,
			}
		} else {
			diffsMap[assignment.ID] = AssignmentDiff{
				PartitionID: assignment.ID,
				Old:         currDiff.Old,
				New:         assignment,
			}
		}
	}

	partitionIDs := []int{}
	for partitionID := range diffsMap {
		partitionIDs = append(partitionIDs, partitionID)
	}
	sort.Ints(partitionIDs)

	results := []AssignmentDiff{}

	for _, partitionID := range partitionIDs {
		results = append(results, diffsMap[partitionID])
	}

	return results
}
