package reassign

import (
	"fmt"
	"sort"

	"github.com/segmentio/topicspread/pkg/admin"
	"github.com/segmentio/topicspread/pkg/load"
	"github.com/segmentio/topicspread/pkg/plan"
	"github.com/segmentio/topicspread/pkg/topology"
	"github.com/segmentio/topicspread/pkg/util"
	log "github.com/sirupsen/logrus"
)

// InfeasibleAssignmentError is returned when no broker in the topology can host a replica
// without sharing a domain with the replicas placed before it.
type InfeasibleAssignmentError struct {
	Topic     string
	Partition int

	// Broker is the replica that couldn't be replaced and Position is its index in the
	// partition's replica list.
	Broker   int
	Position int
}

func (e *InfeasibleAssignmentError) Error() string {
	return fmt.Sprintf(
		"Cannot reassign replica %d at position %d of partition %d in topic %s: every broker shares a domain with an earlier replica",
		e.Broker,
		e.Position,
		e.Partition,
		e.Topic,
	)
}

// Reassign scans the argument partitions in ascending ID order and returns a plan that
// spreads the replicas of each one across distinct domains in every topology dimension.
//
// Within a partition, the leader is never moved. Each following replica is checked, left
// to right, against the domains claimed by the replicas before it; a replica that shares
// any domain is replaced by the least-loaded broker (per the tracker) that shares none.
// The tracker is updated after every replacement.
//
// A nil plan and nil error mean that no partition needs to change. On error, no plan is
// returned, and the tracker may reflect replacements in partitions before the failing
// one.
func Reassign(
	topo *topology.Topology,
	topic string,
	partitions []admin.PartitionAssignment,
	tracker *load.Tracker,
) (*plan.Plan, error) {
	if err := topo.CheckReplicas(partitions); err != nil {
		return nil, err
	}

	sorted := admin.CopyAssignments(partitions)
	sort.Slice(sorted, func(a, b int) bool {
		return sorted[a].ID < sorted[b].ID
	})

	result := plan.New()

	for _, partition := range sorted {
		replicas, changed, err := repairPartition(topo, topic, partition, tracker)
		if err != nil {
			return nil, err
		}
		if changed {
			result.Append(topic, partition.ID, replicas)
		}
	}

	if result.Len() == 0 {
		return nil, nil
	}
	return result, nil
}

func repairPartition(
	topo *topology.Topology,
	topic string,
	partition admin.PartitionAssignment,
	tracker *load.Tracker,
) ([]int, bool, error) {
	replicas := util.CopyInts(partition.Replicas)
	if len(replicas) == 0 {
		return replicas, false, nil
	}

	occupied := newOccupancy(topo)
	occupied.add(replicas[0])

	changed := false

	for r := 1; r < len(replicas); r++ {
		broker := replicas[r]

		if occupied.conflicts(broker) {
			replacement := -1
			for _, candidate := range tracker.BrokersByAscendingLoad() {
				if !occupied.conflicts(candidate) {
					replacement = candidate
					break
				}
			}
			if replacement == -1 {
				return nil, false, &InfeasibleAssignmentError{
					Topic:     topic,
					Partition: partition.ID,
					Broker:    broker,
					Position:  r,
				}
			}

			log.Infof(
				"Reassigning partition: %d, broker %d to %d (topic %s)",
				partition.ID,
				broker,
				replacement,
				topic,
			)
			if err := tracker.Move(broker, replacement); err != nil {
				return nil, false, err
			}

			replicas[r] = replacement
			changed = true
		}

		occupied.add(replicas[r])
	}

	return replicas, changed, nil
}

// occupancy holds the coordinates claimed so far in each dimension, in dimension order.
type occupancy struct {
	topo    *topology.Topology
	claimed []map[topology.Coordinate]struct{}
}

func newOccupancy(topo *topology.Topology) occupancy {
	claimed := make([]map[topology.Coordinate]struct{}, len(topo.Dimensions()))
	for d := range claimed {
		claimed[d] = map[topology.Coordinate]struct{}{}
	}
	return occupancy{topo: topo, claimed: claimed}
}

func (o occupancy) add(brokerID int) {
	for d, coordinate := range o.topo.Coordinates(brokerID) {
		o.claimed[d][coordinate] = struct{}{}
	}
}

// conflicts also returns true for brokers outside of the topology, so that they're never
// picked as replacements.
func (o occupancy) conflicts(brokerID int) bool {
	if !o.topo.Has(brokerID) {
		return true
	}
	for d, coordinate := range o.topo.Coordinates(brokerID) {
		if _, ok := o.claimed[d][coordinate]; ok {
			return true
		}
	}
	return false
}
