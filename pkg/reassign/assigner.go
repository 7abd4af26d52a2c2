package reassign

import (
	"github.com/segmentio/topicspread/pkg/admin"
	"github.com/segmentio/topicspread/pkg/load"
	"github.com/segmentio/topicspread/pkg/topology"
)

// Assigner is an interface for structs that figure out how to
// reassign replicas in existing topic partitions.
type Assigner interface {
	Assign(
		topic string,
		currAssignments []admin.PartitionAssignment,
	) ([]admin.PartitionAssignment, error)
}

// DomainAssigner is an Assigner that repairs partitions whose replicas share a domain,
// using a fresh load tracker for every call.
type DomainAssigner struct {
	topo *topology.Topology
}

var _ Assigner = (*DomainAssigner)(nil)

// NewDomainAssigner returns a new DomainAssigner instance.
func NewDomainAssigner(topo *topology.Topology) *DomainAssigner {
	return &DomainAssigner{topo: topo}
}

// Assign returns the full set of desired assignments for the argument topic; partitions
// that don't need to change keep their current replicas.
func (d *DomainAssigner) Assign(
	topic string,
	curr []admin.PartitionAssignment,
) ([]admin.PartitionAssignment, error) {
	tracker := load.NewTracker(d.topo.BrokerIDs(), curr)

	result, err := Reassign(d.topo, topic, curr, tracker)
	if err != nil {
		return nil, err
	}

	desired := admin.CopyAssignments(curr)
	if result == nil {
		return desired, nil
	}

	updates := map[int][]int{}
	for _, assignment := range result.Assignments(topic) {
		updates[assignment.ID] = assignment.Replicas
	}
	for a, assignment := range desired {
		if replicas, ok := updates[assignment.ID]; ok {
			desired[a].Replicas = replicas
		}
	}

	return desired, nil
}
