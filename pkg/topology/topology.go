package topology

import (
	"fmt"
	"sort"
	"strings"

	"github.com/segmentio/topicspread/pkg/admin"
	"github.com/segmentio/topicspread/pkg/util"
)

// DefaultDimensions are the failure dimensions used when a cluster config doesn't
// specify its own.
var DefaultDimensions = []string{"updateDomain", "faultDomain"}

// Coordinate is the position of a broker in a single failure dimension. Sources that
// return numeric coordinates normalize them to their string form.
type Coordinate string

// BrokerCoordinates is the raw topology entry for a single broker, as returned by
// a Source. Coordinates holds one value per dimension, in dimension order.
type BrokerCoordinates struct {
	ID          int          `json:"id"`
	Group       string       `json:"group"`
	Coordinates []Coordinate `json:"coordinates"`
}

// ConfigurationError is returned when the topology is inconsistent with itself or
// with the replica assignments that it's being applied to.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("Invalid topology configuration: %s", e.Message)
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// Topology maps each broker in a cluster to its coordinates in every failure
// dimension. It's read-only after construction.
type Topology struct {
	dimensions []string
	brokers    map[int]BrokerCoordinates
	brokerIDs  []int
	group      string
}

// NewTopology validates the argument broker entries and returns a Topology for them.
func NewTopology(
	dimensions []string,
	brokers []BrokerCoordinates,
) (*Topology, error) {
	if len(dimensions) == 0 {
		return nil, configErrorf("at least one dimension is required")
	}
	seenDimensions := map[string]struct{}{}
	for _, dimension := range dimensions {
		if dimension == "" {
			return nil, configErrorf("dimension names cannot be blank")
		}
		if _, ok := seenDimensions[dimension]; ok {
			return nil, configErrorf("dimension %s is repeated", dimension)
		}
		seenDimensions[dimension] = struct{}{}
	}
	if len(brokers) == 0 {
		return nil, configErrorf("topology has no brokers")
	}

	topo := &Topology{
		dimensions: append([]string{}, dimensions...),
		brokers:    map[int]BrokerCoordinates{},
		brokerIDs:  []int{},
		group:      brokers[0].Group,
	}

	for _, broker := range brokers {
		if broker.ID < 0 {
			return nil, configErrorf("broker ID %d is negative", broker.ID)
		}
		if _, ok := topo.brokers[broker.ID]; ok {
			return nil, configErrorf("broker %d appears more than once", broker.ID)
		}
		if len(broker.Coordinates) != len(dimensions) {
			return nil, configErrorf(
				"broker %d has %d coordinates, expected one for each of [%s]",
				broker.ID,
				len(broker.Coordinates),
				strings.Join(dimensions, ", "),
			)
		}
		if broker.Group != topo.group {
			return nil, configErrorf(
				"all brokers must reside in one group; broker %d is in %q, not %q",
				broker.ID,
				broker.Group,
				topo.group,
			)
		}

		topo.brokers[broker.ID] = BrokerCoordinates{
			ID:          broker.ID,
			Group:       broker.Group,
			Coordinates: append([]Coordinate{}, broker.Coordinates...),
		}
		topo.brokerIDs = append(topo.brokerIDs, broker.ID)
	}

	sort.Ints(topo.brokerIDs)
	return topo, nil
}

// Dimensions returns the names of the failure dimensions, in coordinate order.
func (t *Topology) Dimensions() []string {
	return append([]string{}, t.dimensions...)
}

// BrokerIDs returns the IDs of all brokers in the topology, in ascending order.
func (t *Topology) BrokerIDs() []int {
	return append([]int{}, t.brokerIDs...)
}

// Group returns the grouping identifier shared by all brokers.
func (t *Topology) Group() string {
	return t.group
}

// Has returns whether the argument broker is in the topology.
func (t *Topology) Has(brokerID int) bool {
	_, ok := t.brokers[brokerID]
	return ok
}

// Coordinate returns the coordinate of a broker in the argument dimension. The second
// return value is false if either the broker or the dimension is unknown.
func (t *Topology) Coordinate(brokerID int, dimension string) (Coordinate, bool) {
	broker, ok := t.brokers[brokerID]
	if !ok {
		return "", false
	}
	for d, name := range t.dimensions {
		if name == dimension {
			return broker.Coordinates[d], true
		}
	}
	return "", false
}

// Coordinates returns all of the coordinates of a broker, in dimension order, or nil if
// the broker is unknown.
func (t *Topology) Coordinates(brokerID int) []Coordinate {
	broker, ok := t.brokers[brokerID]
	if !ok {
		return nil
	}
	return append([]Coordinate{}, broker.Coordinates...)
}

// DistinctCoordinates returns the sorted, distinct values seen in the argument
// dimension.
func (t *Topology) DistinctCoordinates(dimension string) []Coordinate {
	seen := map[string]struct{}{}

	for _, brokerID := range t.brokerIDs {
		if coordinate, ok := t.Coordinate(brokerID, dimension); ok {
			seen[string(coordinate)] = struct{}{}
		}
	}

	coordinates := []Coordinate{}
	for _, value := range util.SortedStrings(seen) {
		coordinates = append(coordinates, Coordinate(value))
	}
	return coordinates
}

// CheckReplicas verifies that every replica in the argument assignments is hosted on
// a broker that's in the topology.
func (t *Topology) CheckReplicas(assignments []admin.PartitionAssignment) error {
	for _, assignment := range assignments {
		for _, replica := range assignment.Replicas {
			if !t.Has(replica) {
				return configErrorf(
					"partition %d has a replica on broker %d, which is not in the topology",
					assignment.ID,
					replica,
				)
			}
		}
	}
	return nil
}

// Brokers returns the entries for all brokers, ordered by ID.
func (t *Topology) Brokers() []BrokerCoordinates {
	brokers := []BrokerCoordinates{}
	for _, brokerID := range t.brokerIDs {
		broker := t.brokers[brokerID]
		brokers = append(
			brokers,
			BrokerCoordinates{
				ID:          broker.ID,
				Group:       broker.Group,
				Coordinates: append([]Coordinate{}, broker.Coordinates...),
			},
		)
	}
	return brokers
}

// Label returns a compact description of a broker's coordinates, e.g. "1/0".
func (t *Topology) Label(brokerID int) string {
	coordinates := t.Coordinates(brokerID)
	if coordinates == nil {
		return "?"
	}

	values := []string{}
	for _, coordinate := range coordinates {
		values = append(values, string(coordinate))
	}
	return strings.Join(values, "/")
}
