package topology

import (
	"context"
	"fmt"
	"strings"

	"github.com/segmentio/topicspread/pkg/admin"
)

const defaultRackSeparator = "/"

// RackSource derives broker coordinates from the broker.rack setting of each broker,
// e.g. a rack of "ud1/fd0" gives an update domain of "ud1" and a fault domain of "fd0".
// The cluster ID is used as the group of every broker.
type RackSource struct {
	Client admin.Client

	// Separator splits a rack into coordinates; defaults to "/".
	Separator string

	// Dimensions is the number of coordinates each rack must contain.
	Dimensions int
}

var _ Source = (*RackSource)(nil)

// Brokers fetches the brokers from the cluster and parses their racks.
func (s *RackSource) Brokers(ctx context.Context) ([]BrokerCoordinates, error) {
	clusterID, err := s.Client.GetClusterID(ctx)
	if err != nil {
		return nil, fmt.Errorf("Error getting cluster ID: %w", err)
	}
	brokers, err := s.Client.GetBrokers(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Error getting brokers: %w", err)
	}

	return RackCoordinates(brokers, clusterID, s.Separator, s.Dimensions)
}

// RackCoordinates converts the racks of the argument brokers into topology entries.
func RackCoordinates(
	brokers []admin.BrokerInfo,
	group string,
	separator string,
	dimensions int,
) ([]BrokerCoordinates, error) {
	if separator == "" {
		separator = defaultRackSeparator
	}
	if dimensions <= 0 {
		dimensions = len(DefaultDimensions)
	}

	results := []BrokerCoordinates{}
	racks := admin.BrokerRacks(brokers)

	for _, brokerID := range admin.BrokerIDs(brokers) {
		rack := racks[brokerID]
		if rack == "" {
			return nil, configErrorf("broker %d does not have a rack", brokerID)
		}

		elements := strings.Split(rack, separator)
		if len(elements) != dimensions {
			return nil, configErrorf(
				"rack %q of broker %d does not have %d elements separated by %q",
				rack,
				brokerID,
				dimensions,
				separator,
			)
		}

		coordinates := []Coordinate{}
		for _, element := range elements {
			trimmed := strings.TrimSpace(element)
			if trimmed == "" {
				return nil, configErrorf(
					"rack %q of broker %d has a blank element",
					rack,
					brokerID,
				)
			}
			coordinates = append(coordinates, Coordinate(trimmed))
		}

		results = append(
			results,
			BrokerCoordinates{
				ID:          brokerID,
				Group:       group,
				Coordinates: coordinates,
			},
		)
	}

	return results, nil
}
