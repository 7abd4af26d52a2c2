package topology

import (
	"errors"
	"testing"

	"github.com/segmentio/topicspread/pkg/admin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBrokers() []BrokerCoordinates {
	return []BrokerCoordinates{
		{
			ID:          3,
			Group:       "set1",
			Coordinates: []Coordinate{"0", "1"},
		},
		{
			ID:          1,
			Group:       "set1",
			Coordinates: []Coordinate{"1", "1"},
		},
		{
			ID:          2,
			Group:       "set1",
			Coordinates: []Coordinate{"2", "2"},
		},
		{
			ID:          0,
			Group:       "set1",
			Coordinates: []Coordinate{"0", "0"},
		},
	}
}

func TestTopologyAccessors(t *testing.T) {
	topo, err := NewTopology(DefaultDimensions, testBrokers())
	require.NoError(t, err)

	assert.Equal(t, []string{"updateDomain", "faultDomain"}, topo.Dimensions())
	assert.Equal(t, []int{0, 1, 2, 3}, topo.BrokerIDs())
	assert.Equal(t, "set1", topo.Group())
	assert.True(t, topo.Has(2))
	assert.False(t, topo.Has(4))

	coordinate, ok := topo.Coordinate(3, "faultDomain")
	assert.True(t, ok)
	assert.Equal(t, Coordinate("1"), coordinate)
	_, ok = topo.Coordinate(3, "rack")
	assert.False(t, ok)
	_, ok = topo.Coordinate(5, "faultDomain")
	assert.False(t, ok)

	assert.Equal(t, []Coordinate{"2", "2"}, topo.Coordinates(2))
	assert.Nil(t, topo.Coordinates(5))
	assert.Equal(t, "0/1", topo.Label(3))
	assert.Equal(t, "?", topo.Label(5))

	assert.Equal(t, []Coordinate{"0", "1", "2"}, topo.DistinctCoordinates("updateDomain"))
	assert.Equal(t, []Coordinate{"0", "1", "2"}, topo.DistinctCoordinates("faultDomain"))
	assert.Empty(t, topo.DistinctCoordinates("rack"))

	brokers := topo.Brokers()
	assert.Equal(t, 0, brokers[0].ID)
	// Returned slices are copies
	brokers[0].Coordinates[0] = "9"
	assert.Equal(t, []Coordinate{"0", "0"}, topo.Coordinates(0))
}

func TestNewTopologyErrors(t *testing.T) {
	type testCase struct {
		description string
		dimensions  []string
		brokers     []BrokerCoordinates
	}

	testCases := []testCase{
		{
			description: "no dimensions",
			dimensions:  []string{},
			brokers:     testBrokers(),
		},
		{
			description: "repeated dimension",
			dimensions:  []string{"updateDomain", "updateDomain"},
			brokers:     testBrokers(),
		},
		{
			description: "no brokers",
			dimensions:  DefaultDimensions,
			brokers:     []BrokerCoordinates{},
		},
		{
			description: "wrong coordinate count",
			dimensions:  DefaultDimensions,
			brokers: []BrokerCoordinates{
				{
					ID:          0,
					Coordinates: []Coordinate{"0"},
				},
			},
		},
		{
			description: "repeated broker",
			dimensions:  DefaultDimensions,
			brokers: []BrokerCoordinates{
				{
					ID:          0,
					Coordinates: []Coordinate{"0", "0"},
				},
				{
					ID:          0,
					Coordinates: []Coordinate{"1", "1"},
				},
			},
		},
		{
			description: "negative broker",
			dimensions:  DefaultDimensions,
			brokers: []BrokerCoordinates{
				{
					ID:          -1,
					Coordinates: []Coordinate{"0", "0"},
				},
			},
		},
		{
			description: "mixed groups",
			dimensions:  DefaultDimensions,
			brokers: []BrokerCoordinates{
				{
					ID:          0,
					Group:       "set-a",
					Coordinates: []Coordinate{"0", "0"},
				},
				{
					ID:          1,
					Group:       "set-b",
					Coordinates: []Coordinate{"1", "1"},
				},
			},
		},
	}

	for _, testCase := range testCases {
		_, err := NewTopology(testCase.dimensions, testCase.brokers)
		configErr := &ConfigurationError{}
		assert.True(t, errors.As(err, &configErr), testCase.description)
	}
}

func TestCheckReplicas(t *testing.T) {
	topo, err := NewTopology(DefaultDimensions, testBrokers())
	require.NoError(t, err)

	assert.NoError(
		t,
		topo.CheckReplicas(
			admin.ReplicasToAssignments(
				[][]int{
					{0, 1, 2},
					{3, 2, 1},
				},
			),
		),
	)

	err = topo.CheckReplicas(
		admin.ReplicasToAssignments(
			[][]int{
				{0, 1, 2},
				{3, 7, 1},
			},
		),
	)
	configErr := &ConfigurationError{}
	require.True(t, errors.As(err, &configErr))
	assert.Contains(t, err.Error(), "partition 1")
	assert.Contains(t, err.Error(), "broker 7")
}

func TestFormatTopology(t *testing.T) {
	topo, err := NewTopology(DefaultDimensions, testBrokers())
	require.NoError(t, err)

	result := FormatTopology(topo, map[int]int{0: 3, 2: 1})
	assert.Contains(t, result, "updateDomain")
	assert.Contains(t, result, "Replicas")
	assert.Contains(t, result, "set1")

	result = FormatTopology(topo, nil)
	assert.NotContains(t, result, "Replicas")
}
