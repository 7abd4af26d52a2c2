package load

import (
	"testing"

	"github.com/segmentio/topicspread/pkg/admin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTracker(t *testing.T) {
	type testCase struct {
		description string
		brokerIDs   []int
		replicas    [][]int
		expCounts   map[int]int
		expOrder    []int
	}

	testCases := []testCase{
		{
			description: "no partitions",
			brokerIDs:   []int{3, 1, 2},
			replicas:    [][]int{},
			expCounts:   map[int]int{1: 0, 2: 0, 3: 0},
			expOrder:    []int{1, 2, 3},
		},
		{
			description: "ties keep broker ID order",
			brokerIDs:   []int{0, 1, 2, 3},
			replicas: [][]int{
				{0, 1, 2},
				{3, 2, 1},
			},
			expCounts: map[int]int{0: 1, 1: 2, 2: 2, 3: 1},
			expOrder:  []int{0, 3, 1, 2},
		},
		{
			description: "non-contiguous IDs",
			brokerIDs:   []int{1003, 1001, 1002},
			replicas: [][]int{
				{1001, 1002},
				{1001, 1003},
			},
			expCounts: map[int]int{1001: 2, 1002: 1, 1003: 1},
			expOrder:  []int{1002, 1003, 1001},
		},
	}

	for _, testCase := range testCases {
		tracker := NewTracker(
			testCase.brokerIDs,
			admin.ReplicasToAssignments(testCase.replicas),
		)
		assert.Equal(t, testCase.expCounts, tracker.Counts(), testCase.description)
		assert.Equal(
			t,
			testCase.expOrder,
			tracker.BrokersByAscendingLoad(),
			testCase.description,
		)
	}
}

func TestTrackerMutations(t *testing.T) {
	tracker := NewTracker(
		[]int{0, 1, 2, 3},
		admin.ReplicasToAssignments(
			[][]int{
				{0, 1, 2},
				{1, 2, 0},
			},
		),
	)
	assert.Equal(t, []int{3, 0, 1, 2}, tracker.BrokersByAscendingLoad())
	assert.Equal(t, 6, tracker.Total())

	require.NoError(t, tracker.Move(1, 3))
	assert.Equal(t, 1, tracker.Count(1))
	assert.Equal(t, 1, tracker.Count(3))
	// 3 and 1 are tied at 1; 3 was ahead of 1 before the move
	assert.Equal(t, []int{3, 1, 0, 2}, tracker.BrokersByAscendingLoad())
	assert.Equal(t, 6, tracker.Total())

	require.NoError(t, tracker.Increment(3))
	assert.Equal(t, []int{1, 3, 0, 2}, tracker.BrokersByAscendingLoad())

	require.NoError(t, tracker.Decrement(2))
	assert.Equal(t, []int{1, 2, 3, 0}, tracker.BrokersByAscendingLoad())
	assert.Equal(t, 6, tracker.Total())

	assert.Error(t, tracker.Increment(9))
	assert.Error(t, tracker.Move(9, 1))
	assert.Error(t, tracker.Move(1, 9))

	require.NoError(t, tracker.Decrement(1))
	assert.Error(t, tracker.Decrement(1))
	assert.Error(t, tracker.Move(1, 0))
}

func TestTrackerCopies(t *testing.T) {
	tracker := NewTracker([]int{0, 1}, nil)

	ordered := tracker.BrokersByAscendingLoad()
	ordered[0] = 5
	assert.Equal(t, []int{0, 1}, tracker.BrokersByAscendingLoad())

	counts := tracker.Counts()
	counts[0] = 5
	assert.Equal(t, 0, tracker.Count(0))
}
