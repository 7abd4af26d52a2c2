package load

import (
	"fmt"
	"sort"

	"github.com/segmentio/topicspread/pkg/admin"
)

// Tracker keeps the number of replicas hosted by each broker, along with an ordering of
// the brokers from least to most loaded. The ordering is re-sorted after every change,
// stably from the previous ordering, so brokers with equal counts keep their relative
// positions. The initial ordering is by broker ID.
type Tracker struct {
	counts  map[int]int
	ordered []int
}

// NewTracker creates a Tracker for the argument brokers, counting one replica for each
// appearance of a broker in the replicas of the argument partitions. Leaders and followers
// count the same.
func NewTracker(brokerIDs []int, partitions []admin.PartitionAssignment) *Tracker {
	tracker := &Tracker{
		counts:  map[int]int{},
		ordered: []int{},
	}

	for _, brokerID := range brokerIDs {
		if _, ok := tracker.counts[brokerID]; ok {
			continue
		}
		tracker.counts[brokerID] = 0
		tracker.ordered = append(tracker.ordered, brokerID)
	}
	sort.Ints(tracker.ordered)

	for _, partition := range partitions {
		for _, replica := range partition.Replicas {
			if _, ok := tracker.counts[replica]; !ok {
				tracker.counts[replica] = 0
				tracker.ordered = append(tracker.ordered, replica)
				sort.Ints(tracker.ordered)
			}
			tracker.counts[replica]++
		}
	}

	tracker.resort()
	return tracker
}

// Increment adds one replica to the argument broker.
func (t *Tracker) Increment(brokerID int) error {
	if err := t.check(brokerID); err != nil {
		return err
	}
	t.counts[brokerID]++
	t.resort()
	return nil
}

// Decrement removes one replica from the argument broker.
func (t *Tracker) Decrement(brokerID int) error {
	if err := t.check(brokerID); err != nil {
		return err
	}
	if t.counts[brokerID] == 0 {
		return fmt.Errorf("Broker %d has no replicas to remove", brokerID)
	}
	t.counts[brokerID]--
	t.resort()
	return nil
}

// Move records that a replica moved from one broker to another.
func (t *Tracker) Move(from int, to int) error {
	if err := t.check(from); err != nil {
		return err
	}
	if err := t.check(to); err != nil {
		return err
	}
	if t.counts[from] == 0 {
		return fmt.Errorf("Broker %d has no replicas to move", from)
	}

	t.counts[from]--
	t.counts[to]++
	t.resort()
	return nil
}

// Count returns the number of replicas on the argument broker.
func (t *Tracker) Count(brokerID int) int {
	return t.counts[brokerID]
}

// Counts returns a copy of the broker ID -> replica count mapping.
func (t *Tracker) Counts() map[int]int {
	counts := map[int]int{}
	for brokerID, count := range t.counts {
		counts[brokerID] = count
	}
	return counts
}

// Total returns the number of replicas across all brokers.
func (t *Tracker) Total() int {
	total := 0
	for _, count := range t.counts {
		total += count
	}
	return total
}

// BrokersByAscendingLoad returns the broker IDs from least to most loaded.
func (t *Tracker) BrokersByAscendingLoad() []int {
	return append([]int{}, t.ordered...)
}

func (t *Tracker) check(brokerID int) error {
	if _, ok := t.counts[brokerID]; !ok {
		return fmt.Errorf("Broker %d is not tracked", brokerID)
	}
	return nil
}

func (t *Tracker) resort() {
	sort.SliceStable(t.ordered, func(a, b int) bool {
		return t.counts[t.ordered[a]] < t.counts[t.ordered[b]]
	})
}
