package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"sort"

	"github.com/segmentio/topicspread/pkg/admin"
	log "github.com/sirupsen/logrus"
)

const (
	// CurrentVersion is the version of the reassignment JSON format understood by
	// kafka-reassign-partitions.sh.
	CurrentVersion = 1

	// DefaultPath is where plans are written if no path is configured.
	DefaultPath = admin.DefaultPlanPath
)

// PartitionReassignment is the desired replica list for a single partition.
type PartitionReassignment struct {
	Topic     string `json:"topic"`
	Partition int    `json:"partition"`
	Replicas  []int  `json:"replicas"`
}

// Plan is a set of partition reassignments in the format used by
// kafka-reassign-partitions.sh and the /admin/reassign_partitions znode.
//
// A Plan should never be empty; when no partitions need to be changed, callers should
// use a nil plan instead.
type Plan struct {
	Partitions []PartitionReassignment `json:"partitions"`
	Version    int                     `json:"version"`
}

var _ admin.ReassignmentPlan = (*Plan)(nil)

// New returns a plan containing the argument reassignments.
func New(reassignments ...PartitionReassignment) *Plan {
	p := &Plan{
		Partitions: []PartitionReassignment{},
		Version:    CurrentVersion,
	}
	for _, reassignment := range reassignments {
		p.Append(reassignment.Topic, reassignment.Partition, reassignment.Replicas)
	}
	return p
}

// Append adds a reassignment to the plan. The replicas slice is copied.
func (p *Plan) Append(topic string, partition int, replicas []int) {
	p.Partitions = append(
		p.Partitions,
		PartitionReassignment{
			Topic:     topic,
			Partition: partition,
			Replicas:  append([]int{}, replicas...),
		},
	)
}

// Len returns the number of reassigned partitions; it's safe to call on a nil plan.
func (p *Plan) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Partitions)
}

// Topics returns the sorted names of the topics in the plan.
func (p *Plan) Topics() []string {
	topicsMap := map[string]struct{}{}
	for _, partition := range p.Partitions {
		topicsMap[partition.Topic] = struct{}{}
	}

	topics := []string{}
	for topic := range topicsMap {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// Assignments returns the reassignments for the argument topic, sorted by partition.
func (p *Plan) Assignments(topic string) []admin.PartitionAssignment {
	assignments := []admin.PartitionAssignment{}

	for _, partition := range p.Partitions {
		if partition.Topic != topic {
			continue
		}
		assignments = append(
			assignments,
			admin.PartitionAssignment{
				ID:       partition.Partition,
				Replicas: append([]int{}, partition.Replicas...),
			},
		)
	}

	sort.Slice(assignments, func(a, b int) bool {
		return assignments[a].ID < assignments[b].ID
	})
	return assignments
}

// TopicAssignments returns the reassignments in the plan, keyed by topic.
func (p *Plan) TopicAssignments() map[string][]admin.PartitionAssignment {
	topicAssignments := map[string][]admin.PartitionAssignment{}
	for _, topic := range p.Topics() {
		topicAssignments[topic] = p.Assignments(topic)
	}
	return topicAssignments
}

// Validate checks that the plan is non-empty and well-formed.
func (p *Plan) Validate() error {
	if p == nil || len(p.Partitions) == 0 {
		return errors.New("Plan has no partitions")
	}
	if p.Version != CurrentVersion {
		return fmt.Errorf(
			"Plan version is %d, expected %d",
			p.Version,
			CurrentVersion,
		)
	}

	type topicPartition struct {
		topic     string
		partition int
	}
	seen := map[topicPartition]struct{}{}

	for _, partition := range p.Partitions {
		if partition.Topic == "" {
			return fmt.Errorf("Partition %d has no topic", partition.Partition)
		}
		if partition.Partition < 0 {
			return fmt.Errorf(
				"Topic %s has a negative partition (%d)",
				partition.Topic,
				partition.Partition,
			)
		}

		key := topicPartition{topic: partition.Topic, partition: partition.Partition}
		if _, ok := seen[key]; ok {
			return fmt.Errorf(
				"Partition %s/%d appears more than once",
				partition.Topic,
				partition.Partition,
			)
		}
		seen[key] = struct{}{}

		if len(partition.Replicas) == 0 {
			return fmt.Errorf(
				"Partition %s/%d has no replicas",
				partition.Topic,
				partition.Partition,
			)
		}

		replicas := map[int]struct{}{}
		for _, replica := range partition.Replicas {
			if replica < 0 {
				return fmt.Errorf(
					"Partition %s/%d has a negative replica (%d)",
					partition.Topic,
					partition.Partition,
					replica,
				)
			}
			if _, ok := replicas[replica]; ok {
				return fmt.Errorf(
					"Partition %s/%d has repeated replica %d",
					partition.Topic,
					partition.Partition,
					replica,
				)
			}
			replicas[replica] = struct{}{}
		}
	}

	return nil
}

// Marshal validates the plan and converts it to its compact JSON form.
func (p *Plan) Marshal() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(p)
}

// Pretty returns an indented JSON representation of the plan for display.
func (p *Plan) Pretty() string {
	content, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		log.Warnf("Error marshalling plan: %+v", err)
		return "Error"
	}
	return string(content)
}

// WriteFile writes the plan to the argument path, or DefaultPath if the path is empty.
// It returns the path that was written.
func (p *Plan) WriteFile(path string) (string, error) {
	if path == "" {
		path = DefaultPath
	}

	content, err := p.Marshal()
	if err != nil {
		return "", err
	}
	if err := ioutil.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("Error writing plan to %s: %w", path, err)
	}

	log.Debugf("Wrote plan with %d partitions to %s", p.Len(), path)
	return path, nil
}

// Unmarshal parses and validates a plan. Unknown fields are rejected.
func Unmarshal(content []byte) (*Plan, error) {
	decoder := json.NewDecoder(bytes.NewReader(content))
	decoder.DisallowUnknownFields()

	p := &Plan{}
	if err := decoder.Decode(p); err != nil {
		return nil, fmt.Errorf("Error parsing plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadFile reads, parses, and validates the plan at the argument path.
func ReadFile(path string) (*Plan, error) {
	content, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(content)
}
