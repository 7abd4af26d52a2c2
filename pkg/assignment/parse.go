package assignment

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/segmentio/topicspread/pkg/admin"
)

var (
	topicRegexp             = regexp.MustCompile(`(?:^|\s)Topic: *(\S+)`)
	partitionCountRegexp    = regexp.MustCompile(`(?:^|\s)PartitionCount: *(\S+)`)
	replicationFactorRegexp = regexp.MustCompile(
		`(?:^|\s)(?:ReplicationFactor|ReplicaAssignment): *(\S+)`,
	)
	partitionRegexp = regexp.MustCompile(`(?:^|\s)Partition: *(\S+)`)
	replicasRegexp  = regexp.MustCompile(`(?:^|\s)Replicas: *(\S*)`)
)

// ParseDescribe parses the output of kafka-topics.sh --describe for a single topic, e.g.
//
//	Topic:my-topic	PartitionCount:2	ReplicationFactor:2	Configs:
//		Topic: my-topic	Partition: 0	Leader: 1	Replicas: 1,2	Isr: 1,2
//		Topic: my-topic	Partition: 1	Leader: 2	Replicas: 2,3	Isr: 2,3
//
// The first non-blank line must be the summary and every following non-blank line must
// describe exactly one partition. Every partition in [0, PartitionCount) must be described
// exactly once. Malformed input returns a *ParseError and replica counts above
// maxReplicas return a *CapacityError.
func ParseDescribe(text string, maxReplicas int) (TopicAssignment, error) {
	if maxReplicas <= 0 {
		maxReplicas = DefaultMaxReplicas
	}
	if strings.TrimSpace(text) == "" {
		return TopicAssignment{}, &ParseError{Reason: "input is empty"}
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	l := 0
	for ; l < len(lines) && strings.TrimSpace(lines[l]) == ""; l++ {
	}

	result, partitionCount, err := parseSummary(l+1, lines[l], maxReplicas)
	if err != nil {
		return TopicAssignment{}, err
	}

	// Each partition takes one line, so the count is bounded before anything is allocated.
	dataLines := 0
	for _, line := range lines[l+1:] {
		if strings.TrimSpace(line) != "" {
			dataLines++
		}
	}
	if partitionCount > dataLines {
		return TopicAssignment{}, &ParseError{
			LineNumber: l + 1,
			Line:       lines[l],
			Reason: "PartitionCount " + strconv.Itoa(partitionCount) +
				" is more than the " + strconv.Itoa(dataLines) + " partition lines",
		}
	}

	result.Partitions = make([]admin.PartitionAssignment, partitionCount)
	partitions := make([]*admin.PartitionAssignment, partitionCount)

	for l = l + 1; l < len(lines); l++ {
		line := lines[l]
		if strings.TrimSpace(line) == "" {
			continue
		}

		partition, err := parsePartitionLine(l+1, line, result, maxReplicas)
		if err != nil {
			return TopicAssignment{}, err
		}
		if partitions[partition.ID] != nil {
			return TopicAssignment{}, &ParseError{
				LineNumber: l + 1,
				Line:       line,
				Reason:     "partition is described more than once",
			}
		}
		partitions[partition.ID] = &partition
	}

	for p, partition := range partitions {
		if partition == nil {
			return TopicAssignment{}, &ParseError{
				Reason: "partition " + strconv.Itoa(p) + " is not described",
			}
		}
		result.Partitions[p] = *partition
	}

	return result, nil
}

func parseSummary(
	lineNumber int,
	line string,
	maxReplicas int,
) (TopicAssignment, int, error) {
	lineErr := func(reason string) error {
		return &ParseError{LineNumber: lineNumber, Line: line, Reason: reason}
	}

	if partitionRegexp.MatchString(line) {
		return TopicAssignment{}, 0, lineErr("expected a summary line, got a partition line")
	}

	topicMatch := topicRegexp.FindStringSubmatch(line)
	if topicMatch == nil {
		return TopicAssignment{}, 0, lineErr("summary line has no Topic field")
	}

	partitionCountMatch := partitionCountRegexp.FindStringSubmatch(line)
	if partitionCountMatch == nil {
		return TopicAssignment{}, 0, lineErr("summary line has no PartitionCount field")
	}
	partitionCount, err := strconv.Atoi(partitionCountMatch[1])
	if err != nil || partitionCount < 0 {
		return TopicAssignment{}, 0, lineErr(
			"PartitionCount " + strconv.Quote(partitionCountMatch[1]) +
				" is not a non-negative integer",
		)
	}

	replicationFactorMatch := replicationFactorRegexp.FindStringSubmatch(line)
	if replicationFactorMatch == nil {
		return TopicAssignment{}, 0, lineErr("summary line has no ReplicationFactor field")
	}
	replicationFactor, err := strconv.Atoi(replicationFactorMatch[1])
	if err != nil || replicationFactor <= 0 {
		return TopicAssignment{}, 0, lineErr(
			"ReplicationFactor " + strconv.Quote(replicationFactorMatch[1]) +
				" is not a positive integer",
		)
	}
	if replicationFactor > maxReplicas {
		return TopicAssignment{}, 0, &CapacityError{
			Declared:  replicationFactor,
			Max:       maxReplicas,
			Partition: -1,
		}
	}

	return TopicAssignment{
		Topic:             topicMatch[1],
		ReplicationFactor: replicationFactor,
	}, partitionCount, nil
}

func parsePartitionLine(
	lineNumber int,
	line string,
	topic TopicAssignment,
	maxReplicas int,
) (admin.PartitionAssignment, error) {
	lineErr := func(reason string) error {
		return &ParseError{LineNumber: lineNumber, Line: line, Reason: reason}
	}

	if topicMatch := topicRegexp.FindStringSubmatch(line); topicMatch != nil &&
		topicMatch[1] != topic.Topic {
		return admin.PartitionAssignment{}, lineErr(
			"line is for topic " + topicMatch[1] + ", not " + topic.Topic,
		)
	}

	partitionMatch := partitionRegexp.FindStringSubmatch(line)
	if partitionMatch == nil {
		return admin.PartitionAssignment{}, lineErr("line has no Partition field")
	}
	partitionID, err := strconv.Atoi(partitionMatch[1])
	if err != nil {
		return admin.PartitionAssignment{}, lineErr(
			"Partition " + strconv.Quote(partitionMatch[1]) + " is not an integer",
		)
	}
	if partitionID < 0 || partitionID >= topic.PartitionCount() {
		return admin.PartitionAssignment{}, lineErr(
			"Partition " + partitionMatch[1] + " is outside of [0, " +
				strconv.Itoa(topic.PartitionCount()) + ")",
		)
	}

	replicasMatch := replicasRegexp.FindStringSubmatch(line)
	if replicasMatch == nil {
		return admin.PartitionAssignment{}, lineErr("line has no Replicas field")
	}
	if replicasMatch[1] == "" {
		return admin.PartitionAssignment{}, lineErr("Replicas field is empty")
	}

	replicas := []int{}
	seen := map[int]struct{}{}

	for _, element := range strings.Split(replicasMatch[1], ",") {
		replica, err := strconv.Atoi(element)
		if err != nil || replica < 0 {
			return admin.PartitionAssignment{}, lineErr(
				"replica " + strconv.Quote(element) + " is not a non-negative integer",
			)
		}
		if _, ok := seen[replica]; ok {
			return admin.PartitionAssignment{}, lineErr(
				"replica " + element + " is repeated",
			)
		}
		seen[replica] = struct{}{}
		replicas = append(replicas, replica)
	}

	if len(replicas) > maxReplicas {
		return admin.PartitionAssignment{}, &CapacityError{
			Declared:  len(replicas),
			Max:       maxReplicas,
			Partition: partitionID,
		}
	}

	return admin.PartitionAssignment{
		ID:       partitionID,
		Replicas: replicas,
	}, nil
}
