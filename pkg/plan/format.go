package plan

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/segmentio/topicspread/pkg/admin"
	"github.com/segmentio/topicspread/pkg/assignment"
	"github.com/segmentio/topicspread/pkg/topology"
	"github.com/segmentio/topicspread/pkg/util"
)

// FormatPlanDiff generates a pretty table that shows the before and after states of
// every partition of the argument topic that the plan changes. Each replica is shown
// with its topology coordinates.
func FormatPlanDiff(
	curr assignment.TopicAssignment,
	p *Plan,
	topo *topology.Topology,
) string {
	buf := &bytes.Buffer{}

	table := newTable(
		buf,
		[]string{
			"Partition",
			"Curr\nReplicas",
			"Proposed\nReplicas",
			"Moves",
		},
	)

	maxWidth := 1
	for _, brokerID := range topo.BrokerIDs() {
		maxWidth = maxInt(maxWidth, maxValueToMaxWidth(brokerID))
	}

	for _, diff := range admin.AssignmentDiffs(curr.Partitions, p.Assignments(curr.Topic)) {
		if !diff.Changed() {
			continue
		}

		table.Append(
			[]string{
				fmt.Sprintf("%d", diff.PartitionID),
				replicasStr(diff.Old, topo, maxWidth),
				replicasDiffStr(diff.Old, diff.New, topo, maxWidth),
				fmt.Sprintf("%d", diff.Moves()),
			},
		)
	}

	table.Render()
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// FormatLoadDiff generates a pretty table that shows the number of replicas on each
// broker before and after a plan is applied.
func FormatLoadDiff(before map[int]int, after map[int]int) string {
	buf := &bytes.Buffer{}

	table := newTable(
		buf,
		[]string{
			"Broker",
			"Curr\nReplicas",
			"Proposed\nReplicas",
		},
	)

	brokerIDsMap := map[int]int{}
	maxCount := 0
	for brokerID, count := range before {
		brokerIDsMap[brokerID] = 0
		maxCount = maxInt(maxCount, count)
	}
	for brokerID, count := range after {
		brokerIDsMap[brokerID] = 0
		maxCount = maxInt(maxCount, count)
	}
	maxCountWidth := maxValueToMaxWidth(maxCount)

	for _, brokerID := range util.SortedKeys(brokerIDsMap) {
		table.Append(
			[]string{
				fmt.Sprintf("%d", brokerID),
				fmt.Sprintf("%d", before[brokerID]),
				fmt.Sprintf(
					"%*d%s",
					maxCountWidth,
					after[brokerID],
					countDiffStr(after[brokerID]-before[brokerID]),
				),
			},
		)
	}

	table.Render()
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

func newTable(buf *bytes.Buffer, headers []string) *tablewriter.Table {
	alignments := []int{}
	for range headers {
		alignments = append(alignments, tablewriter.ALIGN_LEFT)
	}

	table := tablewriter.NewWriter(buf)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetColumnAlignment(alignments)
	table.SetBorders(
		tablewriter.Border{
			Left:   false,
			Top:    true,
			Right:  false,
			Bottom: true,
		},
	)
	return table
}

func replicasStr(
	partition admin.PartitionAssignment,
	topo *topology.Topology,
	maxWidth int,
) string {
	elements := []string{}

	for _, replica := range partition.Replicas {
		elements = append(
			elements,
			fmt.Sprintf("%*d (%s)", maxWidth, replica, topo.Label(replica)),
		)
	}

	return strings.Join(elements, ", ")
}

func replicasDiffStr(
	old admin.PartitionAssignment,
	new admin.PartitionAssignment,
	topo *topology.Topology,
	maxWidth int,
) string {
	if !util.InTerminal() {
		return replicasStr(new, topo, maxWidth)
	}

	elements := []string{}

	added := color.New(color.FgRed).SprintfFunc()
	moved := color.New(color.FgCyan).SprintfFunc()

	for r, replica := range new.Replicas {
		var element string

		if r < len(old.Replicas) && replica == old.Replicas[r] {
			element = fmt.Sprintf("%*d (%s)", maxWidth, replica, topo.Label(replica))
		} else if old.Index(replica) != -1 {
			element = moved("%*d (%s)", maxWidth, replica, topo.Label(replica))
		} else {
			element = added("%*d (%s)", maxWidth, replica, topo.Label(replica))
		}

		elements = append(elements, element)
	}

	return strings.Join(elements, ", ")
}

func countDiffStr(diffValue int) string {
	if diffValue == 0 {
		return ""
	}

	var increasedSprintf func(format string, a ...interface{}) string
	var decreasedSprintf func(format string, a ...interface{}) string

	if !util.InTerminal() {
		increasedSprintf = fmt.Sprintf
		decreasedSprintf = fmt.Sprintf
	} else {
		increasedSprintf = color.New(color.FgRed).SprintfFunc()
		decreasedSprintf = color.New(color.FgCyan).SprintfFunc()
	}

	if diffValue > 0 {
		return fmt.Sprintf(" (%s)", increasedSprintf("%+d", diffValue))
	}
	return fmt.Sprintf(" (%s)", decreasedSprintf("%-d", diffValue))
}

func maxValueToMaxWidth(maxValue int) int {
	return len(fmt.Sprintf("%d", maxValue))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
