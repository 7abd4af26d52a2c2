package admin

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/segmentio/topicspread/pkg/util"
)

// FormatBrokers creates a pretty table from a list of brokers, sorted by ID.
func FormatBrokers(brokers []BrokerInfo) string {
	buf := &bytes.Buffer{}

	table := tablewriter.NewWriter(buf)
	table.SetHeader(
		[]string{
			"ID",
			"Address",
			"Rack",
		},
	)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetColumnAlignment(
		[]int{
			tablewriter.ALIGN_LEFT,
			tablewriter.ALIGN_LEFT,
			tablewriter.ALIGN_LEFT,
		},
	)
	table.SetBorders(
		tablewriter.Border{
			Left:   false,
			Top:    true,
			Right:  false,
			Bottom: true,
		},
	)

	sorted := append([]BrokerInfo{}, brokers...)
	sort.Slice(sorted, func(a, b int) bool {
		return sorted[a].ID < sorted[b].ID
	})

	for _, broker := range sorted {
		rack := broker.Rack
		if rack == "" {
			rack = "-"
		}
		table.Append(
			[]string{
				fmt.Sprintf("%d", broker.ID),
				broker.Addr(),
				rack,
			},
		)
	}

	table.Render()
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// FormatDescribe renders a topic in the text format printed by
// kafka-topics.sh --describe, e.g.
//
//	Topic:my-topic	PartitionCount:2	ReplicationFactor:3	Configs:
//		Topic: my-topic	Partition: 0	Leader: 1	Replicas: 1,2,3	Isr: 1,2,3
func FormatDescribe(topic TopicInfo) string {
	lines := []string{
		fmt.Sprintf(
			"Topic:%s\tPartitionCount:%d\tReplicationFactor:%d\tConfigs:",
			topic.Name,
			len(topic.Partitions),
			topic.MaxReplication(),
		),
	}

	partitions := append([]PartitionInfo{}, topic.Partitions...)
	sort.Slice(partitions, func(a, b int) bool {
		return partitions[a].ID < partitions[b].ID
	})

	for _, partition := range partitions {
		lines = append(
			lines,
			fmt.Sprintf(
				"\tTopic: %s\tPartition: %d\tLeader: %d\tReplicas: %s\tIsr: %s",
				topic.Name,
				partition.ID,
				partition.Leader,
				util.JoinInts(partition.Replicas),
				util.JoinInts(partition.ISR),
			),
		)
	}

	return strings.Join(lines, "\n") + "\n"
}

func formatPartitionErrors(partitionErrors map[string]error) string {
	keys := []string{}
	for key := range partitionErrors {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	elements := []string{}
	for _, key := range keys {
		elements = append(elements, fmt.Sprintf("%s: %s", key, partitionErrors[key]))
	}
	return strings.Join(elements, "; ")
}
