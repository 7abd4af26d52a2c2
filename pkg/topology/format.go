package topology

import (
	"bytes"
	"fmt"

	"github.com/olekukonko/tablewriter"
)

// FormatTopology creates a pretty table of the brokers in the topology. If loads is
// non-nil, a column with the replica count of each broker is added.
func FormatTopology(topo *Topology, loads map[int]int) string {
	buf := &bytes.Buffer{}

	headers := []string{"Broker", "Group"}
	headers = append(headers, topo.Dimensions()...)
	if loads != nil {
		headers = append(headers, "Replicas")
	}

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

	for _, broker := range topo.Brokers() {
		row := []string{
			fmt.Sprintf("%d", broker.ID),
			broker.Group,
		}
		for _, coordinate := range broker.Coordinates {
			row = append(row, string(coordinate))
		}
		if loads != nil {
			row = append(row, fmt.Sprintf("%d", loads[broker.ID]))
		}
		table.Append(row)
	}

	table.Render()
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
