package reassign

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/segmentio/topicspread/pkg/admin"
	"github.com/segmentio/topicspread/pkg/topology"
)

// Collision is a pair of replicas in the same partition that share a domain.
type Collision struct {
	Partition  int
	Positions  [2]int
	Brokers    [2]int
	Dimension  string
	Coordinate topology.Coordinate
}

// EvaluateAssignments returns every pair of replicas, in every partition, that share a
// coordinate in some dimension of the topology. The results are ordered by partition, then
// by replica positions, then by dimension. An empty result means that all partitions
// are fully spread.
func EvaluateAssignments(
	assignments []admin.PartitionAssignment,
	topo *topology.Topology,
) ([]Collision, error) {
	if err := topo.CheckReplicas(assignments); err != nil {
		return nil, err
	}

	sorted := admin.CopyAssignments(assignments)
	sort.Slice(sorted, func(a, b int) bool {
		return sorted[a].ID < sorted[b].ID
	})

	collisions := []Collision{}

	for _, assignment := range sorted {
		for i := 0; i < len(assignment.Replicas); i++ {
			for j := i + 1; j < len(assignment.Replicas); j++ {
				first := topo.Coordinates(assignment.Replicas[i])
				second := topo.Coordinates(assignment.Replicas[j])

				for d, dimension := range topo.Dimensions() {
					if first[d] != second[d] {
						continue
					}
					collisions = append(
						collisions,
						Collision{
							Partition: assignment.ID,
							Positions: [2]int{i, j},
							Brokers: [2]int{
								assignment.Replicas[i],
								assignment.Replicas[j],
							},
							Dimension:  dimension,
							Coordinate: first[d],
						},
					)
				}
			}
		}
	}

	return collisions, nil
}

// FormatCollisions creates a pretty table of the argument collisions.
func FormatCollisions(collisions []Collision) string {
	buf := &bytes.Buffer{}

	table := tablewriter.NewWriter(buf)
	table.SetHeader(
		[]string{
			"Partition",
			"Brokers",
			"Positions",
			"Dimension",
			"Shared\nCoordinate",
		},
	)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetColumnAlignment(
		[]int{
			tablewriter.ALIGN_LEFT,
			tablewriter.ALIGN_LEFT,
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

	for _, collision := range collisions {
		table.Append(
			[]string{
				fmt.Sprintf("%d", collision.Partition),
				fmt.Sprintf("%d, %d", collision.Brokers[0], collision.Brokers[1]),
				fmt.Sprintf("%d, %d", collision.Positions[0], collision.Positions[1]),
				collision.Dimension,
				string(collision.Coordinate),
			},
		)
	}

	table.Render()
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
