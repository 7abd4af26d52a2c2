package util

import (
	"fmt"
	"strings"
)

// CopyInts copies a slice of ints.
func CopyInts(input []int) []int {
	results := make([]int, len(input))
	copy(results, input)
	return results
}

// IndexOf returns the index of value in the argument slice, or -1 if it can't be found.
func IndexOf(values []int, value int) int {
	for v, curr := range values {
		if curr == value {
			return v
		}
	}

	return -1
}

// JoinInts renders a slice of ints as a comma-separated string, e.g. "1,2,3". This is
// the replica list format used by the kafka shell tools.
func JoinInts(values []int) string {
	strValues := make([]string, 0, len(values))

	for _, value := range values {
		strValues = append(strValues, fmt.Sprintf("%d", value))
	}

	return strings.Join(strValues, ",")
}
