package util

import (
	"sort"
)

// SortedKeys returns the keys of the argument, sorted ascending.
func SortedKeys(input map[int]int) []int {
	keys := []int{}

	for key := range input {
		keys = append(keys, key)
	}

	sort.Slice(
		keys, func(a, b int) bool {
			return keys[a] < keys[b]
		},
	)

	return keys
}

// SortedStrings returns the keys of a string set, sorted ascending.
func SortedStrings(input map[string]struct{}) []string {
	keys := []string{}

	for key := range input {
		keys = append(keys, key)
	}

	sort.Strings(keys)
	return keys
}
