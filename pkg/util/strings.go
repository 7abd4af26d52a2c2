package util

import (
	"fmt"
	"strings"
)

// TruncateStringMiddle truncates a string by replacing characters in the middle with
// "..." if needed. It returns the number of characters omitted.
func TruncateStringMiddle(input string, maxLen int, suffixLen int) (string, int) {
	if len(input)-3 <= maxLen {
		return input, 0
	}

	suffix := input[len(input)-suffixLen:]
	prefix := input[:maxLen-suffixLen-3]

	numOmitted := len(input) - len(prefix) - len(suffix)
	return fmt.Sprintf("%s...%s", prefix, suffix), numOmitted
}

// CompactOutput collapses the output of an external command into a single line that's
// short enough to be embedded in an error message.
func CompactOutput(output string, maxLen int) string {
	compacted := strings.Join(strings.Fields(output), " ")
	if maxLen < 10 {
		return compacted
	}

	result, _ := TruncateStringMiddle(compacted, maxLen, maxLen/2)
	return result
}
