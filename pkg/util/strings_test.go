package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateStringMiddle(t *testing.T) {
	resultLong, omittedLong := TruncateStringMiddle("01234567890123456789", 10, 3)
	assert.Equal(t, "0123...789", resultLong)
	assert.Equal(t, 13, omittedLong)

	resultShort, omittedShort := TruncateStringMiddle("012345", 10, 3)
	assert.Equal(t, "012345", resultShort)
	assert.Equal(t, 0, omittedShort)
}

func TestCompactOutput(t *testing.T) {
	assert.Equal(
		t,
		"Current partition replica assignment done",
		CompactOutput("Current partition\n  replica assignment\n\ndone\n", 100),
	)
	assert.Equal(
		t,
		"012...56789",
		CompactOutput("0123456789\n0123456789", 11),
	)
}
