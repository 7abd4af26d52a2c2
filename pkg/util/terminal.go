package util

import (
	"os"

	"golang.org/x/crypto/ssh/terminal"
)

// InTerminal determines whether stdout is a terminal. Tables only get colors when it is.
func InTerminal() bool {
	return terminal.IsTerminal(int(os.Stdout.Fd()))
}

// StderrInTerminal determines whether stderr is a terminal. The CLI spinner writes
// to stderr, so it's only shown when this is true.
func StderrInTerminal() bool {
	return terminal.IsTerminal(int(os.Stderr.Fd()))
}
