package safety

import (
	"os"

	"golang.org/x/term"
)

// IsInteractiveStdin reports whether stdin is a controlling terminal,
// the production isTerminal check for New.
func IsInteractiveStdin() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
