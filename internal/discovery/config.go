package discovery

// Commands configures the subprocess commands each probe shells out to.
// Names are logical; the operator wires in whatever binaries the managed
// project actually uses (npm/yarn/pnpm scripts, a Makefile target, etc).
type Commands struct {
	Typecheck []string
	Build     []string
	Test      []string
	Lint      []string
}

// DefaultCommands returns a reasonable npm-script-based default, matching
// the common case for the JS/TS projects this engine was built to probe.
func DefaultCommands() Commands {
	return Commands{
		Typecheck: []string{"npm", "run", "typecheck"},
		Build:     []string{"npm", "run", "build"},
		Test:      []string{"npm", "test"},
		Lint:      []string{"npm", "run", "lint"},
	}
}
